package config

import (
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	c.normalizePaths()
	c.normalizePlaceholder()
	c.normalizeProject()
	c.normalizeFilter()
	c.normalizeLogging()
	if c.Run.Workers < 1 {
		c.Run.Workers = 1
	}
	return nil
}

func (c *Config) normalizePaths() {
	c.Paths.ImagesDir = strings.TrimSpace(c.Paths.ImagesDir)
	if c.Paths.ImagesDir == "" {
		c.Paths.ImagesDir = defaultImagesDir
	}
	c.Paths.LabeledDataDir = filepath.Clean(strings.TrimSpace(c.Paths.LabeledDataDir))
	if c.Paths.LabeledDataDir == "." {
		c.Paths.LabeledDataDir = defaultLabeledDataDir
	}
	c.Paths.VideosDir = filepath.Clean(strings.TrimSpace(c.Paths.VideosDir))
	if c.Paths.VideosDir == "." {
		c.Paths.VideosDir = defaultVideosDir
	}
}

func (c *Config) normalizePlaceholder() {
	c.Placeholder.GroupsVersion = strings.TrimSpace(c.Placeholder.GroupsVersion)
	c.Placeholder.Visibility = strings.ToLower(strings.TrimSpace(c.Placeholder.Visibility))
	if c.Placeholder.GroupSpacing == 0 {
		c.Placeholder.GroupSpacing = defaultGroupSpacing
	}
	if c.Placeholder.PointSpacing == 0 {
		c.Placeholder.PointSpacing = defaultPointSpacing
	}
}

func (c *Config) normalizeProject() {
	c.Project.Scorer = strings.TrimSpace(c.Project.Scorer)
	c.Project.View = strings.TrimSpace(c.Project.View)
	c.Project.Animal = strings.TrimSpace(c.Project.Animal)
	c.Project.VideoExtension = strings.TrimSpace(c.Project.VideoExtension)
	if c.Project.VideoExtension == "" {
		c.Project.VideoExtension = defaultVideoExtension
	}
	if !strings.HasPrefix(c.Project.VideoExtension, ".") {
		c.Project.VideoExtension = "." + c.Project.VideoExtension
	}
	c.Project.Engine = strings.ToLower(strings.TrimSpace(c.Project.Engine))
	if c.Project.Engine == "" {
		c.Project.Engine = defaultEngine
	}
}

func (c *Config) normalizeFilter() {
	keep := c.Filter.KeepBodyparts[:0]
	seen := map[string]bool{}
	for _, bp := range c.Filter.KeepBodyparts {
		bp = strings.TrimSpace(bp)
		if bp == "" || seen[bp] {
			continue
		}
		seen[bp] = true
		keep = append(keep, bp)
	}
	c.Filter.KeepBodyparts = keep
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
