package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/roach88/poseconv/internal/placeholder"
	"github.com/roach88/poseconv/internal/skeleton"
)

// Validate ensures the configuration is usable. Unset placeholder choices
// are allowed here; the fill command insists on them.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateExport(); err != nil {
		return err
	}
	if err := c.validatePlaceholder(); err != nil {
		return err
	}
	if err := c.validateProject(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if !filepath.IsLocal(c.Paths.LabeledDataDir) {
		return fmt.Errorf("paths.labeled_data_dir %q must be a relative folder inside the project", c.Paths.LabeledDataDir)
	}
	if !filepath.IsLocal(c.Paths.VideosDir) {
		return fmt.Errorf("paths.videos_dir %q must be a relative folder inside the project", c.Paths.VideosDir)
	}
	return nil
}

func (c *Config) validateExport() error {
	if c.Export.Width <= 0 || c.Export.Height <= 0 {
		return errors.New("export.width and export.height must be positive")
	}
	if strings.TrimSpace(c.Export.BoxLabel) == "" {
		return errors.New("export.box_label must be set")
	}
	if strings.TrimSpace(c.Export.SkeletonLabel) == "" {
		return errors.New("export.skeleton_label must be set")
	}
	return nil
}

func (c *Config) validatePlaceholder() error {
	if v := c.Placeholder.GroupsVersion; v != "" && !strings.HasSuffix(v, ".cue") && !slices.Contains(skeleton.Versions(), v) {
		return fmt.Errorf("placeholder.groups_version %q is not one of %v or a .cue file", v, skeleton.Versions())
	}
	if c.Placeholder.Visibility != "" {
		if _, err := placeholder.ParseVisibility(c.Placeholder.Visibility); err != nil {
			return fmt.Errorf("placeholder.visibility: %w", err)
		}
	}
	if c.Placeholder.GroupSpacing < 0 || c.Placeholder.PointSpacing < 0 {
		return errors.New("placeholder spacing must not be negative")
	}
	return nil
}

func (c *Config) validateProject() error {
	if strings.ContainsAny(c.Project.Scorer, `/\`) {
		return fmt.Errorf("project.scorer %q must not contain path separators", c.Project.Scorer)
	}
	if c.Project.Engine != "pytorch" && c.Project.Engine != "tensorflow" {
		return fmt.Errorf("project.engine %q must be pytorch or tensorflow", c.Project.Engine)
	}
	for _, f := range c.Project.Training.TrainingFraction {
		if f <= 0 || f >= 1 {
			return fmt.Errorf("project.training.training_fraction value %v must be between 0 and 1", f)
		}
	}
	if c.Project.Training.BatchSize < 1 {
		return errors.New("project.training.batch_size must be at least 1")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "auto", "console", "json":
	default:
		return fmt.Errorf("logging.format %q must be auto, console or json", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q must be debug, info, warn or error", c.Logging.Level)
	}
	return nil
}
