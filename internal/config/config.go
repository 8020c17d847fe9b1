package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/roach88/poseconv/internal/bodyfilter"
	"github.com/roach88/poseconv/internal/cvat"
	"github.com/roach88/poseconv/internal/pose"
	"github.com/roach88/poseconv/internal/project"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths names the folders a build reads and writes.
type Paths struct {
	// ImagesDir is resolved against the build base folder when relative.
	ImagesDir      string `toml:"images_dir"`
	LabeledDataDir string `toml:"labeled_data_dir"`
	VideosDir      string `toml:"videos_dir"`
}

// Export holds the fixed attribute values of exported documents.
type Export struct {
	Version       string `toml:"version"`
	Subset        string `toml:"subset"`
	TaskID        int    `toml:"task_id"`
	Width         int    `toml:"width"`
	Height        int    `toml:"height"`
	BoxLabel      string `toml:"box_label"`
	SkeletonLabel string `toml:"skeleton_label"`
	Source        string `toml:"source"`
}

// Placeholder configures the fill command. GroupsVersion and Visibility
// have no default.
type Placeholder struct {
	GroupsVersion string  `toml:"groups_version"`
	Visibility    string  `toml:"visibility"`
	GroupSpacing  float64 `toml:"group_spacing"`
	PointSpacing  float64 `toml:"point_spacing"`
}

// Project configures the build command.
type Project struct {
	Scorer         string           `toml:"scorer"`
	View           string           `toml:"view"`
	Animal         string           `toml:"animal"`
	VideoExtension string           `toml:"video_extension"`
	Engine         string           `toml:"engine"`
	Training       project.Training `toml:"training"`
}

// Filter configures the filter command.
type Filter struct {
	KeepBodyparts []string `toml:"keep_bodyparts"`
}

// Run holds batch settings shared by build and filter.
type Run struct {
	Workers int `toml:"workers"`
}

// Logging configures log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all poseconv settings.
type Config struct {
	Paths       Paths       `toml:"paths"`
	Export      Export      `toml:"export"`
	Placeholder Placeholder `toml:"placeholder"`
	Project     Project     `toml:"project"`
	Filter      Filter      `toml:"filter"`
	Run         Run         `toml:"run"`
	Logging     Logging     `toml:"logging"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Paths: Paths{
			ImagesDir:      defaultImagesDir,
			LabeledDataDir: defaultLabeledDataDir,
			VideosDir:      defaultVideosDir,
		},
		Export: Export{
			Version:       defaultExportVersion,
			Subset:        defaultSubset,
			TaskID:        defaultTaskID,
			Width:         defaultWidth,
			Height:        defaultHeight,
			BoxLabel:      defaultBoxLabel,
			SkeletonLabel: defaultSkeletonLabel,
			Source:        defaultSource,
		},
		Placeholder: Placeholder{
			GroupSpacing: defaultGroupSpacing,
			PointSpacing: defaultPointSpacing,
		},
		Project: Project{
			Scorer:         defaultScorer,
			View:           defaultView,
			Animal:         defaultAnimal,
			VideoExtension: defaultVideoExtension,
			Engine:         defaultEngine,
			Training:       project.DefaultTraining(),
		},
		Filter: Filter{
			KeepBodyparts: slices.Clone(bodyfilter.DefaultKeep),
		},
		Run: Run{
			Workers: defaultWorkers,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

// DefaultConfigPath returns the absolute path of the user configuration file.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, normalizes and validates the configuration. It
// returns the resolved path and whether a file was found there.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, pose.ConfigurationError(path, "resolve config path", err)
	}

	if exists {
		data, err := os.ReadFile(resolvedPath)
		if err != nil {
			return nil, "", false, pose.ConfigurationError(resolvedPath, "read config", err)
		}
		decoder := toml.NewDecoder(bytes.NewReader(data))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, pose.ConfigurationError(resolvedPath, "parse config", describeDecodeError(err))
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, pose.ConfigurationError(resolvedPath, "normalize config", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, pose.ConfigurationError(resolvedPath, "invalid config", err)
	}
	return &cfg, resolvedPath, exists, nil
}

func describeDecodeError(err error) error {
	var strict *toml.StrictMissingError
	if errors.As(err, &strict) {
		return errors.New(strings.TrimSpace(strict.String()))
	}
	var decErr *toml.DecodeError
	if errors.As(err, &decErr) {
		row, col := decErr.Position()
		return fmt.Errorf("line %d, column %d: %w", row, col, err)
	}
	return err
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs(projectConfigName)
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath exposes the path expansion rules to other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// ExportOptions converts the export section to document attribute values.
func (c *Config) ExportOptions() cvat.ExportOptions {
	return cvat.ExportOptions{
		Version:       c.Export.Version,
		Subset:        c.Export.Subset,
		TaskID:        strconv.Itoa(c.Export.TaskID),
		Width:         strconv.Itoa(c.Export.Width),
		Height:        strconv.Itoa(c.Export.Height),
		BoxLabel:      c.Export.BoxLabel,
		SkeletonLabel: c.Export.SkeletonLabel,
		Source:        c.Export.Source,
	}
}

// Encode writes the effective configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	enc.SetIndentTables(true)
	if err := enc.Encode(c); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return buf.Bytes(), nil
}

// SampleConfig returns the commented sample configuration.
func SampleConfig() string {
	return sampleConfig
}

// CreateSample writes the sample configuration to path. An existing file is
// left alone unless force is set.
func CreateSample(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return pose.ConfigurationError(path, "config file already exists (use --force to overwrite)", nil)
		}
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
