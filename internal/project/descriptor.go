package project

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DescriptorFile is the descriptor name inside the project directory.
const DescriptorFile = "config.yaml"

// Training holds the training hyperparameters written to the descriptor.
type Training struct {
	TrainingFraction      []float64 `yaml:"TrainingFraction" toml:"training_fraction"`
	Iteration             int       `yaml:"iteration" toml:"iteration"`
	DefaultNetType        string    `yaml:"default_net_type" toml:"default_net_type"`
	DefaultAugmenter      string    `yaml:"default_augmenter" toml:"default_augmenter"`
	SnapshotIndex         int       `yaml:"snapshotindex" toml:"snapshotindex"`
	DetectorSnapshotIndex int       `yaml:"detector_snapshotindex" toml:"detector_snapshotindex"`
	BatchSize             int       `yaml:"batch_size" toml:"batch_size"`
	DetectorBatchSize     int       `yaml:"detector_batch_size" toml:"detector_batch_size"`
}

// DefaultTraining returns the stock hyperparameters.
func DefaultTraining() Training {
	return Training{
		TrainingFraction:      []float64{0.9},
		Iteration:             0,
		DefaultNetType:        "resnet_50",
		DefaultAugmenter:      "imgaug",
		SnapshotIndex:         -1,
		DetectorSnapshotIndex: -1,
		BatchSize:             4,
		DetectorBatchSize:     1,
	}
}

// VideoSet is one video_sets entry. A nil entry is written as null.
type VideoSet struct {
	Crop string `yaml:"crop,omitempty"`
}

// Descriptor is the project configuration read by the training tool.
type Descriptor struct {
	Task               string `yaml:"Task"`
	Scorer             string `yaml:"scorer"`
	Date               string `yaml:"date"`
	MultiAnimalProject bool   `yaml:"multianimalproject"`
	Identity           bool   `yaml:"identity"`

	ProjectPath string `yaml:"project_path"`
	Engine      string `yaml:"engine"`

	Skeleton      [][]string `yaml:"skeleton"`
	SkeletonColor string     `yaml:"skeleton_color"`
	PCutoff       float64    `yaml:"pcutoff"`
	DotSize       int        `yaml:"dotsize"`
	AlphaValue    float64    `yaml:"alphavalue"`
	Colormap      string     `yaml:"colormap"`

	VideoSets map[string]*VideoSet `yaml:"video_sets"`
	Bodyparts []string             `yaml:"bodyparts"`

	Training `yaml:",inline"`

	Cropping bool `yaml:"cropping"`
	X1       int  `yaml:"x1"`
	X2       int  `yaml:"x2"`
	Y1       int  `yaml:"y1"`
	Y2       int  `yaml:"y2"`

	Corner2Move2 []int `yaml:"corner2move2"`
	Move2Corner  bool  `yaml:"move2corner"`
}

// NewDescriptor fills the fixed defaults around the per-build values.
func NewDescriptor(task, scorer, date, projectPath, engine string, bodyparts []string, training Training) *Descriptor {
	return &Descriptor{
		Task:          task,
		Scorer:        scorer,
		Date:          date,
		ProjectPath:   projectPath,
		Engine:        engine,
		Skeleton:      [][]string{},
		SkeletonColor: "black",
		PCutoff:       0.6,
		DotSize:       8,
		AlphaValue:    0.7,
		Colormap:      "jet",
		VideoSets:     map[string]*VideoSet{},
		Bodyparts:     bodyparts,
		Training:      training,
		X1:            0,
		X2:            640,
		Y1:            277,
		Y2:            624,
		Corner2Move2:  []int{50, 50},
		Move2Corner:   true,
	}
}

// sectionComments are written above the first key of each section.
var sectionComments = map[string]string{
	"Task":             "# Project definitions (do not edit)",
	"project_path":     "# Project path (change when moving around)",
	"engine":           "# Default DeepLabCut engine to use for shuffle creation (either pytorch or tensorflow)",
	"skeleton":         "# Plotting configuration",
	"video_sets":       "# Annotation data set configuration (and individual video cropping parameters)",
	"bodyparts":        "# Bodyparts to track",
	"TrainingFraction": "# Training,Evaluation and Analysis configuration",
	"cropping":         "# Cropping Parameters (for analysis and outlier frame detection)",
	"x1":               "# if cropping is true for analysis, then set the values here:",
	"corner2move2":     "# Refinement configuration (parameters from annotation dataset configuration also relevant in this stage)",
}

// Encode writes d as commented YAML.
func (d *Descriptor) Encode(w io.Writer) error {
	var node yaml.Node
	if err := node.Encode(d); err != nil {
		return fmt.Errorf("encode descriptor: %w", err)
	}
	if node.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(node.Content); i += 2 {
			key := node.Content[i]
			if c, ok := sectionComments[key.Value]; ok {
				key.HeadComment = c
			}
		}
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		return fmt.Errorf("encode descriptor: %w", err)
	}
	return enc.Close()
}

// WriteFile atomically replaces path with the encoded descriptor.
func (d *Descriptor) WriteFile(path string) error {
	var buf bytes.Buffer
	if err := d.Encode(&buf); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("write descriptor: %w", err)
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write descriptor: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write descriptor: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write descriptor: %w", err)
	}
	return nil
}

// ReadDescriptor decodes a descriptor file.
func ReadDescriptor(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var d Descriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &d, nil
}
