package project

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"sync"

	"github.com/gofrs/flock"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/poseconv/internal/collected"
	"github.com/roach88/poseconv/internal/pose"
)

// Default layout names.
const (
	DefaultImagesDir      = "Images"
	DefaultLabeledDataDir = "labeled-data"
	DefaultVideosDir      = "videos"
	DefaultVideoExtension = ".mkv"
	DefaultEngine         = "pytorch"

	// LockFile guards a project directory against concurrent runs.
	LockFile = ".poseconv.lock"
)

// Options configures Build.
type Options struct {
	// BaseDir receives the project directory.
	BaseDir string
	// ImagesDir holds the source images. Relative paths resolve against
	// BaseDir; empty means BaseDir/Images.
	ImagesDir string
	// LabeledDataDir and VideosDir are project-relative folder names.
	LabeledDataDir string
	VideosDir      string

	Scorer string
	View   string
	Animal string

	VideoExtension string
	Engine         string
	Training       Training

	Workers int
	Clock   Clock
	IDs     IDGenerator
	Logger  *zap.Logger
}

func (o *Options) normalize() error {
	if o.BaseDir == "" {
		return pose.ConfigurationError("", "base folder is required", nil)
	}
	for name, v := range map[string]string{"scorer": o.Scorer, "view": o.View, "animal": o.Animal} {
		if v == "" {
			return pose.ConfigurationError("", name+" is required", nil)
		}
	}
	if !isBaseName(o.Scorer) {
		return pose.ConfigurationError("", fmt.Sprintf("scorer %q must not contain path separators", o.Scorer), nil)
	}
	if !isBaseName(o.View + o.Animal) {
		return pose.ConfigurationError("", "view and animal must not contain path separators", nil)
	}
	if o.LabeledDataDir == "" {
		o.LabeledDataDir = DefaultLabeledDataDir
	}
	if o.VideosDir == "" {
		o.VideosDir = DefaultVideosDir
	}
	if !filepath.IsLocal(o.LabeledDataDir) || !filepath.IsLocal(o.VideosDir) {
		return pose.ConfigurationError("", "labeled-data and videos folders must be relative to the project", nil)
	}
	if o.ImagesDir == "" {
		o.ImagesDir = DefaultImagesDir
	}
	if !filepath.IsAbs(o.ImagesDir) {
		o.ImagesDir = filepath.Join(o.BaseDir, o.ImagesDir)
	}
	if o.VideoExtension == "" {
		o.VideoExtension = DefaultVideoExtension
	}
	if o.VideoExtension[0] != '.' {
		o.VideoExtension = "." + o.VideoExtension
	}
	if o.Engine == "" {
		o.Engine = DefaultEngine
	}
	if o.Training.TrainingFraction == nil && o.Training.DefaultNetType == "" {
		o.Training = DefaultTraining()
	}
	if o.Workers < 1 {
		o.Workers = 1
	}
	if o.Clock == nil {
		o.Clock = SystemClock{}
	}
	if o.IDs == nil {
		o.IDs = UUIDv7Generator{}
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return nil
}

// PartitionResult describes one written partition.
type PartitionResult struct {
	Subject string `json:"subject"`
	Dir     string `json:"dir"`
	Rows    int    `json:"rows"`
	Copied  int    `json:"copied"`
}

// Failure is a partition that could not be written.
type Failure struct {
	Partition string `json:"partition"`
	Err       error  `json:"-"`
	Message   string `json:"error"`
}

// Report summarizes a build.
type Report struct {
	BuildID    string            `json:"build_id"`
	ProjectDir string            `json:"project_dir"`
	Descriptor string            `json:"descriptor"`
	Bodyparts  []string          `json:"bodyparts"`
	Partitions []PartitionResult `json:"partitions"`
	Conditions []pose.Condition  `json:"conditions"`
	Failures   []Failure         `json:"failures"`
}

// Name returns the project directory name for a build date.
func Name(view, animal, scorer, date string) string {
	return fmt.Sprintf("%s%s-%s-%s", view, animal, scorer, date)
}

// Build writes a project for tbl. Keypoint order is tbl.Keypoints; bounding
// boxes are ignored.
//
// Setup problems (options, project directory, lock, descriptor) return an
// error. Problems confined to one partition are listed in Report.Failures
// and the remaining partitions are still written.
func Build(ctx context.Context, tbl *pose.Table, opts Options) (*Report, error) {
	if err := opts.normalize(); err != nil {
		return nil, err
	}
	base, err := filepath.Abs(opts.BaseDir)
	if err != nil {
		return nil, pose.ConfigurationError(opts.BaseDir, "resolve base folder", err)
	}
	if info, err := os.Stat(base); err != nil || !info.IsDir() {
		return nil, pose.ConfigurationError(base, "base folder does not exist", err)
	}

	date := opts.Clock.Now().Format("2006-01-02")
	projectDir := filepath.Join(base, Name(opts.View, opts.Animal, opts.Scorer, date))
	report := &Report{
		BuildID:    opts.IDs.Generate(),
		ProjectDir: projectDir,
		Descriptor: filepath.Join(projectDir, DescriptorFile),
		Bodyparts:  tbl.Keypoints,
		Partitions: []PartitionResult{},
		Conditions: []pose.Condition{},
		Failures:   []Failure{},
	}
	logger := opts.Logger.With(zap.String("build_id", report.BuildID))

	for _, dir := range []string{opts.LabeledDataDir, opts.VideosDir} {
		if err := os.MkdirAll(filepath.Join(projectDir, dir), 0o755); err != nil {
			return nil, fmt.Errorf("create project layout: %w", err)
		}
	}

	lock := flock.New(filepath.Join(projectDir, LockFile))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire project lock: %w", err)
	}
	if !locked {
		return nil, pose.ConfigurationError(projectDir, "project is locked by another run", nil)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("failed to release project lock", zap.Error(err))
		}
	}()

	partitions, excluded := Partition(tbl.Rows)
	for _, c := range excluded {
		logger.Warn("row has no subject identity", zap.String("image", c.Subject), zap.String("detail", c.Detail))
	}
	report.Conditions = append(report.Conditions, excluded...)

	desc := NewDescriptor(opts.View+opts.Animal, opts.Scorer, date, projectDir, opts.Engine, tbl.Keypoints, opts.Training)
	for _, p := range partitions {
		video := filepath.Join(projectDir, opts.VideosDir, p.Subject+opts.VideoExtension)
		desc.VideoSets[video] = nil
	}
	if err := desc.WriteFile(report.Descriptor); err != nil {
		return nil, err
	}

	logger.Info("building project",
		zap.String("project", projectDir),
		zap.Int("partitions", len(partitions)),
		zap.Int("bodyparts", len(tbl.Keypoints)))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for _, p := range partitions {
		g.Go(func() error {
			res, conds, err := buildPartition(gctx, projectDir, report.BuildID, tbl.Keypoints, p, &opts)

			mu.Lock()
			defer mu.Unlock()
			report.Conditions = append(report.Conditions, conds...)
			if err != nil {
				logger.Error("partition failed", zap.String("partition", p.Subject), zap.Error(err))
				report.Failures = append(report.Failures, Failure{Partition: p.Subject, Err: err, Message: err.Error()})
				return nil
			}
			logger.Debug("partition written",
				zap.String("partition", p.Subject),
				zap.Int("rows", res.Rows),
				zap.Int("copied", res.Copied))
			report.Partitions = append(report.Partitions, res)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(report.Partitions, func(i, j int) bool { return report.Partitions[i].Subject < report.Partitions[j].Subject })
	sort.Slice(report.Failures, func(i, j int) bool { return report.Failures[i].Partition < report.Failures[j].Partition })
	sort.SliceStable(report.Conditions, func(i, j int) bool {
		a, b := report.Conditions[i], report.Conditions[j]
		if a.Code != b.Code {
			return a.Code < b.Code
		}
		return a.Subject < b.Subject
	})
	return report, nil
}

// PartitionTable builds the structured table of one partition over the
// full keypoint list. Unset points become empty cells.
func PartitionTable(scorer, labeledDataDir string, keypoints []string, p pose.SubjectPartition) (*pose.StructuredTable, error) {
	st := pose.NewStructuredTable(scorer, keypoints)
	for _, rec := range p.Records {
		vals := make([]string, 0, len(st.Columns))
		for _, kp := range keypoints {
			x, y := rec.Point(kp).Cells()
			vals = append(vals, x, y)
		}
		if err := st.AppendRow(path.Join(labeledDataDir, p.Subject, rec.Filename), vals); err != nil {
			return nil, err
		}
	}
	return st, nil
}

func buildPartition(ctx context.Context, projectDir, buildID string, keypoints []string, p pose.SubjectPartition, opts *Options) (PartitionResult, []pose.Condition, error) {
	res := PartitionResult{Subject: p.Subject, Rows: len(p.Records)}
	if err := ctx.Err(); err != nil {
		return res, nil, err
	}

	dir := filepath.Join(projectDir, opts.LabeledDataDir, p.Subject)
	res.Dir = dir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return res, nil, fmt.Errorf("create partition folder: %w", err)
	}

	var conds []pose.Condition
	for _, rec := range p.Records {
		src := filepath.Join(opts.ImagesDir, rec.Filename)
		err := copyFile(src, filepath.Join(dir, rec.Filename))
		if errors.Is(err, os.ErrNotExist) {
			opts.Logger.Warn("source image missing",
				zap.String("partition", p.Subject),
				zap.String("path", src))
			conds = append(conds, pose.Condition{
				Code:    pose.CondMissingSourceAsset,
				Subject: rec.Filename,
				Detail:  src,
			})
			continue
		}
		if err != nil {
			return res, conds, fmt.Errorf("copy %s: %w", rec.Filename, err)
		}
		res.Copied++
	}

	st, err := PartitionTable(opts.Scorer, opts.LabeledDataDir, keypoints, p)
	if err != nil {
		return res, conds, err
	}
	pair := collected.PairFor(dir, collected.Stem(opts.Scorer))
	meta := collected.Meta{"build_id": buildID, "subject": p.Subject}
	if err := collected.WriteBoth(ctx, pair, st, meta); err != nil {
		return res, conds, err
	}
	return res, conds, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
