package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/poseconv/internal/config"
	"github.com/roach88/poseconv/internal/flattable"
	"github.com/roach88/poseconv/internal/project"
)

// DefaultTableName is the annotation table looked up in the base folder.
const DefaultTableName = "annotations.csv"

// BuildResult wraps a project build report for output.
type BuildResult struct {
	*project.Report
}

// Text renders the result for terminals.
func (r BuildResult) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Project %s\n", r.ProjectDir)
	fmt.Fprintf(&b, "  build %s, %d bodypart(s)\n\n", r.BuildID, len(r.Bodyparts))

	rows := make([][]string, 0, len(r.Partitions))
	for _, p := range r.Partitions {
		rows = append(rows, []string{p.Subject, fmt.Sprint(p.Rows), fmt.Sprint(p.Copied)})
	}
	if len(rows) > 0 {
		b.WriteString(renderTable([]string{"Subject", "Rows", "Images"}, rows, []columnAlignment{alignLeft, alignRight, alignRight}))
		b.WriteString("\n")
	}
	writeConditions(&b, r.Conditions)
	for _, f := range r.Failures {
		fmt.Fprintf(&b, "✗ %s: %s\n", f.Partition, f.Message)
	}
	if len(r.Failures) == 0 {
		fmt.Fprintf(&b, "✓ Wrote %d partition(s)\n", len(r.Partitions))
	}
	return b.String()
}

type buildFlags struct {
	scorer  string
	view    string
	animal  string
	table   string
	images  string
	workers int
}

// NewBuildCommand creates the build command.
func NewBuildCommand(rootOpts *RootOptions) *cobra.Command {
	var flags buildFlags

	cmd := &cobra.Command{
		Use:   "build <base-folder>",
		Short: "Assemble a training project from an annotation table and images",
		Long: `Assemble a DeepLabCut-style training project under the base folder.

The project directory is named <view><animal>-<scorer>-<date>. Rows are
partitioned by the subject identity embedded in each filename; every
partition gets its images and a CollectedData_<scorer> table in both the
CSV and SQLite encodings. A partition that fails to write is reported and
the rest are still built (exit code 1).`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          func(cmd *cobra.Command, args []string) error {
			return runBuild(rootOpts, cmd, args[0], flags)
		},
	}

	cmd.Flags().StringVar(&flags.scorer, "scorer", "", "labeler identifier (default from config)")
	cmd.Flags().StringVar(&flags.view, "view", "", "camera view, e.g. top or side (default from config)")
	cmd.Flags().StringVar(&flags.animal, "animal", "", "animal kind (default from config)")
	cmd.Flags().StringVar(&flags.table, "table", "", "annotation table (default <base-folder>/"+DefaultTableName+")")
	cmd.Flags().StringVar(&flags.images, "images", "", "source image folder (default from config, relative to the base folder)")
	cmd.Flags().IntVar(&flags.workers, "workers", 0, "concurrent partitions (default from config)")
	return cmd
}

func runBuild(opts *RootOptions, cmd *cobra.Command, base string, flags buildFlags) error {
	formatter := opts.formatter(cmd)
	cfg := opts.config()

	tablePath := flags.table
	if tablePath == "" {
		tablePath = filepath.Join(base, DefaultTableName)
	}
	parsed, err := flattable.ReadFile(tablePath)
	if err != nil {
		return formatter.Fail(err)
	}

	images := cfg.Paths.ImagesDir
	if flags.images != "" {
		if images, err = config.ExpandPath(flags.images); err != nil {
			return formatter.Fail(err)
		}
	}

	report, err := project.Build(cmd.Context(), parsed.Table(flattable.FirstSeen), project.Options{
		BaseDir:        base,
		ImagesDir:      images,
		LabeledDataDir: cfg.Paths.LabeledDataDir,
		VideosDir:      cfg.Paths.VideosDir,
		Scorer:         firstNonEmpty(flags.scorer, cfg.Project.Scorer),
		View:           firstNonEmpty(flags.view, cfg.Project.View),
		Animal:         firstNonEmpty(flags.animal, cfg.Project.Animal),
		VideoExtension: cfg.Project.VideoExtension,
		Engine:         cfg.Project.Engine,
		Training:       cfg.Project.Training,
		Workers:        firstPositive(flags.workers, cfg.Run.Workers),
		Logger:         opts.logger(),
	})
	if err != nil {
		return formatter.Fail(err)
	}

	res := BuildResult{Report: report}
	if len(report.Failures) > 0 {
		opts.logger().Warn("build finished with failed partitions", zap.Int("failed", len(report.Failures)))
		if err := formatter.Partial(res); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("%d partition(s) failed", len(report.Failures)))
	}
	return formatter.Success(res)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
