package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/poseconv/internal/bodyfilter"
	"github.com/roach88/poseconv/internal/project"
)

// FilterResult wraps a filter report for output.
type FilterResult struct {
	RunID string `json:"run_id"`
	*bodyfilter.Report
}

// Text renders the result for terminals.
func (r FilterResult) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Filtered %s (%d partition(s))\n\n", r.Root, r.Partitions)

	rows := make([][]string, 0, len(r.Stores))
	for _, s := range r.Stores {
		rows = append(rows, []string{
			s.Partition,
			s.Stem,
			strings.Join(s.Encodings, "+"),
			fmt.Sprintf("%d → %d", s.Before, s.After),
			fmt.Sprint(s.Rows),
		})
	}
	if len(rows) > 0 {
		b.WriteString(renderTable(
			[]string{"Partition", "Store", "Encodings", "Columns", "Rows"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight},
		))
		b.WriteString("\n")
	}
	writeConditions(&b, r.Conditions)
	if len(r.Absent) > 0 {
		fmt.Fprintf(&b, "! not present in any table: %s\n", strings.Join(r.Absent, ", "))
	}
	for _, f := range r.Failures {
		fmt.Fprintf(&b, "✗ %s: %s\n", f.Partition, f.Message)
	}
	if len(r.Failures) == 0 {
		fmt.Fprintf(&b, "✓ Filtered %d store(s)\n", len(r.Stores))
	}
	return b.String()
}

// NewFilterCommand creates the filter command.
func NewFilterCommand(rootOpts *RootOptions) *cobra.Command {
	var keep []string
	var workers int

	cmd := &cobra.Command{
		Use:   "filter <project-dir>",
		Short: "Restrict every labeled table in a project to an allow-list of bodyparts",
		Long: `Rewrite every CollectedData table under <project-dir>/labeled-data so that
only columns whose bodypart is on the allow-list remain. Column order and
row values are preserved. Both encodings of a table are rewritten together;
a partition whose encodings disagree is left untouched and reported.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          func(cmd *cobra.Command, args []string) error {
			return runFilter(rootOpts, cmd, args[0], keep, workers)
		},
	}

	cmd.Flags().StringSliceVar(&keep, "keep", nil, "bodyparts to keep, comma separated (default from config)")
	cmd.Flags().IntVar(&workers, "workers", 0, "concurrent partitions (default from config)")
	return cmd
}

func runFilter(opts *RootOptions, cmd *cobra.Command, projectDir string, keep []string, workers int) error {
	formatter := opts.formatter(cmd)
	cfg := opts.config()

	if len(keep) == 0 {
		keep = cfg.Filter.KeepBodyparts
	}
	runID := project.UUIDv7Generator{}.Generate()

	report, err := bodyfilter.Run(cmd.Context(), bodyfilter.Options{
		ProjectDir:     projectDir,
		LabeledDataDir: cfg.Paths.LabeledDataDir,
		Keep:           trimAll(keep),
		RunID:          runID,
		Workers:        firstPositive(workers, cfg.Run.Workers),
		Logger:         opts.logger(),
	})
	if err != nil {
		return formatter.Fail(err)
	}

	res := FilterResult{RunID: runID, Report: report}
	if len(report.Failures) > 0 {
		opts.logger().Warn("filter finished with failed partitions", zap.Int("failed", len(report.Failures)))
		if err := formatter.Partial(res); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("%d partition(s) failed", len(report.Failures)))
	}
	return formatter.Success(res)
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
