package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/poseconv/internal/flattable"
)

// InspectResult is the keypoint coverage of a flat table.
type InspectResult struct {
	Table   string   `json:"table"`
	HasBBox bool     `json:"has_bbox"`
	Extra   []string `json:"ignored_columns"`
	flattable.Coverage
}

// Text renders the result for terminals.
func (r InspectResult) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d row(s), %d keypoint(s)", r.Table, r.Rows, len(r.Keypoints))
	if r.HasBBox {
		b.WriteString(", bounding box")
	}
	b.WriteString("\n\n")

	rows := make([][]string, 0, len(r.Keypoints))
	for _, kp := range r.Keypoints {
		status := "labeled"
		if kp.Labeled == 0 {
			status = "missing"
		}
		rows = append(rows, []string{kp.Name, fmt.Sprint(kp.Labeled), status})
	}
	if len(rows) > 0 {
		b.WriteString(renderTable([]string{"Keypoint", "Labeled rows", "Status"}, rows, []columnAlignment{alignLeft, alignRight, alignLeft}))
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Labeled (%d): %s\n", len(r.Labeled), strings.Join(r.Labeled, ", "))
	fmt.Fprintf(&b, "Missing (%d): %s\n", len(r.Missing), strings.Join(r.Missing, ", "))
	if len(r.Extra) > 0 {
		fmt.Fprintf(&b, "Ignored columns: %s\n", strings.Join(r.Extra, ", "))
	}
	return b.String()
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <table.csv>",
		Short: "Report which keypoints of a flat table carry coordinates",
		Long: `List the keypoints of a flat coordinate table in column order with the
number of rows that label each one, split into labeled and missing keypoints.
The table is not modified.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          func(cmd *cobra.Command, args []string) error {
			return runInspect(rootOpts, cmd, args[0])
		},
	}
	return cmd
}

func runInspect(opts *RootOptions, cmd *cobra.Command, tablePath string) error {
	formatter := opts.formatter(cmd)

	parsed, err := flattable.ReadFile(tablePath)
	if err != nil {
		return formatter.Fail(err)
	}
	extra := parsed.Header.Extra
	if extra == nil {
		extra = []string{}
	}
	return formatter.Success(InspectResult{
		Table:    tablePath,
		HasBBox:  parsed.Header.HasBBox(),
		Extra:    extra,
		Coverage: flattable.Analyze(parsed.Table(flattable.FirstSeen)),
	})
}
