package cli

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/poseconv/internal/cvat"
	"github.com/roach88/poseconv/internal/flattable"
)

// ImportResult summarizes a document-to-table conversion.
type ImportResult struct {
	Output    string   `json:"output"`
	Rows      int      `json:"rows"`
	Keypoints []string `json:"keypoints"`
}

// Text renders the result for terminals.
func (r ImportResult) Text() string {
	return fmt.Sprintf("✓ Wrote %d row(s), %d keypoint(s) to %s\n", r.Rows, len(r.Keypoints), r.Output)
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "import <document.xml>",
		Short: "Regenerate a flat coordinate table from an interchange document",
		Long: `Regenerate a flat coordinate table from a (corrected) interchange document.

Hidden points become empty cells, so keep-hidden placeholders stay excluded.
Bounding-box columns come from the box with the configured label.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          func(cmd *cobra.Command, args []string) error {
			return runImport(rootOpts, cmd, args[0], output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output table path")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func runImport(opts *RootOptions, cmd *cobra.Command, docPath, output string) error {
	formatter := opts.formatter(cmd)

	doc, err := cvat.ReadFile(docPath)
	if err != nil {
		return formatter.Fail(err)
	}
	tbl := doc.Table(opts.config().Export.BoxLabel)

	var buf bytes.Buffer
	if err := flattable.Write(&buf, tbl, flattable.WriteOptions{BBox: true}); err != nil {
		return formatter.Fail(err)
	}
	if err := os.WriteFile(output, buf.Bytes(), 0o644); err != nil {
		return formatter.Fail(fmt.Errorf("write %s: %w", output, err))
	}
	return formatter.Success(ImportResult{Output: output, Rows: len(tbl.Rows), Keypoints: tbl.Keypoints})
}
