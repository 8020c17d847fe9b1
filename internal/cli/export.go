package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/poseconv/internal/cvat"
	"github.com/roach88/poseconv/internal/flattable"
)

// ExportResult summarizes an export.
type ExportResult struct {
	Output    string   `json:"output"`
	Images    int      `json:"images"`
	Boxes     int      `json:"boxes"`
	Keypoints []string `json:"keypoints"`
}

// Text renders the result for terminals.
func (r ExportResult) Text() string {
	return fmt.Sprintf("✓ Exported %d image(s), %d box(es), %d keypoint(s) to %s\n",
		r.Images, r.Boxes, len(r.Keypoints), r.Output)
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	var metaPath, output string

	cmd := &cobra.Command{
		Use:   "export <table.csv>",
		Short: "Convert a flat coordinate table into an interchange document",
		Long: `Convert a flat coordinate table into an annotation-tool interchange document.

Keypoints are written in sorted order. A point whose x or y cell is empty is
written hidden with the sentinel coordinate "0.0,0.0". The --meta file is
spliced verbatim after the version element and must be well-formed.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          func(cmd *cobra.Command, args []string) error {
			return runExport(rootOpts, cmd, args[0], metaPath, output)
		},
	}

	cmd.Flags().StringVar(&metaPath, "meta", "", "metadata block to splice into the document")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output document path")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func runExport(opts *RootOptions, cmd *cobra.Command, tablePath, metaPath, output string) error {
	formatter := opts.formatter(cmd)
	logger := opts.logger()

	parsed, err := flattable.ReadFile(tablePath)
	if err != nil {
		return formatter.Fail(err)
	}
	if len(parsed.Header.Extra) > 0 {
		logger.Warn("ignoring columns", zap.Strings("columns", parsed.Header.Extra))
	}

	var meta *cvat.RawElement
	if strings.TrimSpace(metaPath) != "" {
		if meta, err = cvat.ReadMetaFile(metaPath); err != nil {
			return formatter.Fail(err)
		}
	}

	tbl := parsed.Table(flattable.Sorted)
	doc := cvat.Export(tbl, meta, opts.config().ExportOptions())
	if err := cvat.WriteFile(output, doc); err != nil {
		return formatter.Fail(err)
	}

	res := ExportResult{Output: output, Images: len(doc.Images), Keypoints: tbl.Keypoints}
	for _, img := range doc.Images {
		res.Boxes += len(img.Boxes)
	}
	logger.Info("exported document",
		zap.String("table", tablePath),
		zap.String("output", output),
		zap.Int("images", res.Images))
	return formatter.Success(res)
}
