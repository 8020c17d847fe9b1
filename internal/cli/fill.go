package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/poseconv/internal/cvat"
	"github.com/roach88/poseconv/internal/placeholder"
	"github.com/roach88/poseconv/internal/pose"
	"github.com/roach88/poseconv/internal/skeleton"
)

// FillResult summarizes a placeholder run.
type FillResult struct {
	Output     string `json:"output"`
	Groups     string `json:"groups"`
	Visibility string `json:"visibility"`
	*placeholder.Report
}

// Text renders the result for terminals.
func (r FillResult) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "✓ Placed %d keypoint(s) in %d of %d image(s) (groups %s, %s) -> %s\n",
		r.Placed, r.Anchored, r.Images, r.Groups, r.Visibility, r.Output)
	for _, c := range r.Skipped {
		fmt.Fprintf(&b, "  skipped %s\n", c)
	}
	return b.String()
}

// NewFillCommand creates the fill command.
func NewFillCommand(rootOpts *RootOptions) *cobra.Command {
	var output, groups, visibility string

	cmd := &cobra.Command{
		Use:   "fill <document.xml>",
		Short: "Place still-unset keypoints next to each bounding box",
		Long: `Give every hidden sentinel keypoint a synthetic coordinate near its image's
bounding box, laid out by anatomical group.

--groups selects the group table: v1 (nose ungrouped), v2 (nose in the left
head group), or a .cue file. --visibility selects whether placed points are
revealed or kept hidden. Both must be given here or in the config file.
Images without a bounding box are skipped. Re-running never moves a point
that already holds a real coordinate.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          func(cmd *cobra.Command, args []string) error {
			return runFill(rootOpts, cmd, args[0], output, groups, visibility)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output document path (may equal the input)")
	cmd.Flags().StringVar(&groups, "groups", "", "group table: v1, v2 or a .cue file (default from config)")
	cmd.Flags().StringVar(&visibility, "visibility", "", "reveal or keep-hidden (default from config)")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func runFill(opts *RootOptions, cmd *cobra.Command, docPath, output, groups, visibility string) error {
	formatter := opts.formatter(cmd)
	cfg := opts.config()

	if groups == "" {
		groups = cfg.Placeholder.GroupsVersion
	}
	if groups == "" {
		return formatter.Fail(pose.ConfigurationError("", fmt.Sprintf("a group table is required: pass --groups (%s or a .cue file) or set placeholder.groups_version", strings.Join(skeleton.Versions(), ", ")), nil))
	}
	if visibility == "" {
		visibility = cfg.Placeholder.Visibility
	}
	vis, err := placeholder.ParseVisibility(visibility)
	if err != nil {
		return formatter.Fail(err)
	}

	table, err := skeleton.Load(groups)
	if err != nil {
		return formatter.Fail(err)
	}
	doc, err := cvat.ReadFile(docPath)
	if err != nil {
		return formatter.Fail(err)
	}

	report, err := placeholder.Fill(doc, placeholder.Options{
		Groups:       table,
		Visibility:   vis,
		BoxLabel:     cfg.Export.BoxLabel,
		GroupSpacing: cfg.Placeholder.GroupSpacing,
		PointSpacing: cfg.Placeholder.PointSpacing,
		Logger:       opts.logger(),
	})
	if err != nil {
		return formatter.Fail(err)
	}
	if err := cvat.WriteFile(output, doc); err != nil {
		return formatter.Fail(err)
	}

	opts.logger().Info("filled placeholders",
		zap.String("document", docPath),
		zap.String("groups", table.Version),
		zap.Int("placed", report.Placed))
	return formatter.Success(FillResult{Output: output, Groups: table.Version, Visibility: string(vis), Report: report})
}
