package flattable

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/roach88/poseconv/internal/pose"
)

// WriteOptions controls flat table encoding.
type WriteOptions struct {
	// BBox adds the four bounding-box corner columns after filename.
	BBox bool
}

// Write encodes t as a flat table. Keypoint columns follow t.Keypoints;
// unset points are written as two empty cells.
func Write(w io.Writer, t *pose.Table, opts WriteOptions) error {
	cw := csv.NewWriter(w)

	header := []string{pose.FilenameCol}
	if opts.BBox {
		header = append(header, pose.BBoxColumns...)
	}
	for _, kp := range t.Keypoints {
		header = append(header, kp+pose.SuffixX, kp+pose.SuffixY)
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, row := range t.Rows {
		record := make([]string, 0, len(header))
		record = append(record, row.Filename)
		if opts.BBox {
			if row.BBox != nil {
				record = append(record, row.BBox.XTL, row.BBox.YTL, row.BBox.XBR, row.BBox.YBR)
			} else {
				record = append(record, "", "", "", "")
			}
		}
		for _, kp := range t.Keypoints {
			x, y := row.Point(kp).Cells()
			record = append(record, x, y)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row %q: %w", row.Filename, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
