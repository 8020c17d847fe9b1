package cvat

import (
	"slices"
	"strconv"

	"github.com/roach88/poseconv/internal/pose"
)

// ExportOptions holds the fixed attribute values written by Export.
type ExportOptions struct {
	Version       string
	Subset        string
	TaskID        string
	Width         string
	Height        string
	BoxLabel      string
	SkeletonLabel string
	Source        string
}

// DefaultExportOptions returns the attribute values the annotation tool
// project was created with.
func DefaultExportOptions() ExportOptions {
	return ExportOptions{
		Version:       "1.1",
		Subset:        "default",
		TaskID:        "2",
		Width:         "1280",
		Height:        "720",
		BoxLabel:      "Bounding Box",
		SkeletonLabel: "RatSkeleton",
		Source:        "file",
	}
}

// Export converts a flat table into a document.
//
// Keypoints are emitted in sorted order regardless of t.Keypoints order.
// Every image gets exactly one skeleton with one point per keypoint; a point
// is hidden with the sentinel coordinate when its row lacks either value.
// A box is emitted only when the row has all four corners.
func Export(t *pose.Table, meta *RawElement, opts ExportOptions) *Document {
	keypoints := slices.Clone(t.Keypoints)
	slices.Sort(keypoints)

	doc := &Document{
		Version: opts.Version,
		Meta:    meta,
		Images:  make([]Image, 0, len(t.Rows)),
	}

	for i, row := range t.Rows {
		img := Image{
			ID:     strconv.Itoa(i),
			Name:   row.Filename,
			Subset: opts.Subset,
			TaskID: opts.TaskID,
			Width:  opts.Width,
			Height: opts.Height,
		}

		if row.BBox != nil {
			img.Boxes = append(img.Boxes, Box{
				Label:    opts.BoxLabel,
				Source:   opts.Source,
				Occluded: "0",
				XTL:      row.BBox.XTL,
				YTL:      row.BBox.YTL,
				XBR:      row.BBox.XBR,
				YBR:      row.BBox.YBR,
				ZOrder:   "0",
			})
		}

		skel := Skeleton{
			Label:  opts.SkeletonLabel,
			Source: opts.Source,
			ZOrder: "0",
			Points: make([]Point, 0, len(keypoints)),
		}
		for _, kp := range keypoints {
			p := row.Point(kp)
			outside := OutsideVisible
			if !p.Visible {
				outside = OutsideHidden
			}
			coords := p.Coords()
			skel.Points = append(skel.Points, Point{
				Label:    kp,
				Source:   opts.Source,
				Outside:  outside,
				Occluded: "0",
				Coords:   &coords,
			})
		}
		img.Skeletons = append(img.Skeletons, skel)

		doc.Images = append(doc.Images, img)
	}

	return doc
}
