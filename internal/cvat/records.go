package cvat

import (
	"slices"
	"strings"

	"github.com/roach88/poseconv/internal/pose"
)

// Records returns one ImageRecord per image, reading the box with boxLabel
// and the first skeleton. Hidden points become unset regardless of the
// coordinate they hold, so placeholder hints never leak into a table.
func (d *Document) Records(boxLabel string) []pose.ImageRecord {
	out := make([]pose.ImageRecord, 0, len(d.Images))
	for i := range d.Images {
		img := &d.Images[i]
		rec := pose.ImageRecord{
			Filename: img.Name,
			Points:   map[string]pose.Point{},
		}
		if box := img.Box(boxLabel); box != nil {
			rec.BBox = pose.NewBoundingBox(box.XTL, box.YTL, box.XBR, box.YBR)
		}
		if len(img.Skeletons) > 0 {
			for _, p := range img.Skeletons[0].Points {
				if p.Hidden() {
					rec.Points[p.Label] = pose.Unset()
					continue
				}
				x, y, _ := strings.Cut(p.CoordText(), ",")
				rec.Points[p.Label] = pose.NewPoint(x, y)
			}
		}
		out = append(out, rec)
	}
	return out
}

// Keypoints returns the sorted union of point labels across all skeletons.
func (d *Document) Keypoints() []string {
	var names []string
	for i := range d.Images {
		for _, skel := range d.Images[i].Skeletons {
			for _, p := range skel.Points {
				if !slices.Contains(names, p.Label) {
					names = append(names, p.Label)
				}
			}
		}
	}
	slices.Sort(names)
	return names
}

// Table regenerates a flat table from the document.
func (d *Document) Table(boxLabel string) *pose.Table {
	return &pose.Table{
		Keypoints: d.Keypoints(),
		Rows:      d.Records(boxLabel),
	}
}
