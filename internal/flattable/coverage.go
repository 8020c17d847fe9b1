package flattable

import "github.com/roach88/poseconv/internal/pose"

// KeypointCoverage counts the rows that label one keypoint.
type KeypointCoverage struct {
	Name    string `json:"name"`
	Labeled int    `json:"labeled"`
}

// Coverage summarizes which keypoints of a table carry any coordinate.
type Coverage struct {
	Rows      int                `json:"rows"`
	Keypoints []KeypointCoverage `json:"keypoints"`
	Labeled   []string           `json:"labeled"`
	Missing   []string           `json:"missing"`
}

// Analyze reports per-keypoint labeled-row counts in t.Keypoints order.
// A keypoint is missing when no row has a visible point for it.
func Analyze(t *pose.Table) Coverage {
	cov := Coverage{Rows: len(t.Rows), Labeled: []string{}, Missing: []string{}}
	for _, kp := range t.Keypoints {
		n := 0
		for _, row := range t.Rows {
			if row.Point(kp).Visible {
				n++
			}
		}
		cov.Keypoints = append(cov.Keypoints, KeypointCoverage{Name: kp, Labeled: n})
		if n > 0 {
			cov.Labeled = append(cov.Labeled, kp)
		} else {
			cov.Missing = append(cov.Missing, kp)
		}
	}
	return cov
}
