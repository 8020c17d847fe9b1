package placeholder

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/roach88/poseconv/internal/cvat"
	"github.com/roach88/poseconv/internal/pose"
	"github.com/roach88/poseconv/internal/skeleton"
)

// Visibility selects the outside flag written on placed points.
type Visibility string

const (
	// Reveal clears the hidden flag: the placeholder becomes a visible guess.
	Reveal Visibility = "reveal"
	// KeepHidden leaves the point hidden: the placeholder is a positional
	// hint that visibility-filtering consumers still ignore.
	KeepHidden Visibility = "keep-hidden"
)

// Default spacing in image pixels.
const (
	DefaultGroupSpacing = 40.0
	DefaultPointSpacing = 15.0
)

// ParseVisibility validates a visibility mode name.
func ParseVisibility(s string) (Visibility, error) {
	switch v := Visibility(strings.TrimSpace(s)); v {
	case Reveal, KeepHidden:
		return v, nil
	case "":
		return "", pose.ConfigurationError("", "placeholder visibility is required (reveal or keep-hidden)", nil)
	default:
		return "", pose.ConfigurationError("", fmt.Sprintf("unknown placeholder visibility %q (reveal or keep-hidden)", s), nil)
	}
}

// Options configures Fill.
type Options struct {
	Groups       *skeleton.Table
	Visibility   Visibility
	BoxLabel     string
	GroupSpacing float64
	PointSpacing float64
	Logger       *zap.Logger
}

// Report summarizes one Fill run.
type Report struct {
	Images   int              `json:"images"`
	Anchored int              `json:"anchored"`
	Placed   int              `json:"placed"`
	Skipped  []pose.Condition `json:"skipped"`
}

// Fill places every hidden sentinel point of doc in place.
//
// Images without a usable anchor box are skipped and reported; they are
// not errors. Options missing a group table or visibility mode return a
// CONFIGURATION error before doc is touched.
func Fill(doc *cvat.Document, opts Options) (*Report, error) {
	if opts.Groups == nil {
		return nil, pose.ConfigurationError("", "placeholder group table is required", nil)
	}
	vis, err := ParseVisibility(string(opts.Visibility))
	if err != nil {
		return nil, err
	}
	if opts.GroupSpacing == 0 {
		opts.GroupSpacing = DefaultGroupSpacing
	}
	if opts.PointSpacing == 0 {
		opts.PointSpacing = DefaultPointSpacing
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	outside := cvat.OutsideVisible
	if vis == KeepHidden {
		outside = cvat.OutsideHidden
	}

	report := &Report{Images: len(doc.Images), Skipped: []pose.Condition{}}
	for i := range doc.Images {
		img := &doc.Images[i]

		xtl, ytl, cond := anchor(img, opts.BoxLabel)
		if cond != nil {
			logger.Warn("skipping image without anchor",
				zap.String("image", img.Name),
				zap.String("detail", cond.Detail))
			report.Skipped = append(report.Skipped, *cond)
			continue
		}
		report.Anchored++

		placed := 0
		for s := range img.Skeletons {
			placed += fillSkeleton(&img.Skeletons[s], opts, xtl, ytl, outside)
		}
		if placed > 0 {
			logger.Debug("placed keypoints", zap.String("image", img.Name), zap.Int("count", placed))
		}
		report.Placed += placed
	}

	return report, nil
}

func anchor(img *cvat.Image, label string) (float64, float64, *pose.Condition) {
	box := img.Box(label)
	if box == nil {
		return 0, 0, &pose.Condition{
			Code:    pose.CondMissingAnchor,
			Subject: img.Name,
			Detail:  fmt.Sprintf("no %q box", label),
		}
	}
	xtl, errX := strconv.ParseFloat(strings.TrimSpace(box.XTL), 64)
	ytl, errY := strconv.ParseFloat(strings.TrimSpace(box.YTL), 64)
	if errX != nil || errY != nil {
		return 0, 0, &pose.Condition{
			Code:    pose.CondMissingAnchor,
			Subject: img.Name,
			Detail:  fmt.Sprintf("box corner %q,%q is not numeric", box.XTL, box.YTL),
		}
	}
	return xtl, ytl, nil
}

func fillSkeleton(skel *cvat.Skeleton, opts Options, xtl, ytl float64, outside string) int {
	placed := 0
	for gi := range opts.Groups.Groups {
		x := xtl + float64(gi)*opts.GroupSpacing
		j := 0
		for p := range skel.Points {
			pt := &skel.Points[p]
			if !opts.Groups.Contains(gi, pt.Label) || !unset(pt) {
				continue
			}
			pt.SetCoords(fmt.Sprintf("%.2f,%.2f", x, ytl-float64(j)*opts.PointSpacing))
			pt.Outside = outside
			j++
			placed++
		}
	}
	return placed
}

// unset reports whether p is hidden and still holds the sentinel. A missing
// points attribute counts as the sentinel.
func unset(p *cvat.Point) bool {
	if !p.Hidden() {
		return false
	}
	if p.Coords == nil {
		return true
	}
	return IsSentinel(p.CoordText())
}

// IsSentinel reports whether text spells the (0,0) sentinel with one or two
// decimals per axis, ignoring whitespace.
func IsSentinel(text string) bool {
	compact := strings.Join(strings.Fields(text), "")
	x, y, ok := strings.Cut(compact, ",")
	if !ok {
		return false
	}
	return sentinelAxis(x) && sentinelAxis(y)
}

func sentinelAxis(s string) bool {
	return s == "0.0" || s == "0.00"
}
