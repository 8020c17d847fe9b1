package pose

import "strings"

// Sentinel coordinate text written for a point that was never provided.
const (
	SentinelX = "0.0"
	SentinelY = "0.0"
)

// Axis suffixes used by flat tables (nose-x, nose-y) and the coord level of
// structured tables.
const (
	AxisX       = "x"
	AxisY       = "y"
	SuffixX     = "-" + AxisX
	SuffixY     = "-" + AxisY
	BBoxPrefix  = "bbox_"
	FilenameCol = "filename"
)

// Bounding box corner columns in a flat table.
const (
	BBoxTLX = "bbox_tl-x"
	BBoxTLY = "bbox_tl-y"
	BBoxBRX = "bbox_br-x"
	BBoxBRY = "bbox_br-y"
)

// BBoxColumns lists the corner columns in header order.
var BBoxColumns = []string{BBoxTLX, BBoxTLY, BBoxBRX, BBoxBRY}

// KeypointSpec is a keypoint name plus its anatomical group.
// Group is -1 when the keypoint belongs to no group.
type KeypointSpec struct {
	Name  string `json:"name"`
	Group int    `json:"group"`
}

// Point is one keypoint observation.
type Point struct {
	X       string `json:"x"`
	Y       string `json:"y"`
	Visible bool   `json:"visible"`
}

// Unset returns the point recorded for a keypoint that has no coordinate.
func Unset() Point {
	return Point{X: SentinelX, Y: SentinelY, Visible: false}
}

// NewPoint builds a point from literal cell values, kept as given. Either
// value being empty or blank makes the whole point unset.
func NewPoint(x, y string) Point {
	if blank(x) || blank(y) {
		return Unset()
	}
	return Point{X: x, Y: y, Visible: true}
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// Coords renders the point as "x,y".
func (p Point) Coords() string {
	return p.X + "," + p.Y
}

// Cells returns the flat-table cell values for the point. Unset points
// produce two empty cells.
func (p Point) Cells() (string, string) {
	if !p.Visible {
		return "", ""
	}
	return p.X, p.Y
}

// BoundingBox holds the literal corner values of an image's box.
type BoundingBox struct {
	XTL string `json:"xtl"`
	YTL string `json:"ytl"`
	XBR string `json:"xbr"`
	YBR string `json:"ybr"`
}

// NewBoundingBox returns nil unless all four corners are non-blank. Corner
// values are kept as given.
func NewBoundingBox(xtl, ytl, xbr, ybr string) *BoundingBox {
	if blank(xtl) || blank(ytl) || blank(xbr) || blank(ybr) {
		return nil
	}
	return &BoundingBox{XTL: xtl, YTL: ytl, XBR: xbr, YBR: ybr}
}

// ImageRecord is one row of a flat table / one image of a document.
type ImageRecord struct {
	Filename string           `json:"filename"`
	Subject  string           `json:"subject,omitempty"`
	BBox     *BoundingBox     `json:"bbox,omitempty"`
	Points   map[string]Point `json:"points"`
}

// Point returns the observation for name, or an unset point when the record
// has none.
func (r ImageRecord) Point(name string) Point {
	if p, ok := r.Points[name]; ok {
		return p
	}
	return Unset()
}

// Table is a flat coordinate table: rows plus the ordered keypoint names.
type Table struct {
	Keypoints []string      `json:"keypoints"`
	Rows      []ImageRecord `json:"rows"`
}

// SubjectPartition groups the records of one subject in source order.
type SubjectPartition struct {
	Subject string        `json:"subject"`
	Records []ImageRecord `json:"records"`
}
