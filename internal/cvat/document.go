package cvat

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/roach88/poseconv/internal/pose"
)

// Attribute values used by the document format.
const (
	OutsideHidden  = "1"
	OutsideVisible = "0"
)

// RawElement is an element kept verbatim: name, attributes and inner markup.
type RawElement struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Inner   []byte     `xml:",innerxml"`
}

// Document is the <annotations> root.
type Document struct {
	XMLName xml.Name     `xml:"annotations"`
	Version string       `xml:"version"`
	Meta    *RawElement  `xml:"meta"`
	Images  []Image      `xml:"image"`
	Extra   []RawElement `xml:",any"`
}

// Image is one annotated frame.
type Image struct {
	ID        string       `xml:"id,attr"`
	Name      string       `xml:"name,attr"`
	Subset    string       `xml:"subset,attr,omitempty"`
	TaskID    string       `xml:"task_id,attr,omitempty"`
	Width     string       `xml:"width,attr,omitempty"`
	Height    string       `xml:"height,attr,omitempty"`
	Attrs     []xml.Attr   `xml:",any,attr"`
	Boxes     []Box        `xml:"box"`
	Skeletons []Skeleton   `xml:"skeleton"`
	Extra     []RawElement `xml:",any"`
}

// Box is a labeled bounding box.
type Box struct {
	Label    string       `xml:"label,attr"`
	Source   string       `xml:"source,attr,omitempty"`
	Occluded string       `xml:"occluded,attr,omitempty"`
	XTL      string       `xml:"xtl,attr"`
	YTL      string       `xml:"ytl,attr"`
	XBR      string       `xml:"xbr,attr"`
	YBR      string       `xml:"ybr,attr"`
	ZOrder   string       `xml:"z_order,attr,omitempty"`
	Attrs    []xml.Attr   `xml:",any,attr"`
	Extra    []RawElement `xml:",any"`
}

// Skeleton groups the keypoints of one subject in an image.
type Skeleton struct {
	Label  string       `xml:"label,attr"`
	Source string       `xml:"source,attr,omitempty"`
	ZOrder string       `xml:"z_order,attr,omitempty"`
	Attrs  []xml.Attr   `xml:",any,attr"`
	Points []Point      `xml:"points"`
	Extra  []RawElement `xml:",any"`
}

// Point is one keypoint of a skeleton. Coords holds "x,y".
type Point struct {
	Label    string       `xml:"label,attr"`
	Source   string       `xml:"source,attr,omitempty"`
	Outside  string       `xml:"outside,attr,omitempty"`
	Occluded string       `xml:"occluded,attr,omitempty"`
	Coords   *string      `xml:"points,attr"`
	Attrs    []xml.Attr   `xml:",any,attr"`
	Extra    []RawElement `xml:",any"`
}

// Hidden reports whether the point is flagged outside.
func (p *Point) Hidden() bool {
	return p.Outside == OutsideHidden
}

// CoordText returns the points attribute, or "" when absent.
func (p *Point) CoordText() string {
	if p.Coords == nil {
		return ""
	}
	return *p.Coords
}

// SetCoords replaces the points attribute.
func (p *Point) SetCoords(text string) {
	p.Coords = &text
}

// Box returns the first box with the given label, or nil.
func (img *Image) Box(label string) *Box {
	for i := range img.Boxes {
		if img.Boxes[i].Label == label {
			return &img.Boxes[i]
		}
	}
	return nil
}

// Decode parses a document. Malformed markup is an INPUT_FORMAT error.
func Decode(r io.Reader, source string) (*Document, error) {
	var doc Document
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, pose.InputFormatError(source, "decode document", err)
	}
	return &doc, nil
}

// ReadFile decodes the document at path.
func ReadFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, pose.InputFormatError(path, "open document", err)
	}
	defer f.Close()
	return Decode(f, path)
}

// Encode writes doc with an XML declaration, indented by two spaces.
func Encode(w io.Writer, doc *Document) error {
	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	buf.Write(out)
	buf.WriteByte('\n')
	_, err = w.Write(buf.Bytes())
	return err
}

// WriteFile encodes doc to path through a temporary file in the same
// directory, so readers never see a partial document.
func WriteFile(path string, doc *Document) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp document: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Encode(tmp, doc); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp document: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace document: %w", err)
	}
	return nil
}
