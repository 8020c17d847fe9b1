package flattable

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/poseconv/internal/pose"
)

// Order selects how keypoint names are ordered in a Table.
type Order int

const (
	// FirstSeen keeps the header order of the -x columns.
	FirstSeen Order = iota
	// Sorted orders keypoint names lexically.
	Sorted
)

// Header describes the columns of a flat table.
type Header struct {
	Columns  []string
	Filename int // column index of filename
	BBox     map[string]int
	X        map[string]int
	Y        map[string]int
	// Keypoints holds keypoint names in first-seen order.
	Keypoints []string
	// Extra lists columns that are neither filename, bbox nor keypoint axes.
	Extra []string
}

// HasBBox reports whether all four bounding-box corner columns exist.
func (h *Header) HasBBox() bool {
	for _, c := range pose.BBoxColumns {
		if _, ok := h.BBox[c]; !ok {
			return false
		}
	}
	return true
}

// KeypointOrder returns the keypoint names in the requested order.
func (h *Header) KeypointOrder(order Order) []string {
	out := slices.Clone(h.Keypoints)
	if order == Sorted {
		slices.Sort(out)
	}
	return out
}

// Parsed is a decoded flat table.
type Parsed struct {
	Source string
	Header *Header
	Rows   []pose.ImageRecord
}

// Table returns the rows with keypoints in the requested order.
func (p *Parsed) Table(order Order) *pose.Table {
	return &pose.Table{
		Keypoints: p.Header.KeypointOrder(order),
		Rows:      p.Rows,
	}
}

// ReadFile opens and decodes the flat table at path.
func ReadFile(path string) (*Parsed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, pose.InputFormatError(path, "open table", err)
	}
	defer f.Close()
	return Read(f, path)
}

// Read decodes a flat table. source names the input in errors.
// A missing filename column or a row without a filename is an INPUT_FORMAT
// error for the whole table.
func Read(r io.Reader, source string) (*Parsed, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	record, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, pose.InputFormatError(source, "table is empty", nil)
	}
	if err != nil {
		return nil, pose.InputFormatError(source, "read header", err)
	}

	header, err := parseHeader(record)
	if err != nil {
		return nil, pose.InputFormatError(source, err.Error(), nil)
	}

	parsed := &Parsed{Source: source, Header: header}
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, pose.InputFormatError(source, "read row", err)
		}
		line, _ := cr.FieldPos(0)

		row := decodeRow(header, record)
		if row.Filename == "" {
			return nil, pose.InputFormatError(source, fmt.Sprintf("line %d: row has no filename", line), nil)
		}
		parsed.Rows = append(parsed.Rows, row)
	}

	return parsed, nil
}

func parseHeader(record []string) (*Header, error) {
	h := &Header{
		Filename: -1,
		BBox:     map[string]int{},
		X:        map[string]int{},
		Y:        map[string]int{},
	}

	for i, raw := range record {
		name := normalize(raw)
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		h.Columns = append(h.Columns, name)

		switch {
		case name == pose.FilenameCol:
			if h.Filename >= 0 {
				return nil, fmt.Errorf("duplicate %s column", pose.FilenameCol)
			}
			h.Filename = i
		case strings.HasPrefix(name, pose.BBoxPrefix):
			h.BBox[name] = i
		case strings.HasSuffix(name, pose.SuffixX) && len(name) > len(pose.SuffixX):
			kp := strings.TrimSuffix(name, pose.SuffixX)
			if _, dup := h.X[kp]; dup {
				return nil, fmt.Errorf("duplicate column %q", name)
			}
			h.X[kp] = i
			h.Keypoints = append(h.Keypoints, kp)
		case strings.HasSuffix(name, pose.SuffixY) && len(name) > len(pose.SuffixY):
			kp := strings.TrimSuffix(name, pose.SuffixY)
			if _, dup := h.Y[kp]; dup {
				return nil, fmt.Errorf("duplicate column %q", name)
			}
			h.Y[kp] = i
		default:
			h.Extra = append(h.Extra, name)
		}
	}

	if h.Filename < 0 {
		return nil, fmt.Errorf("missing %s column", pose.FilenameCol)
	}

	// a -y column without its -x partner is not a keypoint
	for kp, i := range h.Y {
		if _, ok := h.X[kp]; !ok {
			h.Extra = append(h.Extra, h.Columns[i])
			delete(h.Y, kp)
		}
	}
	slices.Sort(h.Extra)
	return h, nil
}

func decodeRow(h *Header, record []string) pose.ImageRecord {
	cell := func(i int) string {
		if i < 0 || i >= len(record) {
			return ""
		}
		return record[i]
	}
	lookup := func(m map[string]int, key string) string {
		i, ok := m[key]
		if !ok {
			return ""
		}
		return cell(i)
	}

	row := pose.ImageRecord{
		Filename: normalize(cell(h.Filename)),
		Points:   make(map[string]pose.Point, len(h.Keypoints)),
	}
	if h.HasBBox() {
		row.BBox = pose.NewBoundingBox(
			lookup(h.BBox, pose.BBoxTLX),
			lookup(h.BBox, pose.BBoxTLY),
			lookup(h.BBox, pose.BBoxBRX),
			lookup(h.BBox, pose.BBoxBRY),
		)
	}
	for _, kp := range h.Keypoints {
		row.Points[kp] = pose.NewPoint(lookup(h.X, kp), lookup(h.Y, kp))
	}
	return row
}

func normalize(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
