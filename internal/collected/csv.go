package collected

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/roach88/poseconv/internal/pose"
)

// WriteCSV writes t as three header rows followed by one row per image.
// The first cell of each header row names its level.
func WriteCSV(w io.Writer, t *pose.StructuredTable) error {
	cw := csv.NewWriter(w)

	width := len(t.Columns) + 1
	scorers := make([]string, 0, width)
	bodyparts := make([]string, 0, width)
	coords := make([]string, 0, width)
	scorers = append(scorers, pose.LevelScorer)
	bodyparts = append(bodyparts, pose.LevelBodyparts)
	coords = append(coords, pose.LevelCoords)
	for _, c := range t.Columns {
		scorers = append(scorers, c.Scorer)
		bodyparts = append(bodyparts, c.Bodypart)
		coords = append(coords, c.Coord)
	}
	for _, rec := range [][]string{scorers, bodyparts, coords} {
		if err := cw.Write(rec); err != nil {
			return err
		}
	}

	rec := make([]string, width)
	for i, idx := range t.Index {
		rec[0] = idx
		copy(rec[1:], t.Values[i])
		if err := cw.Write(rec); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// ReadCSV parses the text encoding.
func ReadCSV(r io.Reader, source string) (*pose.StructuredTable, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	levels := []string{pose.LevelScorer, pose.LevelBodyparts, pose.LevelCoords}
	header := make([][]string, len(levels))
	for i, level := range levels {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil, pose.InputFormatError(source, fmt.Sprintf("missing %q header row", level), nil)
		}
		if err != nil {
			return nil, pose.InputFormatError(source, "parse header", err)
		}
		if rec[0] != level {
			return nil, pose.InputFormatError(source, fmt.Sprintf("header row %d is %q, want %q", i+1, rec[0], level), nil)
		}
		if i > 0 && len(rec) != len(header[0]) {
			return nil, pose.InputFormatError(source, fmt.Sprintf("header row %d has %d cells, want %d", i+1, len(rec), len(header[0])), nil)
		}
		header[i] = rec
	}

	t := &pose.StructuredTable{}
	for c := 1; c < len(header[0]); c++ {
		t.Columns = append(t.Columns, pose.Column{
			Scorer:   header[0][c],
			Bodypart: header[1][c],
			Coord:    header[2][c],
		})
	}

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, pose.InputFormatError(source, "parse row", err)
		}
		if err := t.AppendRow(rec[0], rec[1:]); err != nil {
			line, _ := cr.FieldPos(0)
			return nil, pose.InputFormatError(source, fmt.Sprintf("line %d", line), err)
		}
	}
	return t, nil
}

// ReadCSVFile reads the text encoding from path.
func ReadCSVFile(path string) (*pose.StructuredTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, pose.InputFormatError(path, "open", err)
	}
	defer f.Close()
	return ReadCSV(f, path)
}
