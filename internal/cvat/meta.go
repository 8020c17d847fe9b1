package cvat

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"os"

	"github.com/roach88/poseconv/internal/pose"
)

// ParseMeta validates a metadata block and returns it as a RawElement.
// The block must be exactly one well-formed element; anything else is an
// INPUT_FORMAT error, since a document with a broken metadata block is
// rejected by the annotation tool.
func ParseMeta(raw []byte, source string) (*RawElement, error) {
	raw = bytes.TrimPrefix(raw, []byte("\ufeff"))

	var meta RawElement
	dec := xml.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&meta); err != nil {
		return nil, pose.InputFormatError(source, "malformed metadata block", err)
	}

	// only whitespace, comments and processing instructions may follow
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, pose.InputFormatError(source, "malformed metadata block", err)
		}
		switch t := tok.(type) {
		case xml.CharData:
			if len(bytes.TrimSpace(t)) > 0 {
				return nil, pose.InputFormatError(source, "metadata block has trailing text", nil)
			}
		case xml.StartElement:
			return nil, pose.InputFormatError(source, "metadata block must hold a single element, found second <"+t.Name.Local+">", nil)
		}
	}

	return &meta, nil
}

// ReadMetaFile reads and validates the metadata block at path.
func ReadMetaFile(path string) (*RawElement, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, pose.InputFormatError(path, "read metadata block", err)
	}
	return ParseMeta(raw, path)
}
