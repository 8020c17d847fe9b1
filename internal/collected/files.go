package collected

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/roach88/poseconv/internal/pose"
)

// File naming.
const (
	Prefix    = "CollectedData_"
	ExtCSV    = ".csv"
	ExtSQLite = ".sqlite"
)

// Stem returns the shared file stem for a labeler.
func Stem(scorer string) string {
	return Prefix + scorer
}

// Pair locates both encodings of one store. A missing encoding has an
// empty path.
type Pair struct {
	Dir    string `json:"dir"`
	Stem   string `json:"stem"`
	CSV    string `json:"csv,omitempty"`
	SQLite string `json:"sqlite,omitempty"`
}

// PairFor returns the expected paths of stem in dir, whether or not the
// files exist.
func PairFor(dir, stem string) Pair {
	return Pair{
		Dir:    dir,
		Stem:   stem,
		CSV:    filepath.Join(dir, stem+ExtCSV),
		SQLite: filepath.Join(dir, stem+ExtSQLite),
	}
}

// Complete reports whether both encodings are present.
func (p Pair) Complete() bool {
	return p.CSV != "" && p.SQLite != ""
}

// Discover lists the stores in dir, pairing encodings by stem. Results are
// sorted by stem.
func Discover(dir string) ([]Pair, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	byStem := map[string]*Pair{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, Prefix) {
			continue
		}
		ext := filepath.Ext(name)
		if ext != ExtCSV && ext != ExtSQLite {
			continue
		}
		stem := strings.TrimSuffix(name, ext)
		p, ok := byStem[stem]
		if !ok {
			p = &Pair{Dir: dir, Stem: stem}
			byStem[stem] = p
		}
		if ext == ExtCSV {
			p.CSV = filepath.Join(dir, name)
		} else {
			p.SQLite = filepath.Join(dir, name)
		}
	}

	out := make([]Pair, 0, len(byStem))
	for _, p := range byStem {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Stem < out[j].Stem })
	return out, nil
}

// WriteBoth writes t in both encodings to p. Both encodings are staged
// first; if replacing the text encoding fails after the sidecar was swapped
// in, the previous sidecar is restored, so the pair never mixes versions.
func WriteBoth(ctx context.Context, p Pair, t *pose.StructuredTable, meta Meta) error {
	csvTmp, err := stageCSV(p.CSV, t)
	if err != nil {
		return err
	}
	sqlTmp, err := stageSQLite(ctx, p.SQLite, t, meta)
	if err != nil {
		os.Remove(csvTmp)
		return err
	}

	backup, err := setAside(p.SQLite)
	if err != nil {
		os.Remove(csvTmp)
		os.Remove(sqlTmp)
		return err
	}
	if err := os.Rename(sqlTmp, p.SQLite); err != nil {
		os.Remove(csvTmp)
		os.Remove(sqlTmp)
		restore(backup, p.SQLite)
		return fmt.Errorf("replace %s: %w", p.SQLite, err)
	}
	if err := os.Rename(csvTmp, p.CSV); err != nil {
		os.Remove(csvTmp)
		restore(backup, p.SQLite)
		return fmt.Errorf("replace %s: %w", p.CSV, err)
	}
	if backup != "" {
		os.Remove(backup)
	}
	return nil
}

// setAside moves an existing file at path to a hidden backup next to it and
// returns the backup name. A missing file yields "".
func setAside(path string) (string, error) {
	if _, err := os.Lstat(path); errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".bak-*")
	if err != nil {
		return "", fmt.Errorf("back up %s: %w", path, err)
	}
	backup := f.Name()
	f.Close()
	if err := os.Rename(path, backup); err != nil {
		os.Remove(backup)
		return "", fmt.Errorf("back up %s: %w", path, err)
	}
	return backup, nil
}

// restore puts backup back at path, or removes path when there was nothing
// to back up.
func restore(backup, path string) {
	if backup == "" {
		os.Remove(path)
		return
	}
	os.Rename(backup, path)
}

// WriteCSVFile atomically replaces path with the text encoding of t.
func WriteCSVFile(path string, t *pose.StructuredTable) error {
	tmp, err := stageCSV(path, t)
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

// WriteSQLiteFile atomically replaces path with the binary encoding of t.
func WriteSQLiteFile(ctx context.Context, path string, t *pose.StructuredTable, meta Meta) error {
	tmp, err := stageSQLite(ctx, path, t, meta)
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

func stageCSV(target string, t *pose.StructuredTable) (string, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, t); err != nil {
		return "", fmt.Errorf("encode %s: %w", target, err)
	}
	f, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("stage %s: %w", target, err)
	}
	tmp := f.Name()
	if _, err := f.Write(buf.Bytes()); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("stage %s: %w", target, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("stage %s: %w", target, err)
	}
	return tmp, nil
}

func stageSQLite(ctx context.Context, target string, t *pose.StructuredTable, meta Meta) (string, error) {
	f, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("stage %s: %w", target, err)
	}
	tmp := f.Name()
	f.Close()

	s, err := Open(tmp)
	if err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("stage %s: %w", target, err)
	}
	if err := s.WriteTable(ctx, t, meta); err != nil {
		s.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("stage %s: %w", target, err)
	}
	if err := s.Close(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("stage %s: %w", target, err)
	}
	return tmp, nil
}

func requireFile(path string) error {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return pose.InputFormatError(path, "file does not exist", err)
	}
	if err != nil {
		return pose.InputFormatError(path, "stat", err)
	}
	if info.IsDir() {
		return pose.InputFormatError(path, "is a directory", nil)
	}
	return nil
}
