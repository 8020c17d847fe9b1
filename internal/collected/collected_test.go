package collected

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/poseconv/internal/pose"
)

func sampleTable(t *testing.T) *pose.StructuredTable {
	t.Helper()
	tbl := pose.NewStructuredTable("alice", []string{"nose", "tail_base"})
	require.NoError(t, tbl.AppendRow("labeled-data/r1/a.png", []string{"10.5", "20", "", ""}))
	require.NoError(t, tbl.AppendRow("labeled-data/r1/b.png", []string{"", "", "3", "4.25"}))
	return tbl
}

const sampleCSV = `scorer,alice,alice,alice,alice
bodyparts,nose,nose,tail_base,tail_base
coords,x,y,x,y
labeled-data/r1/a.png,10.5,20,,
labeled-data/r1/b.png,,,3,4.25
`

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleTable(t)))
	assert.Equal(t, sampleCSV, buf.String())
}

func TestReadCSV(t *testing.T) {
	got, err := ReadCSV(strings.NewReader(sampleCSV), "in.csv")
	require.NoError(t, err)
	if diff := cmp.Diff(sampleTable(t), got); diff != "" {
		t.Errorf("ReadCSV mismatch (-want +got):\n%s", diff)
	}
}

func TestReadCSV_Malformed(t *testing.T) {
	tests := map[string]string{
		"empty":           "",
		"wrong level":     "labeler,alice\nbodyparts,nose\ncoords,x\n",
		"missing coords":  "scorer,alice\nbodyparts,nose\n",
		"ragged header":   "scorer,alice,alice\nbodyparts,nose\ncoords,x,y\n",
		"ragged data row": "scorer,alice\nbodyparts,nose\ncoords,x\nimg.png,1,2\n",
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(in), "in.csv")
			require.Error(t, err)
			assert.True(t, pose.IsInputFormat(err), "got %v", err)
		})
	}
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "CollectedData_alice.sqlite")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.WriteTable(ctx, sampleTable(t), Meta{"build_id": "b-1"}))

	// A second write replaces the first.
	smaller := sampleTable(t).Select(func(c pose.Column) bool { return c.Bodypart == "nose" })
	require.NoError(t, s.WriteTable(ctx, smaller, Meta{"build_id": "b-2", "format": "ignored"}))
	require.NoError(t, s.Close())

	got, err := ReadSQLiteFile(ctx, path)
	require.NoError(t, err)
	if diff := cmp.Diff(smaller, got); diff != "" {
		t.Errorf("ReadSQLiteFile mismatch (-want +got):\n%s", diff)
	}

	meta, err := ReadSQLiteMeta(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, Meta{"format": FormatName, "scorer": "alice", "build_id": "b-2"}, meta)

	// No journal files left behind.
	_, err = os.Stat(path + "-wal")
	assert.True(t, os.IsNotExist(err))
}

func TestReadSQLiteFile_Rejects(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	_, err := ReadSQLiteFile(ctx, filepath.Join(dir, "missing.sqlite"))
	assert.True(t, pose.IsInputFormat(err))
	_, statErr := os.Stat(filepath.Join(dir, "missing.sqlite"))
	assert.True(t, os.IsNotExist(statErr), "reading must not create the file")

	notDB := filepath.Join(dir, "text.sqlite")
	require.NoError(t, os.WriteFile(notDB, []byte(sampleCSV), 0o644))
	_, err = ReadSQLiteFile(ctx, notDB)
	assert.True(t, pose.IsInputFormat(err))
}

func TestWriteBoth(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	p := PairFor(dir, Stem("alice"))

	require.NoError(t, WriteBoth(ctx, p, sampleTable(t), nil))

	fromCSV, err := ReadCSVFile(p.CSV)
	require.NoError(t, err)
	fromSQL, err := ReadSQLiteFile(ctx, p.SQLite)
	require.NoError(t, err)
	assert.True(t, fromCSV.Equal(fromSQL))
	assert.True(t, fromCSV.Equal(sampleTable(t)))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"CollectedData_alice.csv", "CollectedData_alice.sqlite"}, names)
}

func TestWriteBoth_FolderNamesWithURISyntax(t *testing.T) {
	ctx := context.Background()
	for _, name := range []string{"plain", "mouse#2", "what?", "pct%41", "100%"} {
		t.Run(name, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), name)
			require.NoError(t, os.MkdirAll(dir, 0o755))
			p := PairFor(dir, Stem("alice"))

			require.NoError(t, WriteBoth(ctx, p, sampleTable(t), Meta{"build_id": "b-1"}))

			got, err := ReadSQLiteFile(ctx, p.SQLite)
			require.NoError(t, err)
			assert.True(t, got.Equal(sampleTable(t)))

			meta, err := ReadSQLiteMeta(ctx, p.SQLite)
			require.NoError(t, err)
			assert.Equal(t, "b-1", meta["build_id"])
		})
	}
}

func TestReadOnlyDSN(t *testing.T) {
	assert.Equal(t, "file:/data/Rat%232/x.sqlite?mode=ro", readOnlyDSN("/data/Rat#2/x.sqlite"))
	assert.Equal(t, "file:/data/100%25/x.sqlite?mode=ro", readOnlyDSN("/data/100%/x.sqlite"))
	assert.Equal(t, "file:/data/a%3Fb/x.sqlite?mode=ro", readOnlyDSN("/data/a?b/x.sqlite"))
}

func TestWriteBoth_RestoresSidecarWhenTextReplaceFails(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	p := PairFor(dir, Stem("alice"))
	require.NoError(t, WriteBoth(ctx, p, sampleTable(t), Meta{"build_id": "old"}))

	// A non-empty directory at the text path makes the final rename fail.
	require.NoError(t, os.Remove(p.CSV))
	require.NoError(t, os.Mkdir(p.CSV, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(p.CSV, "keep"), nil, 0o644))

	narrowed := sampleTable(t).Select(func(c pose.Column) bool { return c.Bodypart == "nose" })
	err := WriteBoth(ctx, p, narrowed, Meta{"build_id": "new"})
	require.Error(t, err)

	got, err := ReadSQLiteFile(ctx, p.SQLite)
	require.NoError(t, err)
	assert.True(t, got.Equal(sampleTable(t)), "sidecar must keep the previous table")
	meta, err := ReadSQLiteMeta(ctx, p.SQLite)
	require.NoError(t, err)
	assert.Equal(t, "old", meta["build_id"])

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"CollectedData_alice.csv", "CollectedData_alice.sqlite"}, names)
}

func TestWriteBoth_NewPairLeavesNothingOnFailure(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	p := PairFor(dir, Stem("alice"))
	require.NoError(t, os.Mkdir(p.CSV, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(p.CSV, "keep"), nil, 0o644))

	require.Error(t, WriteBoth(ctx, p, sampleTable(t), nil))
	assert.NoFileExists(t, p.SQLite)
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"CollectedData_alice.csv",
		"CollectedData_alice.sqlite",
		"CollectedData_bob.csv",
		"notes.csv",
		"img001.png",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "CollectedData_dir.csv"), 0o755))

	pairs, err := Discover(dir)
	require.NoError(t, err)
	require.Len(t, pairs, 2)

	assert.Equal(t, "CollectedData_alice", pairs[0].Stem)
	assert.True(t, pairs[0].Complete())

	assert.Equal(t, "CollectedData_bob", pairs[1].Stem)
	assert.False(t, pairs[1].Complete())
	assert.Empty(t, pairs[1].SQLite)
	assert.Equal(t, filepath.Join(dir, "CollectedData_bob.csv"), pairs[1].CSV)
}
