package cli

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/poseconv/internal/collected"
	"github.com/roach88/poseconv/internal/cvat"
	"github.com/roach88/poseconv/internal/pose"
	"github.com/roach88/poseconv/internal/testutil"
)

const (
	frame1 = "img_R16_20250314_M110_4_F1.png"
	frame2 = "img_R16_20250314_M110_4_F2.png"
)

func annotations(t *testing.T, dir string) string {
	t.Helper()
	return testutil.WriteFile(t, dir, "annotations.csv", testutil.FlatTable(
		"filename,bbox_tl-x,bbox_tl-y,bbox_br-x,bbox_br-y,tail_end-x,tail_end-y,nose-x,nose-y",
		frame1+",100,200,300,400,,,55.5,60.25",
		frame2+",,,,,1,2,,",
	))
}

func decodeData(t *testing.T, out string, v any) string {
	t.Helper()
	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	if v != nil {
		require.NoError(t, json.Unmarshal(resp.Data, v))
	}
	return resp.Status
}

func TestExportFillImport(t *testing.T) {
	dir := t.TempDir()
	table := annotations(t, dir)
	meta := testutil.WriteFile(t, dir, "meta.xml", "<meta><task><name>rats</name></task></meta>")
	docPath := filepath.Join(dir, "doc.xml")

	out, _, err := execute(t, "export", table, "--meta", meta, "-o", docPath)
	require.NoError(t, err)
	assert.Equal(t, "✓ Exported 2 image(s), 1 box(es), 2 keypoint(s) to "+docPath+"\n", out)

	doc, err := cvat.ReadFile(docPath)
	require.NoError(t, err)
	require.Len(t, doc.Images, 2)
	assert.Equal(t, "0.0,0.0", doc.Images[0].Skeletons[0].Points[1].CoordText())

	filled := filepath.Join(dir, "filled.xml")
	out, _, err = execute(t, "--format", "json", "fill", docPath, "-o", filled, "--groups", "v2", "--visibility", "reveal")
	require.NoError(t, err)
	var fill struct {
		Groups  string           `json:"groups"`
		Placed  int              `json:"placed"`
		Skipped []pose.Condition `json:"skipped"`
	}
	assert.Equal(t, "ok", decodeData(t, out, &fill))
	assert.Equal(t, "v2", fill.Groups)
	assert.Equal(t, 1, fill.Placed)
	require.Len(t, fill.Skipped, 1)
	assert.Equal(t, frame2, fill.Skipped[0].Subject)

	regenerated := filepath.Join(dir, "regenerated.csv")
	_, _, err = execute(t, "import", filled, "-o", regenerated)
	require.NoError(t, err)

	data, err := os.ReadFile(regenerated)
	require.NoError(t, err)
	assert.Equal(t, testutil.FlatTable(
		"filename,bbox_tl-x,bbox_tl-y,bbox_br-x,bbox_br-y,nose-x,nose-y,tail_end-x,tail_end-y",
		frame1+",100,200,300,400,55.5,60.25,260.00,200.00",
		frame2+",,,,,,,1,2",
	), string(data))
}

func TestExport_MissingFilenameColumn(t *testing.T) {
	dir := t.TempDir()
	table := testutil.WriteFile(t, dir, "bad.csv", "name,nose-x,nose-y\na.png,1,2\n")

	out, _, err := execute(t, "export", table, "-o", filepath.Join(dir, "doc.xml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [INPUT_FORMAT]")
	assert.NoFileExists(t, filepath.Join(dir, "doc.xml"))
}

func TestFill_RequiresGroupsAndVisibility(t *testing.T) {
	dir := t.TempDir()
	docPath := filepath.Join(dir, "doc.xml")
	_, _, err := execute(t, "export", annotations(t, dir), "-o", docPath)
	require.NoError(t, err)

	out, _, err := execute(t, "fill", docPath, "-o", docPath, "--visibility", "reveal")
	require.Error(t, err)
	assert.Contains(t, out, "Error [CONFIGURATION]")

	out, _, err = execute(t, "fill", docPath, "-o", docPath, "--groups", "v1")
	require.Error(t, err)
	assert.Contains(t, out, "visibility is required")
}

func TestInspect(t *testing.T) {
	dir := t.TempDir()
	table := testutil.WriteFile(t, dir, "t.csv", testutil.FlatTable(
		"filename,tail_end-x,tail_end-y,nose-x,nose-y,tail_base-x,tail_base-y,cluster",
		"a.png,1,2,,,,,3",
		"b.png,3,4,5,6,,,3",
	))

	out, _, err := execute(t, "--format", "json", "inspect", table)
	require.NoError(t, err)

	var res struct {
		Labeled []string `json:"labeled"`
		Missing []string `json:"missing"`
		Extra   []string `json:"ignored_columns"`
		Rows    int      `json:"rows"`
	}
	assert.Equal(t, "ok", decodeData(t, out, &res))
	assert.Equal(t, 2, res.Rows)
	assert.Equal(t, []string{"tail_end", "nose"}, res.Labeled)
	assert.Equal(t, []string{"tail_base"}, res.Missing)
	assert.Equal(t, []string{"cluster"}, res.Extra)

	out, _, err = execute(t, "inspect", table)
	require.NoError(t, err)
	assert.Contains(t, out, "Missing (1): tail_base")
	assert.Contains(t, out, "Keypoint")
}

func TestBuild(t *testing.T) {
	base := t.TempDir()
	annotations(t, base)
	testutil.Touch(t, base, "Images/"+frame1)

	out, _, err := execute(t, "--format", "json", "build", base, "--scorer", "jm", "--view", "top", "--animal", "mouse", "--workers", "2")
	require.NoError(t, err)

	var res struct {
		BuildID    string           `json:"build_id"`
		ProjectDir string           `json:"project_dir"`
		Bodyparts  []string         `json:"bodyparts"`
		Conditions []pose.Condition `json:"conditions"`
		Partitions []struct {
			Subject string `json:"subject"`
			Rows    int    `json:"rows"`
			Copied  int    `json:"copied"`
		} `json:"partitions"`
	}
	assert.Equal(t, "ok", decodeData(t, out, &res))
	assert.NotEmpty(t, res.BuildID)
	assert.True(t, strings.HasPrefix(filepath.Base(res.ProjectDir), "topmouse-jm-"))
	assert.Equal(t, []string{"tail_end", "nose"}, res.Bodyparts)
	require.Len(t, res.Partitions, 1)
	assert.Equal(t, "R16_20250314_M110_4", res.Partitions[0].Subject)
	assert.Equal(t, 2, res.Partitions[0].Rows)
	assert.Equal(t, 1, res.Partitions[0].Copied)
	require.Len(t, res.Conditions, 1)
	assert.Equal(t, pose.CondMissingSourceAsset, res.Conditions[0].Code)

	pair := collected.PairFor(filepath.Join(res.ProjectDir, "labeled-data", "R16_20250314_M110_4"), collected.Stem("jm"))
	assert.FileExists(t, pair.CSV)
	assert.FileExists(t, pair.SQLite)
	assert.FileExists(t, filepath.Join(res.ProjectDir, "config.yaml"))
}

func TestBuild_MissingTable(t *testing.T) {
	out, _, err := execute(t, "build", t.TempDir(), "--scorer", "jm")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [INPUT_FORMAT]")
}

func filterProject(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()
	root := filepath.Join(dir, "labeled-data")

	full := pose.NewStructuredTable("jm", []string{"tail_end", "nose", "back_right_paw"})
	require.NoError(t, full.AppendRow("labeled-data/A/f1.png", []string{"1", "2", "3", "4", "5", "6"}))

	a := collected.PairFor(filepath.Join(root, "A"), collected.Stem("jm"))
	require.NoError(t, os.MkdirAll(a.Dir, 0o755))
	require.NoError(t, collected.WriteBoth(ctx, a, full, nil))
	return dir
}

func TestFilter(t *testing.T) {
	dir := filterProject(t)

	out, _, err := execute(t, "filter", dir, "--keep", "nose, tail_end")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Filtered 1 store(s)")

	st, err := collected.ReadCSVFile(filepath.Join(dir, "labeled-data", "A", "CollectedData_jm.csv"))
	require.NoError(t, err)
	assert.Equal(t, []string{"tail_end", "nose"}, st.Bodyparts())
}

func TestFilter_DivergentEncodingsExitOne(t *testing.T) {
	dir := filterProject(t)
	c := collected.PairFor(filepath.Join(dir, "labeled-data", "C"), collected.Stem("jm"))
	require.NoError(t, os.MkdirAll(c.Dir, 0o755))
	left := pose.NewStructuredTable("jm", []string{"nose"})
	require.NoError(t, left.AppendRow("labeled-data/C/f1.png", []string{"1", "2"}))
	right := pose.NewStructuredTable("jm", []string{"nose"})
	require.NoError(t, right.AppendRow("labeled-data/C/f1.png", []string{"1", "9"}))
	require.NoError(t, collected.WriteCSVFile(c.CSV, left))
	require.NoError(t, collected.WriteSQLiteFile(context.Background(), c.SQLite, right, nil))

	out, _, err := execute(t, "--format", "json", "filter", dir, "--keep", "nose")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var res struct {
		RunID    string `json:"run_id"`
		Failures []struct {
			Partition string `json:"partition"`
		} `json:"failures"`
	}
	assert.Equal(t, "partial", decodeData(t, out, &res))
	assert.NotEmpty(t, res.RunID)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "C", res.Failures[0].Partition)
}

func TestFilter_MissingProject(t *testing.T) {
	_, _, err := execute(t, "filter", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
