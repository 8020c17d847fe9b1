package cvat

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/poseconv/internal/pose"
	"github.com/roach88/poseconv/internal/testutil"
)

func sampleTable() *pose.Table {
	return &pose.Table{
		// first-seen order; Export sorts
		Keypoints: []string{"tail_end", "nose"},
		Rows: []pose.ImageRecord{
			{
				Filename: "img_R16_20250314_M110_4_F1.png",
				BBox:     pose.NewBoundingBox("10", "20", "110", "220"),
				Points: map[string]pose.Point{
					"nose":     pose.NewPoint("55.5", "60.25"),
					"tail_end": pose.NewPoint("", ""),
				},
			},
			{
				Filename: "img_R16_20250314_M110_4_F2.png",
				Points: map[string]pose.Point{
					"nose":     pose.NewPoint("", "7"),
					"tail_end": pose.NewPoint("1", "2"),
				},
			},
		},
	}
}

func TestExport_Golden(t *testing.T) {
	meta, err := ParseMeta([]byte(`<meta><task><name>rats</name></task></meta>`), "meta.xml")
	require.NoError(t, err)

	doc := Export(sampleTable(), meta, DefaultExportOptions())

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, doc))

	testutil.AssertGolden(t, "export_basic", buf.Bytes())
}

func TestExport_VisibleAndHiddenPoints(t *testing.T) {
	doc := Export(sampleTable(), nil, DefaultExportOptions())

	require.Len(t, doc.Images, 2)
	points := doc.Images[0].Skeletons[0].Points
	require.Len(t, points, 2)

	nose, tail := points[0], points[1]
	assert.Equal(t, "nose", nose.Label)
	assert.False(t, nose.Hidden())
	assert.Equal(t, "55.5,60.25", nose.CoordText())

	assert.Equal(t, "tail_end", tail.Label)
	assert.True(t, tail.Hidden())
	assert.Equal(t, "0.0,0.0", tail.CoordText())
}

func TestExport_WritesLiteralCellValues(t *testing.T) {
	tbl := &pose.Table{
		Keypoints: []string{"nose"},
		Rows: []pose.ImageRecord{{
			Filename: "a.png",
			BBox:     pose.NewBoundingBox("10.0", " 20", "110", "220"),
			Points:   map[string]pose.Point{"nose": pose.NewPoint(" 55.50", "60 ")},
		}},
	}
	doc := Export(tbl, nil, DefaultExportOptions())

	img := doc.Images[0]
	assert.Equal(t, " 55.50,60 ", img.Skeletons[0].Points[0].CoordText())
	assert.Equal(t, OutsideVisible, img.Skeletons[0].Points[0].Outside)
	assert.Equal(t, "10.0", img.Boxes[0].XTL)
	assert.Equal(t, " 20", img.Boxes[0].YTL)
}

func TestExport_BoxOnlyWithAllCorners(t *testing.T) {
	doc := Export(sampleTable(), nil, DefaultExportOptions())

	assert.Len(t, doc.Images[0].Boxes, 1)
	assert.Empty(t, doc.Images[1].Boxes)
	assert.Equal(t, "0", doc.Images[0].ID)
	assert.Equal(t, "1", doc.Images[1].ID)
}

func TestExport_EveryImageHasOneSkeletonWithAllKeypoints(t *testing.T) {
	doc := Export(sampleTable(), nil, DefaultExportOptions())
	for _, img := range doc.Images {
		require.Len(t, img.Skeletons, 1)
		assert.Len(t, img.Skeletons[0].Points, 2)
	}
}

func TestParseMeta_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"unclosed", `<meta><task></meta>`},
		{"empty", ``},
		{"two roots", `<meta></meta><meta></meta>`},
		{"trailing text", `<meta></meta> junk`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseMeta([]byte(tt.raw), "meta.xml")
			require.Error(t, err)
			assert.True(t, pose.IsInputFormat(err))
		})
	}
}

func TestParseMeta_AcceptsPrologAndComments(t *testing.T) {
	raw := "<?xml version=\"1.0\"?>\n<meta><task/></meta>\n<!-- exported -->\n"
	meta, err := ParseMeta([]byte(raw), "meta.xml")
	require.NoError(t, err)
	assert.Equal(t, "meta", meta.XMLName.Local)
	assert.Equal(t, "<task/>", string(meta.Inner))
}

func TestDecode_PreservesUnknownContent(t *testing.T) {
	input := `<?xml version="1.0" encoding="utf-8"?>
<annotations>
  <version>1.1</version>
  <meta><task><id>7</id></task></meta>
  <image id="0" name="a.png" width="1280" height="720" custom="yes">
    <box label="Bounding Box" xtl="1" ytl="2" xbr="3" ybr="4" keyframe="1"><attribute name="pose">standing</attribute></box>
    <polyline label="Whisker" points="1,2;3,4"></polyline>
    <skeleton label="RatSkeleton">
      <points label="nose" outside="0" points="5,6"><attribute name="note">ok</attribute></points>
    </skeleton>
  </image>
  <tag label="extra"></tag>
</annotations>`

	doc, err := Decode(strings.NewReader(input), "in.xml")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, doc))

	again, err := Decode(&buf, "again.xml")
	require.NoError(t, err)

	img := again.Images[0]
	require.Len(t, img.Attrs, 1)
	assert.Equal(t, "custom", img.Attrs[0].Name.Local)
	require.Len(t, img.Extra, 1)
	assert.Equal(t, "polyline", img.Extra[0].XMLName.Local)
	require.Len(t, img.Boxes, 1)
	assert.Equal(t, "keyframe", img.Boxes[0].Attrs[0].Name.Local)
	assert.Equal(t, "attribute", img.Boxes[0].Extra[0].XMLName.Local)
	assert.Equal(t, "standing", string(img.Boxes[0].Extra[0].Inner))
	assert.Equal(t, "ok", string(img.Skeletons[0].Points[0].Extra[0].Inner))
	require.Len(t, again.Extra, 1)
	assert.Equal(t, "tag", again.Extra[0].XMLName.Local)
	assert.Equal(t, "<task><id>7</id></task>", string(again.Meta.Inner))
}

func TestDecode_Malformed(t *testing.T) {
	_, err := Decode(strings.NewReader("<annotations><image></annotations>"), "bad.xml")
	assert.True(t, pose.IsInputFormat(err))
}

func TestRecords_HiddenPointsAreUnset(t *testing.T) {
	doc := Export(sampleTable(), nil, DefaultExportOptions())
	// a keep-hidden placeholder: hidden with a real coordinate
	doc.Images[0].Skeletons[0].Points[1].SetCoords("10.00,20.00")

	tbl := doc.Table("Bounding Box")

	assert.Equal(t, []string{"nose", "tail_end"}, tbl.Keypoints)
	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, pose.NewPoint("55.5", "60.25"), tbl.Rows[0].Points["nose"])
	assert.Equal(t, pose.Unset(), tbl.Rows[0].Points["tail_end"])
	require.NotNil(t, tbl.Rows[0].BBox)
	assert.Nil(t, tbl.Rows[1].BBox)
	assert.Equal(t, pose.NewPoint("1", "2"), tbl.Rows[1].Points["tail_end"])
}
