package flattable

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/poseconv/internal/pose"
)

func TestWrite_UnsetPointsAreEmpty(t *testing.T) {
	tbl := &pose.Table{
		Keypoints: []string{"nose", "tail_end"},
		Rows: []pose.ImageRecord{{
			Filename: "a.png",
			BBox:     pose.NewBoundingBox("1", "2", "3", "4"),
			Points: map[string]pose.Point{
				"nose":     pose.NewPoint("5", "6"),
				"tail_end": pose.Unset(),
			},
		}},
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, tbl, WriteOptions{BBox: true}))

	assert.Equal(t,
		"filename,bbox_tl-x,bbox_tl-y,bbox_br-x,bbox_br-y,nose-x,nose-y,tail_end-x,tail_end-y\n"+
			"a.png,1,2,3,4,5,6,,\n",
		buf.String())
}

func TestWrite_ReadBack(t *testing.T) {
	parsed, err := Read(strings.NewReader(sampleTable), "t.csv")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, parsed.Table(FirstSeen), WriteOptions{BBox: true}))

	again, err := Read(&buf, "again.csv")
	require.NoError(t, err)
	assert.Equal(t, parsed.Rows, again.Rows)
	assert.Equal(t, parsed.Header.Keypoints, again.Header.Keypoints)
}
