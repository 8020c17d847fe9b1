// Package placeholder assigns synthetic coordinates to keypoints that are
// still unset in an interchange document, so an annotator can drag them
// into place instead of creating them.
//
// Placement is anchored at the top-left corner of each image's bounding
// box. Group g is laid out in a column g*GroupSpacing to the right of the
// corner; the j-th unset member of a group (document order) sits
// j*PointSpacing above the corner. Points that already hold a real
// coordinate are never moved, which makes Fill idempotent.
package placeholder
