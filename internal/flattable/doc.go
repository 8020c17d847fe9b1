// Package flattable reads and writes the flat per-image coordinate table.
//
// The table has a header row with a filename column, optional bounding-box
// corner columns (bbox_tl-x, bbox_tl-y, bbox_br-x, bbox_br-y) and one x/y
// column pair per keypoint (nose-x, nose-y). Header cells and filenames are
// NFC normalized so names typed on different filesystems compare equal.
//
// Keypoint names are discovered from the columns ending in -x. Two orders
// are exposed: first-seen (project building, where the order must match an
// external skeleton definition) and sorted (document export).
package flattable
