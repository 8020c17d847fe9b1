// Package skeleton holds the anatomical grouping of keypoints used to lay
// out placeholder coordinates.
//
// Group membership is a static table, never inferred from data. The table
// is defined in CUE (groups.cue, embedded) so every version is checked
// against one schema when loaded: at least one group, no empty names.
// Membership must also be unique across groups; that is checked in Go.
//
// Two built-in versions exist and differ only in whether "nose" belongs to
// the first head group. Callers select one explicitly, or supply their own
// CUE file with a top-level groups list.
package skeleton
