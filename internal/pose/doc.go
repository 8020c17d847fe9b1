// Package pose provides the shared data model for poseconv.
//
// This package contains type definitions only. All other internal packages
// import pose; pose imports nothing internal.
//
// Key design constraints:
//   - Coordinates are carried as the literal text found in the source, never
//     parsed and re-formatted, so no representation coerces a value
//   - An unset point always holds the sentinel coordinate together with the
//     hidden flag (see Unset)
//   - Keypoint order travels separately from the per-row maps; rows never
//     decide which keypoints exist
package pose
