// Package bodyfilter narrows the keypoint set of an existing project.
//
// Every partition folder under the labeled-data root is visited. Each
// collected store found there is reduced to the allowed bodyparts and
// written back in place, keeping both encodings in step. A partition whose
// encodings disagree is reported and left untouched; the other partitions
// still run.
package bodyfilter
