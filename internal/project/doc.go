// Package project builds a DeepLabCut-style training project from a flat
// coordinate table.
//
// A build creates <base>/<view><animal>-<scorer>-<date>/ containing:
//
//	config.yaml                  descriptor consumed by the training tool
//	videos/                      empty; referenced by the descriptor
//	labeled-data/<subject>/      one folder per subject identity
//	    <image files>            copied from the images folder
//	    CollectedData_<scorer>.csv
//	    CollectedData_<scorer>.sqlite
//
// Rows are partitioned by subject identity, derived from the image
// filename. Every partition table spans the full keypoint set in the
// order the source table declares it, so all partitions share one shape.
package project
