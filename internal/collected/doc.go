// Package collected reads and writes the per-partition annotation store
// that a DeepLabCut-style project keeps in each labeled-data folder.
//
// Every store exists in two encodings side by side, sharing one stem:
//
//	CollectedData_<scorer>.csv     three header rows, then one row per image
//	CollectedData_<scorer>.sqlite  the same table in an embedded schema
//
// Both encodings carry identical content. WriteBoth treats the pair as one
// logical write: both files are staged next to their targets and only
// renamed into place once both are complete.
package collected
