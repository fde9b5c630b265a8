// Package course holds the announcement domain: course link validation,
// normalization of raw feed items, and the snapshot diff.
//
// Nothing in this package performs I/O.
package course
