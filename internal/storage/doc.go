// Package storage persists registry snapshots so tracked courses and their
// last seen announcements survive restarts.
//
// Drivers:
//   - file: one JSON document, replaced atomically on every save
//   - sqlite: courses and announcements tables, rewritten in one transaction
//   - none: nothing is persisted
package storage
