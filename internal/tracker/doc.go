// Package tracker drives update cycles: fetch every tracked feed, diff it
// against the stored announcements, persist the registry and publish what
// changed.
//
// At most one cycle runs at a time. A caller that finds one in flight gets
// ErrBusy immediately; nothing is queued.
package tracker
