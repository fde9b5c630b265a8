// Package feed fetches course announcement feeds and turns the RSS document
// into course.RawItem values.
//
// The decoder always yields a slice: a channel with exactly one <item> is
// indistinguishable from a one-element list by the time it reaches callers.
package feed
