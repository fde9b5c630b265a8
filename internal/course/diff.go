package course

import (
	"sort"

	"github.com/samber/lo"
)

// Action classifies how an announcement changed between two snapshots.
type Action int

const (
	Added Action = iota + 1
	Updated
	Deleted
)

func (a Action) String() string {
	switch a {
	case Added:
		return "added"
	case Updated:
		return "updated"
	case Deleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Change is one classified difference between two snapshots.
type Change struct {
	Announcement Announcement
	Action       Action
}

// Sorted returns a copy of anns ordered by publication date, feed order breaking
// ties, with duplicate IDs reduced to their first occurrence.
func Sorted(anns []Announcement) []Announcement {
	out := lo.UniqBy(anns, func(a Announcement) string { return a.ID })
	sort.SliceStable(out, func(i, j int) bool { return out[i].PubDate.Before(out[j].PubDate) })
	return out
}

// Diff classifies what changed between the stored snapshot and a fresh fetch.
//
// Added and Updated come first, in publication order of the new snapshot;
// Deleted follow, in stored order. Identical input yields no changes.
func Diff(old, fresh []Announcement) []Change {
	fresh = Sorted(fresh)
	oldByID := lo.KeyBy(lo.UniqBy(old, func(a Announcement) string { return a.ID }), func(a Announcement) string { return a.ID })
	freshByID := lo.KeyBy(fresh, func(a Announcement) string { return a.ID })

	var changes []Change
	for _, a := range fresh {
		prev, ok := oldByID[a.ID]
		switch {
		case !ok:
			changes = append(changes, Change{Announcement: a, Action: Added})
		case prev.Title != a.Title || prev.Description != a.Description:
			changes = append(changes, Change{Announcement: a, Action: Updated})
		}
	}

	seen := make(map[string]bool, len(old))
	for _, a := range old {
		if seen[a.ID] {
			continue
		}
		seen[a.ID] = true
		if _, ok := freshByID[a.ID]; !ok {
			changes = append(changes, Change{Announcement: a, Action: Deleted})
		}
	}
	return changes
}

// Count tallies changes per action.
func Count(changes []Change) map[Action]int {
	return lo.CountValuesBy(changes, func(c Change) Action { return c.Action })
}
