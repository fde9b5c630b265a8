// Package registry keeps the tracked courses of every group in memory.
package registry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/samber/lo"

	"fenixbot/internal/course"
)

// GroupID identifies a chat that tracks courses.
type GroupID int64

var (
	ErrDuplicateCourse = errors.New("course already tracked")
	ErrCourseNotFound  = errors.New("course not found")
)

type DuplicateCourseError struct {
	Group GroupID
	Link  string
}

func (e *DuplicateCourseError) Error() string {
	return fmt.Sprintf("group %d already tracks %s", e.Group, e.Link)
}

func (e *DuplicateCourseError) Is(target error) bool { return target == ErrDuplicateCourse }

type CourseNotFoundError struct {
	Group GroupID
	Name  string
}

func (e *CourseNotFoundError) Error() string {
	return fmt.Sprintf("group %d does not track %q", e.Group, e.Name)
}

func (e *CourseNotFoundError) Is(target error) bool { return target == ErrCourseNotFound }

// GroupCourses is one group's entry in a Snapshot.
type GroupCourses struct {
	Group   GroupID          `json:"group"`
	Courses []*course.Course `json:"courses"`
}

// Snapshot is a deep copy of the registry, groups in first-seen order.
type Snapshot struct {
	Groups []GroupCourses `json:"groups"`
}

// Len counts courses across all groups.
func (s Snapshot) Len() int {
	n := 0
	for _, g := range s.Groups {
		n += len(g.Courses)
	}
	return n
}

// Registry maps groups to their ordered course lists.
type Registry struct {
	mu     sync.RWMutex
	order  []GroupID
	groups map[GroupID][]*course.Course
}

func New() *Registry {
	return &Registry{groups: map[GroupID][]*course.Course{}}
}

// AddCourse validates link and appends a new course to the group.
// The returned course is a copy.
func (r *Registry) AddCourse(group GroupID, link string) (*course.Course, error) {
	c, err := course.New(link)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if indexByLink(r.groups[group], link) >= 0 {
		return nil, &DuplicateCourseError{Group: group, Link: link}
	}
	if _, ok := r.groups[group]; !ok {
		r.order = append(r.order, group)
	}
	r.groups[group] = append(r.groups[group], c)
	return c.Clone(), nil
}

// RemoveCourse drops the first course of the group whose name matches.
func (r *Registry) RemoveCourse(group GroupID, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.groups[group]
	_, i, ok := lo.FindIndexOf(list, func(c *course.Course) bool { return c.Name == name })
	if !ok {
		return &CourseNotFoundError{Group: group, Name: name}
	}
	r.groups[group] = append(list[:i:i], list[i+1:]...)
	return nil
}

// ListCourses returns copies of the group's courses in insertion order.
// An unknown group yields an empty slice.
func (r *Registry) ListCourses(group GroupID) []*course.Course {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneAll(r.groups[group])
}

// Course returns a copy of the course tracked under link.
func (r *Registry) Course(group GroupID, link string) (*course.Course, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := r.groups[group]
	if i := indexByLink(list, link); i >= 0 {
		return list[i].Clone(), true
	}
	return nil, false
}

// Groups lists groups with at least one course, in first-seen order.
func (r *Registry) Groups() []GroupID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Filter(r.order, func(g GroupID, _ int) bool { return len(r.groups[g]) > 0 })
}

// UpdateAnnouncements diffs fresh against the stored snapshot of one course
// and replaces it, all under the write lock. A course removed in the
// meantime reports ok=false.
func (r *Registry) UpdateAnnouncements(group GroupID, link string, fresh []course.Announcement) (changes []course.Change, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.groups[group]
	i := indexByLink(list, link)
	if i < 0 {
		return nil, false
	}
	return list[i].Update(fresh), true
}

// ReplaceAnnouncements swaps the stored snapshot of one course without diffing.
func (r *Registry) ReplaceAnnouncements(group GroupID, link string, fresh []course.Announcement) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.groups[group]
	i := indexByLink(list, link)
	if i < 0 {
		return false
	}
	list[i].Replace(fresh)
	return true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, list := range r.groups {
		n += len(list)
	}
	return n
}

// Snapshot deep-copies the registry for persistence.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snap := Snapshot{Groups: make([]GroupCourses, 0, len(r.order))}
	for _, g := range r.order {
		if len(r.groups[g]) == 0 {
			continue
		}
		snap.Groups = append(snap.Groups, GroupCourses{Group: g, Courses: cloneAll(r.groups[g])})
	}
	return snap
}

// Restore replaces the whole registry with snap.
//
// Course metadata is kept as stored. Links repeated within a group keep
// their first entry; nil courses are dropped.
func (r *Registry) Restore(snap Snapshot) {
	order := make([]GroupID, 0, len(snap.Groups))
	groups := make(map[GroupID][]*course.Course, len(snap.Groups))
	for _, gc := range snap.Groups {
		if _, ok := groups[gc.Group]; !ok {
			order = append(order, gc.Group)
		}
		list := groups[gc.Group]
		for _, c := range gc.Courses {
			if c == nil || indexByLink(list, c.Link) >= 0 {
				continue
			}
			list = append(list, c.Clone())
		}
		groups[gc.Group] = list
	}

	r.mu.Lock()
	r.order = order
	r.groups = groups
	r.mu.Unlock()
}

func indexByLink(list []*course.Course, link string) int {
	_, i, ok := lo.FindIndexOf(list, func(c *course.Course) bool { return c.Link == link })
	if !ok {
		return -1
	}
	return i
}

func cloneAll(list []*course.Course) []*course.Course {
	out := make([]*course.Course, 0, len(list))
	for _, c := range list {
		out = append(out, c.Clone())
	}
	return out
}
