package tracker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"fenixbot/internal/course"
	"fenixbot/internal/eventbus"
	"fenixbot/internal/registry"
	logx "fenixbot/pkg/logx"
)

// EventCycleCompleted is published after every cycle that ran. Data is a Summary.
const EventCycleCompleted = "cycle.completed"

// Fetcher returns the raw items of one course feed.
type Fetcher interface {
	Fetch(ctx context.Context, li course.LinkInfo) ([]course.RawItem, error)
}

// Saver persists registry snapshots.
type Saver interface {
	Save(ctx context.Context, snap registry.Snapshot) error
}

const (
	stateIdle int32 = iota
	stateRunning
)

type Deps struct {
	Registry *registry.Registry
	Fetcher  Fetcher
	Saver    Saver
	Bus      eventbus.Bus // optional
	Log      logx.Logger
	Now      func() time.Time // optional
}

type Tracker struct {
	reg     *registry.Registry
	fetcher Fetcher
	saver   Saver
	bus     eventbus.Bus
	log     logx.Logger
	now     func() time.Time

	state atomic.Int32

	mu      sync.Mutex
	policy  Policy
	lastRun time.Time
}

func New(d Deps, p Policy) *Tracker {
	if d.Log.IsZero() {
		d.Log = logx.Nop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Tracker{
		reg:     d.Registry,
		fetcher: d.Fetcher,
		saver:   d.Saver,
		bus:     d.Bus,
		log:     d.Log.With(logx.String("comp", "tracker")),
		now:     d.Now,
		policy:  p.withDefaults(),
	}
}

func (t *Tracker) Policy() Policy {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.policy
}

// SetPolicy swaps the policy. A running cycle keeps the one it started with.
func (t *Tracker) SetPolicy(p Policy) {
	p = p.withDefaults()
	t.mu.Lock()
	t.policy = p
	t.mu.Unlock()
	t.log.Debug("policy applied",
		logx.Duration("interval", p.Interval),
		logx.Duration("min_interval", p.MinInterval),
		logx.String("quiet", p.Quiet.String()),
		logx.String("isolation", p.Isolation.String()),
	)
}

// LastRun is the start time of the last completed cycle.
func (t *Tracker) LastRun() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastRun
}

func (t *Tracker) Running() bool { return t.state.Load() == stateRunning }

// RunCycle refreshes every tracked course, or only those of *group when
// group is non-nil.
//
// The checks run in order: quiet hours skip, busy rejection with ErrBusy,
// then the minimum re-entry interval skip. Course failures are reported as
// *CycleError and save failures as *PersistError; in both cases the returned
// Summary still lists the changes that were applied.
func (t *Tracker) RunCycle(ctx context.Context, group *registry.GroupID) (Summary, error) {
	now := t.now()
	pol := t.Policy()

	if pol.quiet(now) {
		t.log.Debug("cycle skipped", logx.String("reason", string(SkipQuietHours)), logx.String("quiet", pol.Quiet.String()))
		return Summary{Started: now, Finished: now, Skipped: SkipQuietHours}, nil
	}
	if !t.state.CompareAndSwap(stateIdle, stateRunning) {
		return Summary{}, ErrBusy
	}
	released := false
	release := func() {
		if !released {
			released = true
			t.state.Store(stateIdle)
		}
	}
	defer release()

	last := t.LastRun()
	if !last.IsZero() && pol.MinInterval > 0 && now.Sub(last) < pol.MinInterval {
		t.log.Debug("cycle skipped", logx.String("reason", string(SkipTooSoon)), logx.Duration("since_last", now.Sub(last)))
		return Summary{Started: now, Finished: now, Skipped: SkipTooSoon}, nil
	}

	sum := Summary{Started: now}
	cerr := t.process(ctx, pol, group, &sum)

	perr := t.save(ctx, pol)
	if perr != nil {
		sum.SaveErr = perr.Err
	}
	if cerr == nil || !cerr.Aborted {
		t.mu.Lock()
		t.lastRun = now
		t.mu.Unlock()
	}
	sum.Finished = t.now()
	release()

	fields := []logx.Field{
		logx.Int("checked", sum.Checked),
		logx.Int("changes", sum.Total),
		logx.Int("failed", sum.Failed),
		logx.Duration("took", sum.Finished.Sub(sum.Started)),
	}
	if group != nil {
		fields = append(fields, logx.Int64("group", int64(*group)))
	}
	t.log.Info("cycle finished", fields...)

	if t.bus != nil {
		t.bus.Publish(eventbus.Event{Type: EventCycleCompleted, Time: sum.Finished, Data: sum})
	}

	switch {
	case cerr != nil && perr != nil:
		return sum, errors.Join(cerr, perr)
	case cerr != nil:
		return sum, cerr
	case perr != nil:
		return sum, perr
	}
	return sum, nil
}

func (t *Tracker) process(ctx context.Context, pol Policy, only *registry.GroupID, sum *Summary) *CycleError {
	groups := t.reg.Groups()
	if only != nil {
		groups = []registry.GroupID{*only}
	}

	var failures []*CourseFailure
	for _, g := range groups {
		for _, c := range t.reg.ListCourses(g) {
			if err := ctx.Err(); err != nil {
				failures = append(failures, &CourseFailure{Group: g, Name: c.Name, Link: c.Link, Err: err})
				sum.Failed++
				return &CycleError{Failures: failures, Aborted: true}
			}

			changes, err := t.refresh(ctx, pol, g, c)
			if err != nil {
				sum.Failed++
				f := &CourseFailure{Group: g, Name: c.Name, Link: c.Link, Err: err}
				failures = append(failures, f)
				t.log.Warn("course refresh failed",
					logx.Int64("group", int64(g)),
					logx.String("course", c.Name),
					logx.Err(err),
				)
				if pol.Isolation == Abort {
					return &CycleError{Failures: failures, Aborted: true}
				}
				continue
			}

			sum.Checked++
			if len(changes) == 0 {
				continue
			}
			sum.Total += len(changes)
			sum.Courses = append(sum.Courses, CourseChanges{
				Group:    g,
				Link:     c.Link,
				Name:     c.Name,
				Years:    c.Years,
				Semester: c.Semester,
				Changes:  changes,
			})
		}
	}
	if len(failures) > 0 {
		return &CycleError{Failures: failures}
	}
	return nil
}

func (t *Tracker) refresh(ctx context.Context, pol Policy, g registry.GroupID, c *course.Course) ([]course.Change, error) {
	fctx, cancel := context.WithTimeout(ctx, pol.FetchTimeout)
	items, err := t.fetcher.Fetch(fctx, c.Info())
	cancel()
	if err != nil {
		return nil, err
	}
	anns, err := course.NormalizeAll(items)
	if err != nil {
		return nil, err
	}
	changes, ok := t.reg.UpdateAnnouncements(g, c.Link, anns)
	if !ok {
		// Removed while the fetch was in flight.
		return nil, nil
	}
	return changes, nil
}

func (t *Tracker) save(ctx context.Context, pol Policy) *PersistError {
	if t.saver == nil {
		return nil
	}
	// Persist even when the caller is shutting down.
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), pol.SaveTimeout)
	defer cancel()
	if err := t.saver.Save(sctx, t.reg.Snapshot()); err != nil {
		t.log.Error("registry save failed", logx.Err(err))
		return &PersistError{Err: err}
	}
	return nil
}

// SyncCourse runs the first diff of a freshly added course and persists the
// result. Only the busy check applies.
func (t *Tracker) SyncCourse(ctx context.Context, group registry.GroupID, link string) ([]course.Change, error) {
	if !t.state.CompareAndSwap(stateIdle, stateRunning) {
		return nil, ErrBusy
	}
	defer t.state.Store(stateIdle)

	c, ok := t.reg.Course(group, link)
	if !ok {
		return nil, &registry.CourseNotFoundError{Group: group, Name: link}
	}
	pol := t.Policy()
	changes, err := t.refresh(ctx, pol, group, c)
	if err != nil {
		return nil, &CourseFailure{Group: group, Name: c.Name, Link: c.Link, Err: err}
	}
	if perr := t.save(ctx, pol); perr != nil {
		return changes, perr
	}
	t.log.Info("course synced", logx.Int64("group", int64(group)), logx.String("course", c.Name), logx.Int("changes", len(changes)))
	return changes, nil
}
