package bot

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"fenixbot/internal/course"
	"fenixbot/internal/registry"
	"fenixbot/internal/tracker"
	kit "fenixbot/internal/transport"
	logx "fenixbot/pkg/logx"
)

const (
	testGroup = registry.GroupID(-100123)
	testLink  = "https://fenix.tecnico.ulisboa.pt/disciplinas/ABC/2023-2024/1-semestre"
)

type sent struct {
	to   kit.ChatTarget
	text string
}

type fakeAdapter struct {
	mu   sync.Mutex
	sent []sent
}

func (a *fakeAdapter) Start(context.Context, chan<- kit.Message) error { return nil }
func (a *fakeAdapter) Stop(context.Context) error { return nil }

func (a *fakeAdapter) SendText(_ context.Context, to kit.ChatTarget, text string, _ *kit.SendOptions) (kit.MessageRef, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sent = append(a.sent, sent{to: to, text: text})
	return kit.MessageRef{ChatID: to.ChatID, MessageID: len(a.sent)}, nil
}

func (a *fakeAdapter) all() []sent {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]sent(nil), a.sent...)
}

type fakeTracker struct {
	sum      tracker.Summary
	cycleErr error
	changes  []course.Change
	syncErr  error
	groups   []registry.GroupID
}

func (f *fakeTracker) RunCycle(_ context.Context, g *registry.GroupID) (tracker.Summary, error) {
	if g != nil {
		f.groups = append(f.groups, *g)
	}
	return f.sum, f.cycleErr
}

func (f *fakeTracker) SyncCourse(context.Context, registry.GroupID, string) ([]course.Change, error) {
	return f.changes, f.syncErr
}

func (f *fakeTracker) Policy() tracker.Policy { return tracker.DefaultPolicy() }

type countingSaver struct {
	mu    sync.Mutex
	saves int
	err   error
}

func (s *countingSaver) Save(context.Context, registry.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	return s.err
}

type fixture struct {
	bot   *Bot
	ad    *fakeAdapter
	tr    *fakeTracker
	reg   *registry.Registry
	saver *countingSaver
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{ad: &fakeAdapter{}, tr: &fakeTracker{}, reg: registry.New(), saver: &countingSaver{}}
	f.bot = New(Config{RatePerSec: 100}, Deps{Adapter: f.ad, Registry: f.reg, Tracker: f.tr, Saver: f.saver})
	return f
}

// run executes text as a command from the test group and returns the reply.
func (f *fixture) run(t *testing.T, text string) string {
	t.Helper()
	name, args, ok := ParseCommand(text)
	if !ok {
		t.Fatalf("not a command: %q", text)
	}
	cmd, ok := f.bot.byName[name]
	if !ok {
		t.Fatalf("unknown command %q", name)
	}
	before := len(f.ad.all())
	f.bot.Handle(context.Background(), cmd, &Request{
		Msg:   kit.Message{ChatID: int64(testGroup), Text: text},
		Group: testGroup,
		Name:  name,
		Args:  args,
		Log:   f.bot.log,
	})
	all := f.ad.all()
	if len(all) == before {
		return ""
	}
	return all[len(all)-1].text
}

func ann(id, title string) course.Announcement {
	pub, _ := time.Parse(course.PubDateLayout, id)
	return course.Announcement{ID: id, Title: title, PubDate: pub, Author: "Prof", Link: "https://example.org/a"}
}

func TestParseCommand(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		name string
		args []string
		ok   bool
	}{
		{in: "/help", name: "help", ok: true},
		{in: "  /ADD@fenix_bot  x  ", name: "add", args: []string{"x"}, ok: true},
		{in: "/remove ABC extra", name: "remove", args: []string{"ABC", "extra"}, ok: true},
		{in: "hello", ok: false},
		{in: "/", ok: false},
		{in: "/@bot", ok: false},
	}
	for _, tc := range cases {
		name, args, ok := ParseCommand(tc.in)
		if ok != tc.ok || name != tc.name {
			t.Fatalf("%q: got (%q, %v), want (%q, %v)", tc.in, name, ok, tc.name, tc.ok)
		}
		if strings.Join(args, ",") != strings.Join(tc.args, ",") {
			t.Fatalf("%q: args %v, want %v", tc.in, args, tc.args)
		}
	}
}

func TestHelpMentionsLinkFormat(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	reply := f.run(t, "/help")
	for _, want := range []string{"/add", "/remove", "/tracked", "/update", course.LinkPrefix} {
		if !strings.Contains(reply, want) {
			t.Fatalf("help missing %q:\n%s", want, reply)
		}
	}
}

func TestAddCourse(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.tr.changes = []course.Change{
		{Action: course.Added, Announcement: ann("Tue, 22 Jul 2014 20:32:41 +0100", "First")},
		{Action: course.Added, Announcement: ann("Wed, 23 Jul 2014 10:00:00 +0100", "Second")},
	}

	reply := f.run(t, "/add "+testLink)
	if !strings.Contains(reply, "Now tracking <b>ABC</b>") || !strings.Contains(reply, "2 announcements") {
		t.Fatalf("reply: %s", reply)
	}
	if f.reg.Len() != 1 {
		t.Fatalf("registry len = %d", f.reg.Len())
	}
	if f.saver.saves != 1 {
		t.Fatalf("saves = %d, want 1", f.saver.saves)
	}
	if n := len(f.bot.notifier.queue); n != 2 {
		t.Fatalf("queued = %d, want 2", n)
	}

	if reply := f.run(t, "/add "+testLink); !strings.Contains(reply, "already tracked") {
		t.Fatalf("duplicate reply: %s", reply)
	}
}

func TestAddCourseErrors(t *testing.T) {
	t.Parallel()

	t.Run("invalid link", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		reply := f.run(t, "/add https://example.org/nope")
		if !strings.Contains(reply, "Invalid link") || !strings.Contains(reply, "XXXX-XXXX") {
			t.Fatalf("reply: %s", reply)
		}
		if f.reg.Len() != 0 || f.saver.saves != 0 {
			t.Fatalf("registry mutated on invalid link")
		}
	})

	t.Run("missing argument", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		if reply := f.run(t, "/add"); !strings.Contains(reply, "Usage") {
			t.Fatalf("reply: %s", reply)
		}
	})

	t.Run("busy keeps course", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.tr.syncErr = tracker.ErrBusy
		reply := f.run(t, "/add "+testLink)
		if !strings.Contains(reply, "next one") {
			t.Fatalf("reply: %s", reply)
		}
		if f.reg.Len() != 1 {
			t.Fatalf("course dropped after busy sync")
		}
	})

	t.Run("fetch failure keeps course", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.tr.syncErr = &tracker.CourseFailure{Group: testGroup, Name: "ABC", Err: errors.New("boom")}
		reply := f.run(t, "/add "+testLink)
		if !strings.Contains(reply, "could not be read") {
			t.Fatalf("reply: %s", reply)
		}
		if f.reg.Len() != 1 {
			t.Fatalf("course dropped after failed sync")
		}
	})
}

func TestRemoveCourse(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	if _, err := f.reg.AddCourse(testGroup, testLink); err != nil {
		t.Fatal(err)
	}

	if reply := f.run(t, "/remove XYZ"); !strings.Contains(reply, "No tracked course") {
		t.Fatalf("reply: %s", reply)
	}
	if f.saver.saves != 0 {
		t.Fatalf("saved after failed remove")
	}
	if reply := f.run(t, "/remove ABC"); !strings.Contains(reply, "Stopped tracking") {
		t.Fatalf("reply: %s", reply)
	}
	if f.reg.Len() != 0 || f.saver.saves != 1 {
		t.Fatalf("len=%d saves=%d", f.reg.Len(), f.saver.saves)
	}
}

func TestSaveFailureIsReported(t *testing.T) {
	t.Parallel()
	diskFull := errors.New("disk full")

	t.Run("add", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.saver.err = diskFull
		reply := f.run(t, "/add "+testLink)
		if !strings.Contains(reply, "Now tracking") || !strings.HasSuffix(reply, saveNote) {
			t.Fatalf("reply: %s", reply)
		}
		if f.reg.Len() != 1 {
			t.Fatalf("course should stay in memory")
		}
	})

	t.Run("add sync not saved", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.tr.syncErr = &tracker.PersistError{Err: diskFull}
		if reply := f.run(t, "/add "+testLink); !strings.HasSuffix(reply, saveNote) {
			t.Fatalf("reply: %s", reply)
		}
	})

	t.Run("add feed failure", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.saver.err = diskFull
		f.tr.syncErr = &tracker.CourseFailure{Group: testGroup, Name: "ABC", Err: errors.New("boom")}
		reply := f.run(t, "/add "+testLink)
		if !strings.Contains(reply, "could not be read") || !strings.HasSuffix(reply, saveNote) {
			t.Fatalf("reply: %s", reply)
		}
	})

	t.Run("remove", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		if _, err := f.reg.AddCourse(testGroup, testLink); err != nil {
			t.Fatal(err)
		}
		f.saver.err = diskFull
		reply := f.run(t, "/remove ABC")
		if !strings.Contains(reply, "Stopped tracking") || !strings.HasSuffix(reply, saveNote) {
			t.Fatalf("reply: %s", reply)
		}
	})

	t.Run("saved replies carry no note", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		for _, cmd := range []string{"/add " + testLink, "/remove ABC"} {
			if reply := f.run(t, cmd); strings.Contains(reply, saveNote) {
				t.Fatalf("%s: unexpected note in %q", cmd, reply)
			}
		}
	})
}

func TestTracked(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	if reply := f.run(t, "/tracked"); !strings.Contains(reply, "No courses") {
		t.Fatalf("reply: %s", reply)
	}
	if _, err := f.reg.AddCourse(testGroup, testLink); err != nil {
		t.Fatal(err)
	}
	reply := f.run(t, "/tracked")
	if !strings.Contains(reply, "ABC") || !strings.Contains(reply, "1st semester") {
		t.Fatalf("reply: %s", reply)
	}
}

func TestUpdateReplies(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		sum  tracker.Summary
		err  error
		want string
	}{
		{name: "busy", err: tracker.ErrBusy, want: "already running"},
		{name: "quiet", sum: tracker.Summary{Skipped: tracker.SkipQuietHours}, want: "quiet hours"},
		{name: "too soon", sum: tracker.Summary{Skipped: tracker.SkipTooSoon}, want: "moments ago"},
		{name: "nothing new", sum: tracker.Summary{Started: time.Now()}, want: "No new announcements"},
		{
			name: "failures",
			sum:  tracker.Summary{Started: time.Now(), Failed: 1},
			err:  &tracker.CycleError{Failures: []*tracker.CourseFailure{{Group: testGroup, Name: "ABC", Err: errors.New("x")}}},
			want: "ABC",
		},
		{name: "changes", sum: tracker.Summary{Started: time.Now(), Total: 3}, want: ""},
		{
			name: "changes not saved",
			sum:  tracker.Summary{Started: time.Now(), Total: 3},
			err:  &tracker.PersistError{Err: errors.New("disk full")},
			want: "could not be saved",
		},
		{
			name: "nothing new not saved",
			sum:  tracker.Summary{Started: time.Now()},
			err:  &tracker.PersistError{Err: errors.New("disk full")},
			want: "No new announcements.\n" + saveNote,
		},
		{
			name: "failures not saved",
			sum:  tracker.Summary{Started: time.Now(), Failed: 1},
			err: errors.Join(
				&tracker.CycleError{Failures: []*tracker.CourseFailure{{Group: testGroup, Name: "ABC", Err: errors.New("x")}}},
				&tracker.PersistError{Err: errors.New("disk full")},
			),
			want: "• ABC\n" + saveNote,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			f.tr.sum, f.tr.cycleErr = tc.sum, tc.err

			reply := f.run(t, "/update")
			if tc.want == "" {
				if reply != "" {
					t.Fatalf("unexpected reply: %s", reply)
				}
			} else if !strings.Contains(reply, tc.want) {
				t.Fatalf("reply %q does not contain %q", reply, tc.want)
			}
			if len(f.tr.groups) != 1 || f.tr.groups[0] != testGroup {
				t.Fatalf("RunCycle groups = %v", f.tr.groups)
			}
		})
	}
}

func TestNotifyRoutesToGroup(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.bot.Notify(tracker.Summary{Courses: []tracker.CourseChanges{
		{Group: 1, Name: "A", Changes: []course.Change{{Action: course.Added, Announcement: ann("Tue, 22 Jul 2014 20:32:41 +0100", "x")}}},
		{Group: 2, Name: "B", Changes: []course.Change{
			{Action: course.Updated, Announcement: ann("Tue, 22 Jul 2014 20:32:41 +0100", "y")},
			{Action: course.Deleted, Announcement: ann("Wed, 23 Jul 2014 10:00:00 +0100", "z")},
		}},
	}})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { f.bot.notifier.Run(ctx); close(done) }()

	deadline := time.After(2 * time.Second)
	for len(f.ad.all()) < 3 {
		select {
		case <-deadline:
			t.Fatalf("sent %d messages, want 3", len(f.ad.all()))
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done

	got := f.ad.all()
	if got[0].to.ChatID != 1 || got[1].to.ChatID != 2 || got[2].to.ChatID != 2 {
		t.Fatalf("targets: %+v", got)
	}
	if !strings.Contains(got[2].text, "Deleted") {
		t.Fatalf("third message: %s", got[2].text)
	}
}

func TestNotifierDropsWhenFull(t *testing.T) {
	t.Parallel()
	n := NewNotifier(&fakeAdapter{}, 1, 1, logx.Nop())

	if !n.Enqueue(kit.ChatTarget{ChatID: 1}, "a") {
		t.Fatal("first enqueue failed")
	}
	if n.Enqueue(kit.ChatTarget{ChatID: 1}, "b") {
		t.Fatal("second enqueue should drop")
	}
	if n.Dropped() != 1 {
		t.Fatalf("dropped = %d", n.Dropped())
	}
	n.Close()
	if n.Enqueue(kit.ChatTarget{ChatID: 1}, "c") {
		t.Fatal("enqueue after close")
	}
}
