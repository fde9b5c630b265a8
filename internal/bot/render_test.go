package bot

import (
	"strings"
	"testing"

	"fenixbot/internal/course"
)

func TestRenderChange(t *testing.T) {
	t.Parallel()

	a := ann("Tue, 22 Jul 2014 20:32:41 +0100", "Exam <moved> & more")
	a.Description = "Room 1 -> Room 2"

	cases := []struct {
		action course.Action
		header string
		desc   bool
	}{
		{course.Added, "🆕", true},
		{course.Updated, "✏️", true},
		{course.Deleted, "🗑", false},
	}
	for _, tc := range cases {
		out := RenderChange("ABC", course.Change{Action: tc.action, Announcement: a})
		if !strings.HasPrefix(out, tc.header) {
			t.Fatalf("%v: header missing:\n%s", tc.action, out)
		}
		if !strings.Contains(out, "Exam &lt;moved&gt; &amp; more") {
			t.Fatalf("%v: title not escaped:\n%s", tc.action, out)
		}
		if !strings.Contains(out, "22 Jul 2014 20:32") || !strings.Contains(out, "Prof") {
			t.Fatalf("%v: meta missing:\n%s", tc.action, out)
		}
		if got := strings.Contains(out, "Room 1 -&gt; Room 2"); got != tc.desc {
			t.Fatalf("%v: description shown = %v, want %v", tc.action, got, tc.desc)
		}
	}
}

func TestRenderCourseListEmpty(t *testing.T) {
	t.Parallel()
	if out := RenderCourseList(nil); !strings.Contains(out, "/add") {
		t.Fatalf("empty list: %s", out)
	}
}
