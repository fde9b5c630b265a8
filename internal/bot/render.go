package bot

import (
	"fmt"
	"html"
	"strings"

	"fenixbot/internal/course"
	"fenixbot/internal/tracker"
)

const pubDateDisplay = "02 Jan 2006 15:04"

func actionHeader(a course.Action) string {
	switch a {
	case course.Added:
		return "🆕 <b>Added</b>"
	case course.Updated:
		return "✏️ <b>Updated</b>"
	case course.Deleted:
		return "🗑 <b>Deleted</b>"
	default:
		return "<b>Changed</b>"
	}
}

// RenderChange formats one change as Telegram HTML.
func RenderChange(courseName string, ch course.Change) string {
	a := ch.Announcement
	var b strings.Builder
	fmt.Fprintf(&b, "%s · %s\n", actionHeader(ch.Action), html.EscapeString(courseName))
	fmt.Fprintf(&b, "<b>%s</b>\n", html.EscapeString(a.Title))

	meta := make([]string, 0, 2)
	if a.Author != "" {
		meta = append(meta, html.EscapeString(a.Author))
	}
	if !a.PubDate.IsZero() {
		meta = append(meta, a.PubDate.Format(pubDateDisplay))
	}
	if len(meta) > 0 {
		b.WriteString("<i>" + strings.Join(meta, " · ") + "</i>\n")
	}
	if a.Link != "" {
		fmt.Fprintf(&b, "<a href=\"%s\">Open announcement</a>\n", html.EscapeString(a.Link))
	}
	if ch.Action != course.Deleted && a.Description != "" {
		b.WriteString("\n" + html.EscapeString(a.Description))
	}
	return strings.TrimRight(b.String(), "\n")
}

// RenderCourseChanges formats every change of one course, one message each.
func RenderCourseChanges(cc tracker.CourseChanges) []string {
	out := make([]string, 0, len(cc.Changes))
	for _, ch := range cc.Changes {
		out = append(out, RenderChange(cc.Name, ch))
	}
	return out
}

func semesterLabel(s string) string {
	switch s {
	case "1":
		return "1st semester"
	case "2":
		return "2nd semester"
	default:
		return s
	}
}

// RenderCourseList formats the tracked courses of a group.
func RenderCourseList(courses []*course.Course) string {
	if len(courses) == 0 {
		return "No courses tracked here yet. Use /add <link>."
	}
	var b strings.Builder
	b.WriteString("<b>Tracked courses</b>\n")
	for i, c := range courses {
		fmt.Fprintf(&b, "%d. <b>%s</b> · %s, %s · %d announcements\n",
			i+1, html.EscapeString(c.Name), html.EscapeString(c.Years), semesterLabel(c.Semester), len(c.Announcements))
	}
	return strings.TrimRight(b.String(), "\n")
}

func helpText(cmds []Command) string {
	var b strings.Builder
	b.WriteString("<b>Course announcement tracker</b>\n\n")
	for _, c := range cmds {
		fmt.Fprintf(&b, "<code>%s</code> %s\n", html.EscapeString(c.Usage), html.EscapeString(c.Description))
	}
	b.WriteString("\nCourse links look like:\n<code>" + html.EscapeString(course.ExpectedLinkFormat) + "</code>")
	return b.String()
}
