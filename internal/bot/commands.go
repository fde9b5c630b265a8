package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"fenixbot/internal/course"
	"fenixbot/internal/registry"
	"fenixbot/internal/tracker"
	kit "fenixbot/internal/transport"
	logx "fenixbot/pkg/logx"
)

// Command is one chat command.
type Command struct {
	Name        string
	Usage       string
	Description string
	handle      func(ctx context.Context, req *Request) string
}

// Request is a parsed incoming command.
type Request struct {
	Msg   kit.Message
	Group registry.GroupID
	Name  string
	Args  []string
	Log   logx.Logger
}

func (b *Bot) commands() []Command {
	return []Command{
		{Name: "help", Usage: "/help", Description: "show this message", handle: b.cmdHelp},
		{Name: "tracked", Usage: "/tracked", Description: "list the courses tracked in this chat", handle: b.cmdTracked},
		{Name: "add", Usage: "/add <link>", Description: "track a course", handle: b.cmdAdd},
		{Name: "remove", Usage: "/remove <name>", Description: "stop tracking a course", handle: b.cmdRemove},
		{Name: "update", Usage: "/update", Description: "check this chat's courses now", handle: b.cmdUpdate},
	}
}

// MenuCommands lists the commands for the platform menu.
func (b *Bot) MenuCommands() []kit.BotCommand {
	out := make([]kit.BotCommand, 0, len(b.cmds))
	for _, c := range b.cmds {
		out = append(out, kit.BotCommand{Command: c.Name, Description: c.Description})
	}
	return out
}

// ParseCommand splits "/name@bot arg1 arg2" into its lowercased name and
// arguments. ok is false for text that is not a command.
func ParseCommand(text string) (name string, args []string, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", nil, false
	}
	parts := strings.Fields(text)
	word := strings.TrimPrefix(parts[0], "/")
	if i := strings.IndexByte(word, '@'); i >= 0 {
		word = word[:i]
	}
	if word == "" {
		return "", nil, false
	}
	return strings.ToLower(word), parts[1:], true
}

func (b *Bot) cmdHelp(_ context.Context, _ *Request) string {
	return helpText(b.cmds)
}

func (b *Bot) cmdTracked(_ context.Context, req *Request) string {
	return RenderCourseList(b.reg.ListCourses(req.Group))
}

func (b *Bot) cmdAdd(ctx context.Context, req *Request) string {
	if len(req.Args) != 1 {
		return "Usage: <code>/add &lt;link&gt;</code>\nExample: <code>" + html.EscapeString(course.ExpectedLinkFormat) + "</code>"
	}
	link := req.Args[0]

	c, err := b.reg.AddCourse(req.Group, link)
	if err != nil {
		var inv *course.InvalidLinkError
		switch {
		case errors.As(err, &inv):
			return fmt.Sprintf("Invalid link: %s.\nExpected: <code>%s</code>", html.EscapeString(inv.Reason), html.EscapeString(inv.Hint()))
		case errors.Is(err, registry.ErrDuplicateCourse):
			return "That course is already tracked here."
		default:
			req.Log.Error("add course failed", logx.Err(err))
			return "Could not add the course."
		}
	}
	unsaved := b.save(ctx, req.Log) != nil

	head := fmt.Sprintf("Now tracking <b>%s</b> (%s, %s).", html.EscapeString(c.Name), html.EscapeString(c.Years), semesterLabel(c.Semester))
	changes, err := b.tr.SyncCourse(ctx, req.Group, c.Link)
	var perr *tracker.PersistError
	switch {
	case errors.Is(err, tracker.ErrBusy):
		return withSaveNote(head+"\nAn update is running; announcements arrive with the next one.", unsaved)
	case errors.As(err, &perr):
		req.Log.Error("registry save failed", logx.Err(err))
		unsaved = true
	case err != nil:
		req.Log.Warn("initial sync failed", logx.String("course", c.Name), logx.Err(err))
		return withSaveNote(head+"\nThe feed could not be read yet; it will be retried on the next update.", unsaved)
	}

	target := chatOf(req.Msg)
	for _, text := range RenderCourseChanges(tracker.CourseChanges{Group: req.Group, Link: c.Link, Name: c.Name, Changes: changes}) {
		b.notifier.Enqueue(target, text)
	}
	return withSaveNote(head+fmt.Sprintf("\n%d announcements found.", len(changes)), unsaved)
}

func (b *Bot) cmdRemove(ctx context.Context, req *Request) string {
	if len(req.Args) != 1 {
		return "Usage: <code>/remove &lt;name&gt;</code>"
	}
	name := req.Args[0]
	if err := b.reg.RemoveCourse(req.Group, name); err != nil {
		if errors.Is(err, registry.ErrCourseNotFound) {
			return fmt.Sprintf("No tracked course named <b>%s</b>. See /tracked.", html.EscapeString(name))
		}
		req.Log.Error("remove course failed", logx.Err(err))
		return "Could not remove the course."
	}
	unsaved := b.save(ctx, req.Log) != nil
	return withSaveNote(fmt.Sprintf("Stopped tracking <b>%s</b>.", html.EscapeString(name)), unsaved)
}

func (b *Bot) cmdUpdate(ctx context.Context, req *Request) string {
	group := req.Group
	sum, err := b.tr.RunCycle(ctx, &group)

	var (
		cerr *tracker.CycleError
		perr *tracker.PersistError
	)
	unsaved := errors.As(err, &perr)
	switch {
	case errors.Is(err, tracker.ErrBusy):
		return "An update is already running."
	case sum.Skipped == tracker.SkipQuietHours:
		return "Updates are paused during quiet hours (" + b.tr.Policy().Quiet.String() + ")."
	case sum.Skipped == tracker.SkipTooSoon:
		return "An update ran moments ago. Try again later."
	case errors.As(err, &cerr):
		lines := make([]string, 0, len(cerr.Failures)+1)
		lines = append(lines, "Some courses could not be checked:")
		for _, f := range cerr.Failures {
			lines = append(lines, "• "+html.EscapeString(f.Name))
		}
		return withSaveNote(strings.Join(lines, "\n"), unsaved)
	case unsaved:
		req.Log.Error("registry save failed", logx.Err(err))
		if sum.Total == 0 {
			return withSaveNote("No new announcements.", true)
		}
		// The cycle event delivers the changes; only the save problem is reported here.
		return saveNote
	case err != nil:
		req.Log.Error("update failed", logx.Err(err))
		if sum.Total == 0 {
			return "Update failed."
		}
		return ""
	case sum.Total == 0:
		return "No new announcements."
	}
	// Changes are delivered by the cycle event.
	return ""
}

// saveNote is appended to replies whose change is applied in memory but
// could not be written to the backup store.
const saveNote = "⚠️ The change is kept in memory but could not be saved yet. The next save will retry."

func withSaveNote(reply string, unsaved bool) string {
	if !unsaved {
		return reply
	}
	return reply + "\n" + saveNote
}

func (b *Bot) save(ctx context.Context, log logx.Logger) error {
	if b.saver == nil {
		return nil
	}
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.tr.Policy().SaveTimeout)
	defer cancel()
	err := b.saver.Save(sctx, b.reg.Snapshot())
	if err != nil {
		log.Error("registry save failed", logx.Err(err))
	}
	return err
}

func chatOf(m kit.Message) kit.ChatTarget {
	return kit.ChatTarget{ChatID: m.ChatID, ThreadID: m.ThreadID}
}
