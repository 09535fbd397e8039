// Package display provides terminal formatting for noticecal output.
package display

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/tracyhatemice/noticecal/internal/event"
)

var (
	Muted    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6b7280"))
	Dim      = lipgloss.NewStyle().Foreground(lipgloss.Color("#9ca3af"))
	Bold     = lipgloss.NewStyle().Bold(true)
	Success  = lipgloss.NewStyle().Foreground(lipgloss.Color("#16a34a"))
	Warning  = lipgloss.NewStyle().Foreground(lipgloss.Color("#d97706"))
	ErrStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#dc2626"))
)

// StateBadge returns a colored label for a scan end state.
func StateBadge(state string) string {
	switch state {
	case "drained":
		return Success.Render("● " + state)
	case "quota_reached":
		return Warning.Render("○ " + state)
	case "interrupted", "failed":
		return ErrStyle.Render("✗ " + state)
	default:
		return Dim.Render("· " + state)
	}
}

// Upcoming returns up to limit events starting on or after the day of now,
// earliest first. Events with unparseable starts are left out.
func Upcoming(events []event.Calendar, now time.Time, loc *time.Location, limit int) []event.Calendar {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	type dated struct {
		at  time.Time
		cal event.Calendar
	}
	var out []dated
	for _, c := range events {
		at, ok := parseStart(c.Start, loc)
		if !ok || at.Before(today) {
			continue
		}
		out = append(out, dated{at: at, cal: c})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].at.Before(out[j].at) })

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	result := make([]event.Calendar, len(out))
	for i, d := range out {
		result[i] = d.cal
	}
	return result
}

func parseStart(s string, loc *time.Location) (time.Time, bool) {
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// When formats an event start for a listing, e.g. "Sun 10 Aug 18:00" or
// "Sun 10 Aug" for all-day events.
func When(start string, loc *time.Location) string {
	t, ok := parseStart(start, loc)
	if !ok {
		return start
	}
	if !strings.Contains(start, "T") {
		return t.Format("Mon 02 Jan")
	}
	return t.Format("Mon 02 Jan 15:04")
}

// EventLine prints one event as a single listing row.
func EventLine(w io.Writer, c event.Calendar, loc *time.Location) {
	title := Truncate(c.TitleOr("(untitled)"), 50)
	line := fmt.Sprintf("    %-17s %s", When(c.Start, loc), title)
	if c.ExtendedProps.Venue != nil && *c.ExtendedProps.Venue != "" {
		line += "  " + Dim.Render("@ "+Truncate(*c.ExtendedProps.Venue, 30))
	}
	fmt.Fprintln(w, line)
}

// Truncate shortens a string to maxLen runes, adding ellipsis if needed.
func Truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

// Header prints a section header.
func Header(w io.Writer, title string) {
	fmt.Fprintln(w, Bold.Render(title))
}

// SubHeader prints a dim subsection label.
func SubHeader(w io.Writer, title string) {
	fmt.Fprintln(w, Muted.Render(title))
}

// SuccessMsg prints a green checkmark + message.
func SuccessMsg(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, Success.Render("✓")+" "+fmt.Sprintf(format, args...))
}

// ErrorMsg prints a red X + message.
func ErrorMsg(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, ErrStyle.Render("✗")+" "+fmt.Sprintf(format, args...))
}
