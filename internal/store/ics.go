package store

import (
	"fmt"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"github.com/tracyhatemice/noticecal/internal/atomicfile"
	"github.com/tracyhatemice/noticecal/internal/event"
)

// uidNamespace seeds the name-based UUIDs used as iCalendar UIDs.
var uidNamespace = uuid.MustParse("6f1c3a52-93a4-4b0e-9d8e-1f7cbb2a4e10")

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02T15:04:05"
	dateHMLayout   = "2006-01-02T15:04"
)

// RenderICS builds an iCalendar feed of events. Start and end values carry
// no zone and are read in loc. Entries with unparseable dates are skipped.
func RenderICS(events []event.Calendar, loc *time.Location, now time.Time) (string, int) {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//noticecal//student notices//EN")

	skipped := 0
	for i, ev := range events {
		start, allDay, err := parseStamp(ev.Start, loc)
		if err != nil {
			skipped++
			continue
		}
		end, _, err := parseStamp(ev.End, loc)
		if err != nil || end.Before(start) {
			end = start
		}

		// Entries are append-only, so the index is a stable identity.
		id := uuid.NewSHA1(uidNamespace, []byte(fmt.Sprintf("%d|%s|%s", i, ev.Start, ev.TitleOr(""))))
		vev := cal.AddEvent(id.String() + "@noticecal")
		vev.SetDtStampTime(now)
		vev.SetSummary(ev.TitleOr("Untitled event"))
		if allDay {
			vev.SetAllDayStartAt(start)
			vev.SetAllDayEndAt(end.AddDate(0, 0, 1))
		} else {
			vev.SetStartAt(start)
			vev.SetEndAt(end)
		}
		if v := ev.ExtendedProps.Venue; v != nil && *v != "" {
			vev.SetLocation(*v)
		}
		if d := describe(ev.ExtendedProps); d != "" {
			vev.SetDescription(d)
		}
	}
	return cal.Serialize(), skipped
}

// WriteICS renders events to path.
func WriteICS(path string, events []event.Calendar, loc *time.Location, now time.Time) (int, error) {
	out, skipped := RenderICS(events, loc, now)
	if err := atomicfile.WriteFile(path, []byte(out), 0o644); err != nil {
		return skipped, fmt.Errorf("write calendar: %w", err)
	}
	return skipped, nil
}

func parseStamp(s string, loc *time.Location) (time.Time, bool, error) {
	if t, err := time.ParseInLocation(dateTimeLayout, s, loc); err == nil {
		return t, false, nil
	}
	if t, err := time.ParseInLocation(dateHMLayout, s, loc); err == nil {
		return t, false, nil
	}
	t, err := time.ParseInLocation(dateLayout, s, loc)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse %q: %w", s, err)
	}
	return t, true, nil
}

func describe(p event.ExtendedProps) string {
	var lines []string
	if p.Description != nil && *p.Description != "" {
		lines = append(lines, *p.Description)
	}
	if p.OrganisingBody != nil && *p.OrganisingBody != "" {
		lines = append(lines, "Organised by: "+*p.OrganisingBody)
	}
	if p.Contact != nil && *p.Contact != "" {
		lines = append(lines, "Contact: "+*p.Contact)
	}
	return strings.Join(lines, "\n\n")
}
