// Package event holds the records extracted from notices and their
// calendar representation persisted in events.json.
package event

import "errors"

// ErrNoStartDate means a record cannot be placed on a calendar.
var ErrNoStartDate = errors.New("event has no start date")

// Record is what the classifier extracted. Every field may be missing.
type Record struct {
	Title          *string
	Description    *string
	OrganisingBody *string
	StartDate      *string // YYYY-MM-DD
	StartTime      *string // HH:MM:SS
	EndDate        *string
	EndTime        *string
	Venue          *string
	Contact        *string
}

// Calendar is the persisted shape, consumable by FullCalendar.
type Calendar struct {
	Title         *string       `json:"title"`
	Start         string        `json:"start"`
	End           string        `json:"end"`
	ExtendedProps ExtendedProps `json:"extendedProps"`
}

// ExtendedProps carries the fields FullCalendar does not interpret.
type ExtendedProps struct {
	Description    *string `json:"description"`
	Venue          *string `json:"venue"`
	OrganisingBody *string `json:"organisingBody"`
	Contact        *string `json:"contact"`
}

// ToCalendar maps r to its calendar form.
//
// A missing time yields a date-only (all-day) value. A missing end date
// reuses the start date and a missing end time reuses the start time. A
// missing start date is an error.
func (r *Record) ToCalendar() (Calendar, error) {
	startDate := value(r.StartDate)
	if startDate == "" {
		return Calendar{}, ErrNoStartDate
	}
	startTime := value(r.StartTime)

	endDate := value(r.EndDate)
	if endDate == "" {
		endDate = startDate
	}
	endTime := value(r.EndTime)
	if endTime == "" {
		endTime = startTime
	}

	return Calendar{
		Title: r.Title,
		Start: join(startDate, startTime),
		End:   join(endDate, endTime),
		ExtendedProps: ExtendedProps{
			Description:    r.Description,
			Venue:          r.Venue,
			OrganisingBody: r.OrganisingBody,
			Contact:        r.Contact,
		},
	}, nil
}

// TitleOr returns the title, or def when it is missing.
func (c *Calendar) TitleOr(def string) string {
	if c.Title == nil || *c.Title == "" {
		return def
	}
	return *c.Title
}

func join(date, clock string) string {
	if clock == "" {
		return date
	}
	return date + "T" + clock
}

func value(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
