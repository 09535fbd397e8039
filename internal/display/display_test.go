package display

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracyhatemice/noticecal/internal/event"
)

func ptr(s string) *string { return &s }

func TestUpcoming(t *testing.T) {
	loc := time.UTC
	now := time.Date(2025, time.August, 10, 15, 0, 0, 0, loc)
	events := []event.Calendar{
		{Title: ptr("Past"), Start: "2025-08-01"},
		{Title: ptr("Later"), Start: "2025-09-01T10:00:00"},
		{Title: ptr("Today all-day"), Start: "2025-08-10"},
		{Title: ptr("Broken"), Start: "soon"},
		{Title: ptr("Tomorrow"), Start: "2025-08-11T09:30:00"},
	}

	got := Upcoming(events, now, loc, 2)
	require.Len(t, got, 2)
	assert.Equal(t, "Today all-day", *got[0].Title)
	assert.Equal(t, "Tomorrow", *got[1].Title)

	assert.Len(t, Upcoming(events, now, loc, 0), 3)
}

func TestWhen(t *testing.T) {
	assert.Equal(t, "Sun 10 Aug 18:00", When("2025-08-10T18:00:00", time.UTC))
	assert.Equal(t, "Sun 10 Aug", When("2025-08-10", time.UTC))
	assert.Equal(t, "tbd", When("tbd", time.UTC))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "Convoca...", Truncate("Convocation rehearsal", 10))
	assert.Equal(t, "Übe...", Truncate("Überraschung", 6))
}

func TestEventLine(t *testing.T) {
	var buf bytes.Buffer
	EventLine(&buf, event.Calendar{
		Title:         ptr("Orientation"),
		Start:         "2025-08-10T18:00:00",
		ExtendedProps: event.ExtendedProps{Venue: ptr("LH 101")},
	}, time.UTC)

	assert.Contains(t, buf.String(), "Sun 10 Aug 18:00")
	assert.Contains(t, buf.String(), "Orientation")
	assert.Contains(t, buf.String(), "LH 101")
}
