package store

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracyhatemice/noticecal/internal/checkpoint"
	"github.com/tracyhatemice/noticecal/internal/event"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ptr(s string) *string { return &s }

func calEvent(title, start, end string) event.Calendar {
	return event.Calendar{Title: ptr(title), Start: start, End: end}
}

type recordingNotifier struct {
	got [][]event.Calendar
	err error
}

func (n *recordingNotifier) Notify(events []event.Calendar) error {
	n.got = append(n.got, events)
	return n.err
}

type fixture struct {
	dir    string
	cp     *checkpoint.Store
	events *Events
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	return fixture{
		dir:    dir,
		cp:     checkpoint.NewStore(filepath.Join(dir, "processed_uids.txt"), discardLogger()),
		events: NewEvents(filepath.Join(dir, "events.json"), discardLogger()),
	}
}

func TestAppendKeepsPrefix(t *testing.T) {
	f := newFixture(t)

	_, err := f.events.Append([]event.Calendar{calEvent("A", "2025-08-01", "2025-08-01")})
	require.NoError(t, err)
	before, err := os.ReadFile(f.events.Path())
	require.NoError(t, err)

	_, err = f.events.Append([]event.Calendar{
		calEvent("B", "2025-08-02T10:00:00", "2025-08-02T11:00:00"),
		calEvent("C", "2025-08-03", "2025-08-03"),
	})
	require.NoError(t, err)

	got, err := f.events.Calendar()
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "A", *got[0].Title)
	assert.Equal(t, "B", *got[1].Title)
	assert.Equal(t, "C", *got[2].Title)

	var first []json.RawMessage
	require.NoError(t, json.Unmarshal(before, &first))
	entries, err := f.events.Load()
	require.NoError(t, err)
	assert.JSONEq(t, string(first[0]), string(entries[0]))
}

func TestAppendPreservesForeignFields(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.WriteFile(f.events.Path(),
		[]byte(`[{"title":"Old","start":"2025-01-01","end":"2025-01-01","color":"red"}]`), 0o644))

	_, err := f.events.Append([]event.Calendar{calEvent("New", "2025-02-01", "2025-02-01")})
	require.NoError(t, err)

	raw, err := os.ReadFile(f.events.Path())
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"color": "red"`)
	assert.True(t, strings.HasPrefix(string(raw), "[\n    {"), "pretty printed with four spaces")
}

func TestAppendOverCorruptDocument(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.WriteFile(f.events.Path(), []byte(`{not json`), 0o644))

	_, err := f.events.Load()
	assert.ErrorIs(t, err, ErrCorrupt)

	entries, err := f.events.Append([]event.Calendar{calEvent("Fresh", "2025-03-01", "2025-03-01")})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestAppendKeepsFileWhenReadFails(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.Mkdir(f.events.Path(), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(f.events.Path(), "keep"), []byte("x"), 0o644))

	_, err := f.events.Append([]event.Calendar{calEvent("New", "2025-03-02", "2025-03-02")})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCorrupt)

	info, err := os.Stat(f.events.Path())
	require.NoError(t, err)
	assert.True(t, info.IsDir(), "unreadable collection must not be replaced")
	assert.FileExists(t, filepath.Join(f.events.Path(), "keep"))

	sink := NewSink(f.cp, f.events, discardLogger())
	require.Error(t, sink.Flush([]event.Calendar{calEvent("New", "2025-03-02", "2025-03-02")}, 12, 4))
	assert.Equal(t, checkpoint.Watermark(0), f.cp.Load())
}

func TestFlushAdvancesWatermarkWithoutEvents(t *testing.T) {
	f := newFixture(t)
	sink := NewSink(f.cp, f.events, discardLogger())

	require.NoError(t, sink.Flush(nil, 57, 50))

	assert.Equal(t, checkpoint.Watermark(57), f.cp.Load())
	_, err := os.Stat(f.events.Path())
	assert.True(t, errors.Is(err, os.ErrNotExist), "no events means no events file")
}

func TestFlushNeverMovesWatermarkBackwards(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.cp.Save(80))
	sink := NewSink(f.cp, f.events, discardLogger())

	require.NoError(t, sink.Flush(nil, 80, 80))
	require.NoError(t, sink.Flush(nil, 70, 80))
	assert.Equal(t, checkpoint.Watermark(80), f.cp.Load())
}

func TestFlushWritesEventsThenWatermark(t *testing.T) {
	f := newFixture(t)
	n := &recordingNotifier{err: errors.New("smtp down")}
	icsPath := filepath.Join(f.dir, "events.ics")
	sink := NewSink(f.cp, f.events, discardLogger(),
		WithICS(icsPath, time.FixedZone("IST", 5*3600+1800)),
		WithNotifier(n),
	)

	evs := []event.Calendar{calEvent("Talk", "2025-08-10T18:00:00", "2025-08-10T19:00:00")}
	require.NoError(t, sink.Flush(evs, 102, 100), "notifier failures are not fatal")

	assert.Equal(t, checkpoint.Watermark(102), f.cp.Load())
	got, err := f.events.Calendar()
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Len(t, n.got, 1)

	feed, err := os.ReadFile(icsPath)
	require.NoError(t, err)
	assert.Contains(t, string(feed), "SUMMARY:Talk")
	assert.Contains(t, string(feed), "DTSTART:20250810T123000Z")
}

func TestFlushKeepsWatermarkWhenEventsCannotBeWritten(t *testing.T) {
	f := newFixture(t)
	blocker := filepath.Join(f.dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))
	events := NewEvents(filepath.Join(blocker, "events.json"), discardLogger())
	sink := NewSink(f.cp, events, discardLogger())

	err := sink.Flush([]event.Calendar{calEvent("X", "2025-01-01", "2025-01-01")}, 9, 3)
	require.Error(t, err)
	assert.Equal(t, checkpoint.Watermark(0), f.cp.Load())
}

func TestRenderICS(t *testing.T) {
	loc := time.UTC
	events := []event.Calendar{
		calEvent("All day fest", "2025-08-10", "2025-08-11"),
		{
			Title: ptr("Lecture"), Start: "2025-08-12T09:00:00", End: "2025-08-12T10:30:00",
			ExtendedProps: event.ExtendedProps{Venue: ptr("LH 101"), OrganisingBody: ptr("Physics Dept")},
		},
		calEvent("Broken", "None", "None"),
	}

	out, skipped := RenderICS(events, loc, time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, 1, skipped)
	assert.Contains(t, out, "BEGIN:VCALENDAR")
	assert.Contains(t, out, "DTSTART;VALUE=DATE:20250810")
	assert.Contains(t, out, "DTEND;VALUE=DATE:20250812")
	assert.Contains(t, out, "DTSTART:20250812T090000Z")
	assert.Contains(t, out, "LOCATION:LH 101")
	assert.Contains(t, out, "Organised by: Physics Dept")
	assert.NotContains(t, out, "Broken")
	assert.Equal(t, 2, strings.Count(out, "BEGIN:VEVENT"))

	again, _ := RenderICS(events, loc, time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, out, again, "UIDs are deterministic")
}

func TestExport(t *testing.T) {
	f := newFixture(t)
	_, err := f.events.Append([]event.Calendar{calEvent("Quiz", "2025-09-01", "2025-09-01")})
	require.NoError(t, err)

	icsPath := filepath.Join(f.dir, "out", "events.ics")
	sink := NewSink(f.cp, f.events, discardLogger(), WithICS(icsPath, time.UTC))
	require.NoError(t, sink.Export())

	feed, err := os.ReadFile(icsPath)
	require.NoError(t, err)
	assert.Contains(t, string(feed), "SUMMARY:Quiz")

	assert.Error(t, NewSink(f.cp, f.events, discardLogger()).Export())
}
