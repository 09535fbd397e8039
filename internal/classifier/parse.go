package classifier

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tracyhatemice/noticecal/internal/event"
)

var (
	// ErrEmptyResponse is returned for a blank model reply.
	ErrEmptyResponse = errors.New("empty model response")
	// ErrUnparseable is returned when the reply holds no JSON object.
	ErrUnparseable = errors.New("unparseable model response")
)

var fenceStripper = strings.NewReplacer("```json", "", "```JSON", "", "```", "")

// Parse reads a model reply. It returns (nil, nil) when the model said the
// message is not an event.
func Parse(text string) (*event.Record, error) {
	cleaned := strings.TrimSpace(fenceStripper.Replace(text))
	if cleaned == "" {
		return nil, ErrEmptyResponse
	}
	// Tolerate prose around the object.
	if i, j := strings.Index(cleaned, "{"), strings.LastIndex(cleaned, "}"); i >= 0 && j > i {
		cleaned = cleaned[i : j+1]
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: null object", ErrUnparseable)
	}

	if v, ok := fields["is_event"]; ok && string(bytes.TrimSpace(v)) == "false" {
		return nil, nil
	}

	rec := &event.Record{
		Title:          coerce(fields["title"]),
		Description:    coerce(fields["description"]),
		OrganisingBody: coerce(fields["organisingBody"]),
		StartDate:      coerce(fields["startDate"]),
		StartTime:      coerce(fields["startTime"]),
		EndDate:        coerce(fields["endDate"]),
		EndTime:        coerce(fields["endTime"]),
		Venue:          coerce(fields["venue"]),
		Contact:        coerce(fields["contact"]),
	}
	if rec.EndTime == nil {
		rec.EndTime = rec.StartTime
	}
	return rec, nil
}

// coerce turns any JSON value into text: strings as-is, null as nil,
// everything else as its compact JSON form.
func coerce(raw json.RawMessage) *string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return &s
		}
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		s := string(raw)
		return &s
	}
	s := buf.String()
	return &s
}
