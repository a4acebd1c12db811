package api

import (
	"fmt"
	"time"

	"weekcal/internal/model"
)

// isoMillis is the timestamp layout the backend speaks: ISO-8601 with
// milliseconds and a numeric offset ("2026-03-02T09:00:00.000+00:00").
const isoMillis = "2006-01-02T15:04:05.000-07:00"

// eventRecord is the wire shape of a single event as returned by the
// backend. Every field is decoded explicitly; nothing loosely typed crosses
// into the layout core.
type eventRecord struct {
	ID           string  `json:"_id"`
	UserID       string  `json:"userId"`
	EventType    string  `json:"eventType"`
	Title        string  `json:"title"`
	Description  *string `json:"description"`
	Start        string  `json:"start"`
	End          string  `json:"end"`
	Location     *string `json:"location"`
	WorkoutLogID *string `json:"workoutLogId"`
}

// eventPayload is the wire shape sent on create/edit. Optional fields are
// explicit nulls, matching what the backend validates against.
type eventPayload struct {
	EventType    string  `json:"eventType"`
	Title        string  `json:"title"`
	Start        string  `json:"start"`
	End          string  `json:"end"`
	Description  *string `json:"description"`
	Location     *string `json:"location"`
	WorkoutLogID *string `json:"workoutLogId"`
}

// DecodeError reports a malformed event record in a backend response.
type DecodeError struct {
	Index  int    // position in the response array
	ID     string // event identifier when known
	Field  string
	Reason string
}

func (e *DecodeError) Error() string {
	id := e.ID
	if id == "" {
		id = fmt.Sprintf("record %d", e.Index)
	}
	return fmt.Sprintf("api: malformed event %s: field %s: %s", id, e.Field, e.Reason)
}

// decodeEvent validates a wire record and converts it into the domain type,
// normalizing timestamps into loc.
func decodeEvent(idx int, rec eventRecord, loc *time.Location) (model.Event, error) {
	fail := func(field, reason string) (model.Event, error) {
		return model.Event{}, &DecodeError{Index: idx, ID: rec.ID, Field: field, Reason: reason}
	}

	if rec.ID == "" {
		return fail("_id", "missing")
	}
	if rec.Title == "" {
		return fail("title", "missing")
	}

	start, err := parseISO(rec.Start)
	if err != nil {
		return fail("start", err.Error())
	}
	end, err := parseISO(rec.End)
	if err != nil {
		return fail("end", err.Error())
	}
	if !end.After(start) {
		return fail("end", "not after start")
	}

	ev := model.Event{
		ID:           rec.ID,
		UserID:       rec.UserID,
		Kind:         model.EventKind(rec.EventType),
		Title:        rec.Title,
		Start:        start.In(loc),
		End:          end.In(loc),
		WorkoutLogID: rec.WorkoutLogID,
	}
	if rec.Description != nil {
		ev.Description = *rec.Description
	}
	if rec.Location != nil {
		ev.Location = *rec.Location
	}
	return ev, nil
}

// parseISO accepts both millisecond and plain RFC3339 timestamps.
func parseISO(s string) (time.Time, error) {
	if t, err := time.Parse(isoMillis, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// encodePayload converts validated input into the wire payload. Blank
// optionals become explicit nulls; workoutLogId stays null until the
// workout endpoints exist.
func encodePayload(in model.EventInput) eventPayload {
	return eventPayload{
		EventType:    string(in.Kind),
		Title:        in.Title,
		Start:        in.Start.Format(isoMillis),
		End:          in.End.Format(isoMillis),
		Description:  optional(in.Description),
		Location:     optional(in.Location),
		WorkoutLogID: nil,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
