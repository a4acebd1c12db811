package model

import "time"

// EventKind is the enumerated category of a calendar event.
// The backend currently knows STANDARD and WORKOUT; the type is a plain
// string so that new categories coming from the server do not break decoding.
type EventKind string

const (
	KindStandard EventKind = "STANDARD"
	KindWorkout  EventKind = "WORKOUT"
)

// Kinds lists the categories offered when creating an event.
func Kinds() []EventKind {
	return []EventKind{KindStandard, KindWorkout}
}

// Event is a scheduled calendar entry as fetched from the backend.
//
// Description and Location are normalized so that "absent" is the empty
// string; WorkoutLogID stays a pointer because the wire contract is
// explicitly nullable. Layout results (column, column count) are NOT part
// of this type: they are recomputed per rendering pass and live in
// internal/layout as Placement values keyed by event ID.
type Event struct {
	ID          string
	UserID      string
	Kind        EventKind
	Title       string
	Description string
	Start       time.Time
	End         time.Time
	Location    string

	// WorkoutLogID correlates a WORKOUT event with a workout record.
	// Always nil until the workout endpoints exist on the backend.
	WorkoutLogID *string
}

// Duration returns the event's time span.
func (e Event) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// WeekDay is one calendar day of the visible week: a local date plus the
// events whose start falls on that date, ordered by start time ascending.
type WeekDay struct {
	// Date is local midnight of the day.
	Date   time.Time
	Events []Event
}
