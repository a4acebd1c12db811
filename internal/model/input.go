package model

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Field length bounds enforced before anything is sent to the backend.
// These mirror the server-side limits so invalid input never leaves the
// process.
const (
	MaxTitleLen       = 80
	MaxDescriptionLen = 500
	MaxLocationLen    = 150

	// MinDuration is the shortest event the UI will submit.
	MinDuration = 15 * time.Minute
)

// EventInput is the user-supplied payload for creating or editing an event.
// Optional free-text fields are trimmed and collapsed to empty when blank.
type EventInput struct {
	Kind        EventKind `json:"eventType"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Location    string    `json:"location"`

	// WorkoutLogID is accepted for forward compatibility but forced to nil
	// on submit until the workout endpoints exist.
	WorkoutLogID *string `json:"workoutLogId"`
}

// ValidationErrors maps a field name to its first failed rule. A non-empty
// map blocks submission; the UI uses the keys to mark every offending field
// at once.
type ValidationErrors map[string]string

func (v ValidationErrors) Error() string {
	fields := make([]string, 0, len(v))
	for f := range v {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+v[f])
	}
	return "invalid event input: " + strings.Join(parts, "; ")
}

// Normalize trims free-text fields and collapses blank optionals to empty.
// It is called by Validate but is exported so callers can normalize without
// validating (e.g. when pre-filling an edit form).
func (in *EventInput) Normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Location = strings.TrimSpace(in.Location)
	in.WorkoutLogID = nil
}

// Validate normalizes the input and checks every client-side rule, returning
// all failures keyed by field. It returns nil when the input may be submitted.
func (in *EventInput) Validate() ValidationErrors {
	in.Normalize()

	errs := ValidationErrors{}

	switch in.Kind {
	case KindStandard, KindWorkout:
	case "":
		errs["eventType"] = "event type is required"
	default:
		errs["eventType"] = fmt.Sprintf("unknown event type %q", in.Kind)
	}

	if in.Title == "" {
		errs["title"] = "title is required"
	} else if len(in.Title) > MaxTitleLen {
		errs["title"] = fmt.Sprintf("title exceeds %d characters", MaxTitleLen)
	}

	if len(in.Description) > MaxDescriptionLen {
		errs["description"] = fmt.Sprintf("description exceeds %d characters", MaxDescriptionLen)
	}

	if len(in.Location) > MaxLocationLen {
		errs["location"] = fmt.Sprintf("location exceeds %d characters", MaxLocationLen)
	}

	switch {
	case in.Start.IsZero():
		errs["start"] = "start is required"
	case in.End.IsZero():
		errs["end"] = "end is required"
	case !in.End.After(in.Start):
		errs["end"] = "end must be after start"
	case in.End.Sub(in.Start) < MinDuration:
		errs["end"] = fmt.Sprintf("event must last at least %d minutes", int(MinDuration.Minutes()))
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}
