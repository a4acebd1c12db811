package model_test

import (
	"strings"
	"testing"
	"time"

	"weekcal/internal/model"
)

func validInput() model.EventInput {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	return model.EventInput{
		Kind:  model.KindStandard,
		Title: "Standup",
		Start: start,
		End:   start.Add(30 * time.Minute),
	}
}

func TestValidateAccepts(t *testing.T) {
	in := validInput()
	if errs := in.Validate(); errs != nil {
		t.Fatalf("valid input rejected: %v", errs)
	}

	// Exactly the minimum duration is allowed.
	in = validInput()
	in.End = in.Start.Add(model.MinDuration)
	if errs := in.Validate(); errs != nil {
		t.Fatalf("15-minute event rejected: %v", errs)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*model.EventInput)
		wantField string
	}{
		{"missing title", func(in *model.EventInput) { in.Title = "" }, "title"},
		{"whitespace title", func(in *model.EventInput) { in.Title = "   " }, "title"},
		{"title too long", func(in *model.EventInput) { in.Title = strings.Repeat("x", 81) }, "title"},
		{"description too long", func(in *model.EventInput) { in.Description = strings.Repeat("d", 501) }, "description"},
		{"location too long", func(in *model.EventInput) { in.Location = strings.Repeat("l", 151) }, "location"},
		{"missing kind", func(in *model.EventInput) { in.Kind = "" }, "eventType"},
		{"unknown kind", func(in *model.EventInput) { in.Kind = "PARTY" }, "eventType"},
		{"end equals start", func(in *model.EventInput) { in.End = in.Start }, "end"},
		{"end before start", func(in *model.EventInput) { in.End = in.Start.Add(-time.Hour) }, "end"},
		{"too short", func(in *model.EventInput) { in.End = in.Start.Add(10 * time.Minute) }, "end"},
		{"missing start", func(in *model.EventInput) { in.Start = time.Time{} }, "start"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(&in)
			errs := in.Validate()
			if errs == nil {
				t.Fatal("expected validation failure")
			}
			if _, ok := errs[tt.wantField]; !ok {
				t.Errorf("errors = %v, want field %q flagged", errs, tt.wantField)
			}
		})
	}
}

func TestValidateCollectsAllFields(t *testing.T) {
	in := model.EventInput{} // everything wrong at once
	errs := in.Validate()
	for _, field := range []string{"eventType", "title", "start"} {
		if _, ok := errs[field]; !ok {
			t.Errorf("field %q not flagged; errors = %v", field, errs)
		}
	}
}

func TestNormalizeOptionalFields(t *testing.T) {
	workout := "w-1"
	in := validInput()
	in.Description = "  \t "
	in.Location = "  gym  "
	in.WorkoutLogID = &workout

	if errs := in.Validate(); errs != nil {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if in.Description != "" {
		t.Errorf("blank description = %q, want empty", in.Description)
	}
	if in.Location != "gym" {
		t.Errorf("location = %q, want trimmed %q", in.Location, "gym")
	}
	if in.WorkoutLogID != nil {
		t.Error("workoutLogId must be forced to nil until the workout feature lands")
	}
}
