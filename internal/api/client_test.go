package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"weekcal/internal/model"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	tok := &oauth2.Token{AccessToken: "test-token", TokenType: "Bearer"}
	return NewClient(context.Background(), ts.URL, 5*time.Second, tok, time.UTC)
}

func TestLogin(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/login" {
			t.Errorf("path = %s, want /login", r.URL.Path)
		}
		u, p, ok := r.BasicAuth()
		if !ok || u != "alice" || p != "hunter2" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"token": "issued-token"})
	}))
	defer ts.Close()

	tok, err := Login(context.Background(), ts.URL, "alice", "hunter2", 5*time.Second)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if tok.AccessToken != "issued-token" || tok.TokenType != "Bearer" {
		t.Errorf("token = %+v", tok)
	}
}

func TestLoginRejected(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad credentials", http.StatusUnauthorized)
	}))
	defer ts.Close()

	_, err := Login(context.Background(), ts.URL, "alice", "wrong", 5*time.Second)
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsUnauthorized(err) {
		t.Errorf("IsUnauthorized(%v) = false, want true", err)
	}
}

func TestEventsDecodesRecords(t *testing.T) {
	desc := "bring laptop"
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/userEvents" {
			t.Errorf("path = %s, want /userEvents", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q", got)
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Error("X-Request-ID header missing")
		}
		if got := r.URL.Query().Get("from"); got != "2026-03-02T00:00:00.000+00:00" {
			t.Errorf("from = %q", got)
		}
		if got := r.URL.Query().Get("to"); got != "2026-03-09T00:00:00.000+00:00" {
			t.Errorf("to = %q", got)
		}

		records := []eventRecord{
			{
				ID:          "e1",
				UserID:      "u1",
				EventType:   "STANDARD",
				Title:       "Standup",
				Description: &desc,
				Start:       "2026-03-03T09:00:00.000+01:00",
				End:         "2026-03-03T09:30:00.000+01:00",
			},
			{
				ID:        "e2",
				UserID:    "u1",
				EventType: "WORKOUT",
				Title:     "Run",
				Start:     "2026-03-03T18:00:00.000+00:00",
				End:       "2026-03-03T19:00:00.000+00:00",
			},
		}
		_ = json.NewEncoder(w).Encode(records)
	})

	from := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	events, err := c.Events(context.Background(), from, from.AddDate(0, 0, 7))
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}

	e1 := events[0]
	if e1.ID != "e1" || e1.Kind != model.KindStandard || e1.Description != "bring laptop" {
		t.Errorf("e1 = %+v", e1)
	}
	// +01:00 on the wire, normalized into the client timezone (UTC here).
	wantStart := time.Date(2026, 3, 3, 8, 0, 0, 0, time.UTC)
	if !e1.Start.Equal(wantStart) || e1.Start.Location() != time.UTC {
		t.Errorf("e1 start = %v, want %v in UTC", e1.Start, wantStart)
	}
	if events[1].Kind != model.KindWorkout {
		t.Errorf("e2 kind = %s, want WORKOUT", events[1].Kind)
	}
}

func TestEventsMalformedRecordFailsFetch(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		records := []eventRecord{
			{ID: "ok", Title: "Fine", Start: "2026-03-03T09:00:00.000+00:00", End: "2026-03-03T10:00:00.000+00:00"},
			{ID: "bad", Title: "Broken", Start: "yesterday-ish", End: "2026-03-03T10:00:00.000+00:00"},
		}
		_ = json.NewEncoder(w).Encode(records)
	})

	_, err := c.Events(context.Background(), time.Now(), time.Now().Add(time.Hour))
	if err == nil {
		t.Fatal("expected decode failure")
	}
	var decErr *DecodeError
	if !errors.As(err, &decErr) {
		t.Fatalf("error = %T (%v), want *DecodeError", err, err)
	}
	if decErr.ID != "bad" || decErr.Field != "start" {
		t.Errorf("decode error = %+v", decErr)
	}
}

func TestEventsEndNotAfterStart(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		records := []eventRecord{
			{ID: "x", Title: "Zero length", Start: "2026-03-03T09:00:00.000+00:00", End: "2026-03-03T09:00:00.000+00:00"},
		}
		_ = json.NewEncoder(w).Encode(records)
	})

	_, err := c.Events(context.Background(), time.Now(), time.Now().Add(time.Hour))
	var decErr *DecodeError
	if !errors.As(err, &decErr) || decErr.Field != "end" {
		t.Fatalf("error = %v, want DecodeError on end", err)
	}
}

func TestCreateEventPayload(t *testing.T) {
	var raw map[string]json.RawMessage
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/createEvent" {
			t.Errorf("%s %s, want POST /createEvent", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(eventRecord{
			ID:        "created-1",
			EventType: "STANDARD",
			Title:     "Lunch",
			Start:     "2026-03-03T12:00:00.000+00:00",
			End:       "2026-03-03T13:00:00.000+00:00",
		})
	})

	in := model.EventInput{
		Kind:  model.KindStandard,
		Title: "Lunch",
		Start: time.Date(2026, 3, 3, 12, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 3, 3, 13, 0, 0, 0, time.UTC),
	}
	created, err := c.CreateEvent(context.Background(), in)
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	if created.ID != "created-1" {
		t.Errorf("created = %+v", created)
	}

	// Blank optionals go over the wire as explicit nulls.
	for _, field := range []string{"description", "location", "workoutLogId"} {
		v, ok := raw[field]
		if !ok {
			t.Errorf("field %q absent from payload", field)
			continue
		}
		if string(v) != "null" {
			t.Errorf("field %q = %s, want null", field, v)
		}
	}
	if string(raw["start"]) != `"2026-03-03T12:00:00.000+00:00"` {
		t.Errorf("start = %s", raw["start"])
	}
}

func TestUpdateEventPath(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/editEvent/ev-9" {
			t.Errorf("%s %s, want PUT /editEvent/ev-9", r.Method, r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(eventRecord{
			ID:        "ev-9",
			EventType: "STANDARD",
			Title:     "Moved",
			Start:     "2026-03-03T14:00:00.000+00:00",
			End:       "2026-03-03T15:00:00.000+00:00",
		})
	})

	in := model.EventInput{
		Kind:  model.KindStandard,
		Title: "Moved",
		Start: time.Date(2026, 3, 3, 14, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 3, 3, 15, 0, 0, 0, time.UTC),
	}
	updated, err := c.UpdateEvent(context.Background(), "ev-9", in)
	if err != nil {
		t.Fatalf("UpdateEvent: %v", err)
	}
	if updated.Title != "Moved" {
		t.Errorf("updated = %+v", updated)
	}
}

func TestDeleteEventErrorSurfacesStatus(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/deleteEvent/ev-1" {
			t.Errorf("%s %s, want DELETE /deleteEvent/ev-1", r.Method, r.URL.Path)
		}
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	err := c.DeleteEvent(context.Background(), "ev-1")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %T (%v), want *APIError", err, err)
	}
	if apiErr.Status != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", apiErr.Status)
	}
}

func TestExpiredTokenIsUnauthorized(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "token expired", http.StatusUnauthorized)
	})

	_, err := c.Events(context.Background(), time.Now(), time.Now().Add(time.Hour))
	if !IsUnauthorized(err) {
		t.Errorf("IsUnauthorized(%v) = false, want true", err)
	}
}
