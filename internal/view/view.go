// Package view owns the state of the weekly calendar view: which week is
// visible, the fetch lifecycle, and the "now" indicator. It is the glue
// between the backend client and the layout core, and it is the only writer
// of that state.
package view

import (
	"context"
	"errors"
	"sync"
	"time"

	"weekcal/internal/layout"
	appLog "weekcal/internal/log"
	"weekcal/internal/model"
)

// State is the fetch lifecycle of the visible week.
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateFailed  State = "failed"
)

// ErrSuperseded is returned by a load whose result was discarded because a
// newer navigation started while it was in flight.
var ErrSuperseded = errors.New("view: load superseded by newer navigation")

// EventsAPI is the slice of the backend client the view needs.
type EventsAPI interface {
	Events(ctx context.Context, from, to time.Time) ([]model.Event, error)
}

// EventView is one laid-out event, ready to render.
type EventView struct {
	ID          string          `json:"id"`
	Kind        model.EventKind `json:"eventType"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Location    string          `json:"location,omitempty"`
	Start       time.Time       `json:"start"`
	End         time.Time       `json:"end"`
	Column      int             `json:"column"`
	ColumnCount int             `json:"columnCount"`
	Box         layout.Box      `json:"box"`
}

// DayView is one column of the weekly grid.
type DayView struct {
	Date   time.Time   `json:"date"`
	Events []EventView `json:"events"`
}

// WeekView is the complete view-model for one week. It is immutable once
// published except for NowOffset, which is swapped wholesale by the ticker.
type WeekView struct {
	WeekStart time.Time `json:"weekStart"`
	WeekEnd   time.Time `json:"weekEnd"`
	Days      []DayView `json:"days"`

	// NowOffset is the vertical pixel offset of the now indicator, present
	// only while the current instant falls inside this week.
	NowOffset *float64 `json:"nowOffset,omitempty"`
}

// Snapshot is a point-in-time copy of the controller state for rendering.
type Snapshot struct {
	State State     `json:"state"`
	Error string    `json:"error,omitempty"`
	Week  *WeekView `json:"week,omitempty"`
}

// Options tune a Controller; the zero value gives production behavior.
type Options struct {
	// Now substitutes the clock, for tests.
	Now func() time.Time
	// TickInterval overrides the one-minute now-indicator cadence.
	TickInterval time.Duration
}

// Controller holds the visible week and serializes all mutations.
type Controller struct {
	api    EventsAPI
	consts layout.Constants
	loc    *time.Location
	nowFn  func() time.Time

	mu      sync.Mutex
	gen     uint64
	ref     time.Time
	state   State
	week    *WeekView
	lastErr string

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// New creates a controller showing the week of the current date and starts
// the now-indicator ticker. Callers must Close the controller when the view
// goes away; a leaked ticker keeps firing against torn-down state.
func New(api EventsAPI, consts layout.Constants, loc *time.Location, opts Options) *Controller {
	if loc == nil {
		loc = time.Local
	}
	nowFn := opts.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	tick := opts.TickInterval
	if tick <= 0 {
		tick = time.Minute
	}

	c := &Controller{
		api:    api,
		consts: consts,
		loc:    loc,
		nowFn:  nowFn,
		state:  StateIdle,
		ref:    nowFn().In(loc),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}

	go c.runTicker(tick)
	return c
}

// Close stops the now-indicator ticker and waits for it to exit. Safe to
// call more than once.
func (c *Controller) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
	<-c.done
}

func (c *Controller) runTicker(interval time.Duration) {
	defer close(c.done)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-t.C:
			c.refreshNow()
		}
	}
}

// refreshNow recomputes the now-indicator offset on the published week.
func (c *Controller) refreshNow() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.week == nil {
		return
	}
	c.week.NowOffset = c.nowOffset(c.week.WeekStart, c.week.WeekEnd)
}

// Load fetches the week containing the current reference date.
func (c *Controller) Load(ctx context.Context) error {
	c.mu.Lock()
	ref := c.ref
	c.mu.Unlock()
	return c.load(ctx, ref)
}

// GoTo navigates to the week containing date.
func (c *Controller) GoTo(ctx context.Context, date time.Time) error {
	return c.load(ctx, date.In(c.loc))
}

// NextWeek navigates one week forward.
func (c *Controller) NextWeek(ctx context.Context) error {
	c.mu.Lock()
	ref := c.ref.AddDate(0, 0, 7)
	c.mu.Unlock()
	return c.load(ctx, ref)
}

// PrevWeek navigates one week back.
func (c *Controller) PrevWeek(ctx context.Context) error {
	c.mu.Lock()
	ref := c.ref.AddDate(0, 0, -7)
	c.mu.Unlock()
	return c.load(ctx, ref)
}

// Reload refetches the current week, e.g. after a create/edit/delete.
func (c *Controller) Reload(ctx context.Context) error {
	return c.Load(ctx)
}

// load runs one fetch under a generation token. Starting a newer load
// invalidates every older in-flight one: when a stale fetch finally
// resolves, its result is dropped instead of overwriting newer state.
func (c *Controller) load(ctx context.Context, ref time.Time) error {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.ref = ref
	c.state = StateLoading
	c.mu.Unlock()

	weekStart, weekEnd := layout.ComputeWeek(ref)

	events, err := c.api.Events(ctx, weekStart, weekEnd)

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		appLog.Debug("discarding stale week fetch", "generation", gen, "current", c.gen)
		return ErrSuperseded
	}

	if err != nil {
		// Keep the previously rendered week; only the state flips.
		c.state = StateFailed
		c.lastErr = err.Error()
		appLog.Error("week fetch failed", err, "week_start", weekStart.Format("2006-01-02"))
		return err
	}

	c.week = c.buildWeek(weekStart, weekEnd, events)
	c.state = StateReady
	c.lastErr = ""
	appLog.Info("week loaded",
		"week_start", weekStart.Format("2006-01-02"),
		"event_count", len(events),
	)
	return nil
}

// Snapshot returns a copy of the current state for rendering. The contained
// WeekView must be treated as read-only.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{State: c.state, Error: c.lastErr}
	if c.week != nil {
		wk := *c.week
		snap.Week = &wk
	}
	return snap
}

// buildWeek runs the layout core over fetched events: bucket by day, pack
// each day, map every placement to grid coordinates.
func (c *Controller) buildWeek(weekStart, weekEnd time.Time, events []model.Event) *WeekView {
	days := layout.BucketEvents(weekStart, events)

	wk := &WeekView{
		WeekStart: weekStart,
		WeekEnd:   weekEnd,
		Days:      make([]DayView, len(days)),
		NowOffset: c.nowOffset(weekStart, weekEnd),
	}

	for i, d := range days {
		placements := layout.PackDay(d.Events)
		dv := DayView{Date: d.Date, Events: make([]EventView, len(d.Events))}
		for j, ev := range d.Events {
			p := placements[j]
			dv.Events[j] = EventView{
				ID:          ev.ID,
				Kind:        ev.Kind,
				Title:       ev.Title,
				Description: ev.Description,
				Location:    ev.Location,
				Start:       ev.Start,
				End:         ev.End,
				Column:      p.Column,
				ColumnCount: p.ColumnCount,
				Box:         layout.EventBox(p, ev.Start, ev.End, c.consts),
			}
		}
		wk.Days[i] = dv
	}

	return wk
}

func (c *Controller) nowOffset(weekStart, weekEnd time.Time) *float64 {
	now := c.nowFn().In(c.loc)
	if now.Before(weekStart) || !now.Before(weekEnd) {
		return nil
	}
	off := layout.NowOffset(now, c.consts)
	return &off
}
