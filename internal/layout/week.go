package layout

import (
	"sort"
	"time"

	"weekcal/internal/model"
)

// DaysPerWeek is the number of day buckets in a week view.
const DaysPerWeek = 7

// ComputeWeek returns the Monday-aligned 7-day window containing ref.
// The start is Monday 00:00:00 local time; the end is exactly seven days
// later and is an exclusive bound. A Sunday reference belongs to the week
// of the Monday six days earlier, never the upcoming Monday.
func ComputeWeek(ref time.Time) (start, end time.Time) {
	offset := 1 - int(ref.Weekday()) // Sunday=0 .. Saturday=6
	if ref.Weekday() == time.Sunday {
		offset = -6
	}

	shifted := ref.AddDate(0, 0, offset)
	start = time.Date(shifted.Year(), shifted.Month(), shifted.Day(), 0, 0, 0, 0, shifted.Location())
	return start, start.AddDate(0, 0, DaysPerWeek)
}

// BucketEvents distributes events into the seven days starting at weekStart.
// An event belongs to the day sharing the local (year, month, day) of its
// start. Events starting outside the window are omitted; the fetch range
// normally prevents that, but an over-returning backend must not corrupt
// the view. Within a day events are ordered by start time ascending, ties
// broken by event ID ascending so the layout is deterministic regardless of
// response order.
func BucketEvents(weekStart time.Time, events []model.Event) []model.WeekDay {
	days := make([]model.WeekDay, DaysPerWeek)
	index := make(map[[3]int]int, DaysPerWeek)

	for i := range days {
		date := weekStart.AddDate(0, 0, i)
		days[i] = model.WeekDay{Date: date}
		index[dateKey(date)] = i
	}

	for _, ev := range events {
		i, ok := index[dateKey(ev.Start)]
		if !ok {
			continue
		}
		days[i].Events = append(days[i].Events, ev)
	}

	for i := range days {
		evs := days[i].Events
		sort.Slice(evs, func(a, b int) bool {
			if !evs[a].Start.Equal(evs[b].Start) {
				return evs[a].Start.Before(evs[b].Start)
			}
			return evs[a].ID < evs[b].ID
		})
	}

	return days
}

func dateKey(t time.Time) [3]int {
	y, m, d := t.Date()
	return [3]int{y, int(m), d}
}
