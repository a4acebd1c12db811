package layout

import (
	"sort"
	"time"

	"weekcal/internal/model"
)

// Placement is the horizontal slot assignment for one event within its day.
// Column is zero-based; ColumnCount is the number of columns active in the
// event's overlap group, which determines the rendered width. Placements are
// derived per rendering pass and never persisted or sent to the backend.
type Placement struct {
	EventID     string
	Column      int
	ColumnCount int
}

// PackDay assigns a column to every event of one day so that events active
// at the same instant never share a column, and stamps each maximal
// transitively-overlapping chain with a uniform column count.
//
// Input must already be sorted by start time ascending (BucketEvents output).
// The sweep keeps the set of not-yet-ended events together with the columns
// they occupy, and a pool of freed columns ordered ascending so the lowest
// index is always reused first. The column count is deliberately NOT
// assigned greedily: an event that starts alone but is later joined by
// overlapping siblings still has to render at the narrow width, so the
// count is stamped onto the whole chain only when the chain is known to be
// complete (no later event can bridge into it).
//
// Two events meeting exactly (end == next start) do not overlap: the earlier
// one is evicted and its column freed. They still end up in one chain when a
// third event keeps the chain's maximum end time beyond the boundary.
func PackDay(events []model.Event) []Placement {
	placements := make([]Placement, 0, len(events))

	type active struct {
		end    time.Time
		column int
	}

	var (
		running    []active
		free       []int
		groupEnd   time.Time
		groupFirst int // index into placements of the open chain's first event
		maxColumns int
	)

	flush := func(upto int) {
		count := maxColumns
		if count < 1 {
			count = 1
		}
		for i := groupFirst; i < upto; i++ {
			placements[i].ColumnCount = count
		}
		running = running[:0]
		free = free[:0]
		groupEnd = time.Time{}
		groupFirst = upto
		maxColumns = 0
	}

	for i, ev := range events {
		// The chain is complete once an event starts at or after every end
		// seen so far: nothing later can overlap back into it.
		if !groupEnd.IsZero() && !ev.Start.Before(groupEnd) {
			flush(i)
		}

		// Evict events that ended at or before this start; their columns
		// return to the pool in ascending order.
		kept := running[:0]
		for _, a := range running {
			if a.end.After(ev.Start) {
				kept = append(kept, a)
				continue
			}
			free = insertSorted(free, a.column)
		}
		running = kept

		var col int
		if len(free) > 0 {
			col = free[0]
			free = free[1:]
		} else {
			col = len(running)
		}

		running = append(running, active{end: ev.End, column: col})
		if groupEnd.IsZero() || ev.End.After(groupEnd) {
			groupEnd = ev.End
		}
		if len(running) > maxColumns {
			maxColumns = len(running)
		}

		placements = append(placements, Placement{EventID: ev.ID, Column: col})
	}

	flush(len(events))
	return placements
}

func insertSorted(cols []int, c int) []int {
	i := sort.SearchInts(cols, c)
	cols = append(cols, 0)
	copy(cols[i+1:], cols[i:])
	cols[i] = c
	return cols
}
