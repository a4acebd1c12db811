package layout

import "time"

// Constants are the fixed parameters of the weekly grid. They come from
// configuration and stay unchanged for the lifetime of a view.
type Constants struct {
	// StartHour is the first hour row of the grid (e.g. 6 for 06:00).
	StartHour int
	// HourHeight is the pixel height of one hour row.
	HourHeight float64
	// GapPercent is the horizontal gap between adjacent columns, in percent
	// of the day cell width.
	GapPercent float64
	// MinEventHeight is the pixel floor for very short events so they stay
	// clickable and readable.
	MinEventHeight float64
}

// Box is the rendered rectangle of one event: vertical position and height
// in pixels, horizontal position and width in percent of the day cell.
type Box struct {
	Top    float64 `json:"top"`
	Height float64 `json:"height"`
	Left   float64 `json:"left"`
	Width  float64 `json:"width"`
}

// EventBox maps an event's time span and placement to grid coordinates.
// Pure; depends only on its arguments.
func EventBox(p Placement, start, end time.Time, c Constants) Box {
	width := (100 - c.GapPercent*float64(p.ColumnCount-1)) / float64(p.ColumnCount)

	height := end.Sub(start).Minutes() / 60 * c.HourHeight
	if height < c.MinEventHeight {
		height = c.MinEventHeight
	}

	return Box{
		Top:    timeOffset(start, c),
		Height: height,
		Left:   float64(p.Column) * (width + c.GapPercent),
		Width:  width,
	}
}

// NowOffset returns the vertical pixel offset of the "now" indicator line
// for the given instant, using the same time-to-pixel mapping as EventBox.
func NowOffset(now time.Time, c Constants) float64 {
	return timeOffset(now, c)
}

func timeOffset(t time.Time, c Constants) float64 {
	minutes := (t.Hour()-c.StartHour)*60 + t.Minute()
	return float64(minutes) / 60 * c.HourHeight
}
