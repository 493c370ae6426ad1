// Package clock provides the wall-clock time shown on the display.
package clock

import (
	"context"
	"time"
)

// Source returns the current time
type Source interface {
	Now() time.Time
}

// SystemClock trusts the host's clock
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// TextSink receives the formatted clock text
type TextSink interface {
	SetClock(text string)
}

// Display writes the formatted time of a Source into a TextSink
type Display struct {
	source   Source
	sink     TextSink
	format   string
	location *time.Location
}

func NewDisplay(source Source, sink TextSink, format string, location *time.Location) *Display {
	if location == nil {
		location = time.Local
	}
	return &Display{source: source, sink: sink, format: format, location: location}
}

// Step writes the current time once
func (d *Display) Step(ctx context.Context) {
	d.sink.SetClock(d.source.Now().In(d.location).Format(d.format))
}
