package meter

import (
	"context"
	"log"
	"time"
)

// ReadingSink receives the freshest reading for immediate display
type ReadingSink interface {
	SetReading(amps, watts float64)
	SetBufferFill(n, capacity int)
}

// Sampler is the sampling loop body: read, buffer, publish for display
type Sampler struct {
	source       Source
	buffer       *Buffer
	mainsVoltage float64
	sink         ReadingSink
	peaks        *HourlyRange
	now          func() time.Time
	overflowing  bool
}

// NewSampler creates a sampler appending into buffer. peaks may be nil.
func NewSampler(source Source, buffer *Buffer, mainsVoltage float64, sink ReadingSink, peaks *HourlyRange) *Sampler {
	return &Sampler{
		source:       source,
		buffer:       buffer,
		mainsVoltage: mainsVoltage,
		sink:         sink,
		peaks:        peaks,
		now:          time.Now,
	}
}

// Sample takes one reading and appends it to the buffer. A failed read writes
// nothing and is not retried until the next call.
func (s *Sampler) Sample(ctx context.Context) (Reading, error) {
	amps, err := s.source.ReadCurrentRMS(ctx)
	if err != nil {
		return Reading{}, err
	}

	reading := NewReading(amps, s.mainsVoltage)
	overwrote := s.buffer.Append(reading)
	if overwrote && !s.overflowing {
		log.Printf("Sampler: buffer full, overwriting unsent readings\n")
	}
	s.overflowing = overwrote

	if s.sink != nil {
		s.sink.SetReading(reading.Amps, reading.Watts)
		s.sink.SetBufferFill(s.buffer.Len(), s.buffer.Cap())
	}
	if s.peaks != nil {
		s.peaks.Observe(reading.Watts, s.now())
	}

	return reading, nil
}

// Step runs one sampling period, absorbing transient sensor errors
func (s *Sampler) Step(ctx context.Context) {
	if _, err := s.Sample(ctx); err != nil {
		log.Printf("Sampler: skipped sample: %v\n", err)
	}
}
