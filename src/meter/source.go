package meter

import (
	"context"
	"errors"
)

// ErrSensorTransient marks a sensor read that could not be completed this cycle.
// The sampler skips the slot and tries again on its next period.
var ErrSensorTransient = errors.New("sensor read incomplete")

// Source produces one RMS current reading per call
type Source interface {
	// ReadCurrentRMS blocks for at most the source's bounded latency
	ReadCurrentRMS(ctx context.Context) (float64, error)
}

// Ensure implementations satisfy Source.
var (
	_ Source = (*SerialSource)(nil)
	_ Source = (*MockSource)(nil)
)
