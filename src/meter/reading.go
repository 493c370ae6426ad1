// Package meter samples AC current and buffers readings for upload.
package meter

// Reading is a single RMS current measurement and the power derived from it
type Reading struct {
	Amps  float64 `json:"amps"`
	Watts float64 `json:"watts"`
}

// NewReading derives watts from amps at the given mains voltage
func NewReading(amps, mainsVoltage float64) Reading {
	return Reading{Amps: amps, Watts: amps * mainsVoltage}
}
