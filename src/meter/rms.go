package meter

import "github.com/chewxy/math32"

// offsetFilterDepth is the low-pass divisor used to track the DC midpoint
const offsetFilterDepth = 1024

// RMSCalculator turns windows of raw ADC counts from a current transformer into
// RMS amps. The DC offset is tracked with a slow low-pass filter that persists
// across windows, so the first few windows after boot may read slightly high.
type RMSCalculator struct {
	ratio  float32
	offset float32
}

// NewRMSCalculator creates a calculator for a CT with the given calibration
// constant, ADC reference voltage and resolution in bits
func NewRMSCalculator(calibration, vref float64, adcBits int) *RMSCalculator {
	counts := float32(int(1) << adcBits)
	return &RMSCalculator{
		ratio:  float32(calibration) * (float32(vref) / counts),
		offset: counts / 2,
	}
}

// Irms returns the RMS current of the window. An empty window reads 0.
func (c *RMSCalculator) Irms(window []uint16) float64 {
	if len(window) == 0 {
		return 0
	}

	var sum float32
	for _, raw := range window {
		sample := float32(raw)
		c.offset += (sample - c.offset) / offsetFilterDepth
		filtered := sample - c.offset
		sum += filtered * filtered
	}

	return float64(c.ratio * math32.Sqrt(sum/float32(len(window))))
}
