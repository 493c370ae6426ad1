package display

import "strconv"

// Screen size in pixels after rotating the 128x64 panel to portrait
const (
	ScreenWidth  = 64
	ScreenHeight = 128
)

// Font describes a fixed-pitch font by its glyph cell
type Font struct {
	Name       string
	GlyphWidth int
	Height     int
}

var (
	// FontSmall is used for labels, the clock and boot messages
	FontSmall = Font{Name: "6x13", GlyphWidth: 6, Height: 13}
	// FontLarge is used for the amps and watts figures
	FontLarge = Font{Name: "ncenR12", GlyphWidth: 12, Height: 16}
)

// TextWidth returns the rendered width of text: one glyph cell per character
// minus the trailing inter-character gap
func TextWidth(text string, f Font) int {
	if text == "" {
		return 0
	}
	return len(text)*f.GlyphWidth - 1
}

// CenterX returns the cursor x that horizontally centers text on the screen
func CenterX(text string, f Font) int {
	return (ScreenWidth - TextWidth(text, f)) / 2
}

func FormatAmps(amps float64) string {
	return strconv.FormatFloat(amps, 'f', 2, 64)
}

func FormatWatts(watts float64) string {
	return strconv.FormatFloat(watts, 'f', 0, 64)
}

// SignalBars maps WiFi RSSI to the number of lit bars, 1 to 4
func SignalBars(dbm int) int {
	switch {
	case dbm >= -50:
		return 4
	case dbm > -60:
		return 3
	case dbm > -70:
		return 2
	default:
		return 1
	}
}
