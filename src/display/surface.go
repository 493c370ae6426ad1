package display

import "errors"

// ErrFlush wraps a failed buffer swap; the renderer retries on the next frame
var ErrFlush = errors.New("display flush failed")

// Surface is the drawing target. Draw calls go to a back buffer that only
// becomes visible on Flush.
type Surface interface {
	Clear()
	DrawBox(x, y, w, h int)
	SetFont(f Font)
	// SetCursor positions the top-left corner of the next Print
	SetCursor(x, y int)
	Print(text string)
	Flush() error
}
