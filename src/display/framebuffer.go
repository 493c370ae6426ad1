package display

import (
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Framebuffer is a double-buffered monochrome Surface. Flush copies the back
// buffer to the front buffer and, when a snapshot path is set, writes the
// front buffer there as a PNG.
type Framebuffer struct {
	mu           sync.Mutex
	back         *image.Gray
	front        *image.Gray
	face         font.Face
	font         Font
	x, y         int
	snapshotPath string
}

// Ensure Framebuffer implements Surface.
var _ Surface = (*Framebuffer)(nil)

// NewFramebuffer creates a blank ScreenWidth x ScreenHeight framebuffer
func NewFramebuffer(snapshotPath string) *Framebuffer {
	bounds := image.Rect(0, 0, ScreenWidth, ScreenHeight)
	return &Framebuffer{
		back:         image.NewGray(bounds),
		front:        image.NewGray(bounds),
		face:         basicfont.Face7x13,
		font:         FontSmall,
		snapshotPath: snapshotPath,
	}
}

func (f *Framebuffer) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	draw.Draw(f.back, f.back.Bounds(), image.Black, image.Point{}, draw.Src)
}

func (f *Framebuffer) DrawBox(x, y, w, h int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	draw.Draw(f.back, image.Rect(x, y, x+w, y+h), image.White, image.Point{}, draw.Src)
}

func (f *Framebuffer) SetFont(fnt Font) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.font = fnt
}

func (f *Framebuffer) SetCursor(x, y int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.x, f.y = x, y
}

// Print draws text with its top edge at the cursor and advances the cursor
func (f *Framebuffer) Print(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ascent := f.face.Metrics().Ascent.Ceil()
	d := &font.Drawer{
		Dst:  f.back,
		Src:  image.White,
		Face: f.face,
		Dot:  fixed.P(f.x, f.y+ascent),
	}
	d.DrawString(text)
	f.x += TextWidth(text, f.font) + 1
}

func (f *Framebuffer) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	copy(f.front.Pix, f.back.Pix)
	if f.snapshotPath == "" {
		return nil
	}
	return writePNG(f.snapshotPath, f.front)
}

// Front returns a copy of the visible buffer
func (f *Framebuffer) Front() *image.Gray {
	f.mu.Lock()
	defer f.mu.Unlock()

	img := image.NewGray(f.front.Bounds())
	copy(img.Pix, f.front.Pix)
	return img
}

// writePNG replaces path atomically so readers never see a partial image
func writePNG(path string, img image.Image) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".frame-*.png")
	if err != nil {
		return fmt.Errorf("failed to create snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := png.Encode(tmp, img); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}
