// Package overlay draws analysis boxes over an image scaled to a fixed
// container height and maps clicks on the result back to boxes.
//
// Box coordinates are in source image pixels. Each coordinate is scaled and
// rounded on its own, so the right and bottom edges of a box can drift by a
// pixel relative to rounding the box as a whole.
package overlay

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/menta2k/vision-lens/pkg/processing"
	"github.com/menta2k/vision-lens/pkg/types"
)

const (
	// DefaultContainerHeight is the canvas height used when none is given
	DefaultContainerHeight = 480

	AccentColor     = "#ff4081"
	DefaultBoxColor = "#00e5ff"

	selectedStroke = 3
	normalStroke   = 2

	labelOffsetX = 4
	labelOffsetY = 14
)

// ScaledBox is a box in canvas pixels
type ScaledBox struct {
	X, Y, W, H int
}

// Renderer holds one decoded image and draws boxes over it.
// It starts unloaded; a failed load leaves it unloaded and Render returns nil.
type Renderer struct {
	mu              sync.RWMutex
	containerHeight int
	img             image.Image
}

// New creates an unloaded renderer. Non-positive heights use DefaultContainerHeight.
func New(containerHeight int) *Renderer {
	if containerHeight <= 0 {
		containerHeight = DefaultContainerHeight
	}
	return &Renderer{containerHeight: containerHeight}
}

// Load decodes image bytes and moves the renderer to the loaded state
func (r *Renderer) Load(data []byte) error {
	img, err := processing.DecodeImage(data)
	if err != nil {
		return fmt.Errorf("failed to decode preview: %w", err)
	}
	r.LoadImage(img)
	return nil
}

// LoadImage sets an already decoded image
func (r *Renderer) LoadImage(img image.Image) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if img == nil || img.Bounds().Empty() {
		r.img = nil
		return
	}
	r.img = img
}

// Reset drops the image and returns to the unloaded state
func (r *Renderer) Reset() {
	r.mu.Lock()
	r.img = nil
	r.mu.Unlock()
}

// Loaded reports whether an image has been decoded
func (r *Renderer) Loaded() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.img != nil
}

// ContainerHeight returns the target canvas height
func (r *Renderer) ContainerHeight() int {
	return r.containerHeight
}

// NaturalSize returns the source image dimensions, zero while unloaded
func (r *Renderer) NaturalSize() (int, int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.img == nil {
		return 0, 0
	}
	b := r.img.Bounds()
	return b.Dx(), b.Dy()
}

// Scale returns container height / natural height, or 1 while unloaded
func (r *Renderer) Scale() float64 {
	_, h := r.NaturalSize()
	if h == 0 {
		return 1
	}
	return float64(r.containerHeight) / float64(h)
}

// CanvasSize returns the natural size multiplied by Scale, rounded
func (r *Renderer) CanvasSize() (int, int) {
	w, h := r.NaturalSize()
	s := r.Scale()
	return round(float64(w) * s), round(float64(h) * s)
}

// ScaleBox scales each coordinate independently and rounds it
func ScaleBox(b types.BoundingBox, scale float64) ScaledBox {
	return ScaledBox{
		X: round(b.X * scale),
		Y: round(b.Y * scale),
		W: round(b.W * scale),
		H: round(b.H * scale),
	}
}

// HitTest maps a canvas point to image space and returns the id of the first
// box containing it. Boxes are checked in list order.
func (r *Renderer) HitTest(x, y float64, boxes []types.DrawableBox) (string, bool) {
	if !r.Loaded() {
		return "", false
	}
	s := r.Scale()
	ix, iy := x/s, y/s
	for _, b := range boxes {
		if b.Contains(ix, iy) {
			return b.ID, true
		}
	}
	return "", false
}

// Render draws the scaled image and the boxes. Returns nil while unloaded.
func (r *Renderer) Render(boxes []types.DrawableBox, selectedID string) *image.NRGBA {
	r.mu.RLock()
	src := r.img
	r.mu.RUnlock()
	if src == nil {
		return nil
	}

	w, h := r.CanvasSize()
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	canvas := imaging.Resize(src, w, h, imaging.Lanczos)
	scale := r.Scale()

	for _, box := range boxes {
		sb := ScaleBox(box.BoundingBox, scale)
		stroke := normalStroke
		c := ParseColor(box.Color, ParseColor(DefaultBoxColor, color.NRGBA{0, 229, 255, 255}))
		if selectedID != "" && box.ID == selectedID {
			stroke = selectedStroke
			c = ParseColor(AccentColor, color.NRGBA{255, 64, 129, 255})
		}
		strokeRect(canvas, sb, stroke, c)
		if box.Label != "" {
			drawLabel(canvas, box.Label, sb.X+labelOffsetX, sb.Y+labelOffsetY, c)
		}
	}
	return canvas
}

// RenderPNG renders and encodes the canvas as PNG
func (r *Renderer) RenderPNG(boxes []types.DrawableBox, selectedID string) ([]byte, error) {
	canvas := r.Render(boxes, selectedID)
	if canvas == nil {
		return nil, fmt.Errorf("no image loaded")
	}
	var buf bytes.Buffer
	if err := processing.Encode(&buf, canvas, "png", 0, false); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ParseColor parses #rgb or #rrggbb, returning fallback on failure
func ParseColor(s string, fallback color.NRGBA) color.NRGBA {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return fallback
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return fallback
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}
}

// strokeRect draws the rectangle outline with the stroke centered on the edges
func strokeRect(img *image.NRGBA, b ScaledBox, stroke int, c color.NRGBA) {
	lo := stroke / 2
	hi := stroke - lo
	x0, y0 := b.X, b.Y
	x1, y1 := b.X+b.W, b.Y+b.H

	fillRect(img, image.Rect(x0-lo, y0-lo, x1+hi, y0+hi), c) // top
	fillRect(img, image.Rect(x0-lo, y1-lo, x1+hi, y1+hi), c) // bottom
	fillRect(img, image.Rect(x0-lo, y0-lo, x0+hi, y1+hi), c) // left
	fillRect(img, image.Rect(x1-lo, y0-lo, x1+hi, y1+hi), c) // right
}

func fillRect(img *image.NRGBA, rect image.Rectangle, c color.NRGBA) {
	rect = rect.Intersect(img.Bounds())
	if rect.Empty() {
		return
	}
	draw.Draw(img, rect, image.NewUniform(c), image.Point{}, draw.Src)
}

// drawLabel draws text with its baseline at (x, y)
func drawLabel(img *image.NRGBA, text string, x, y int, c color.NRGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}

// round rounds half up, the way canvas code does
func round(v float64) int {
	return int(math.Floor(v + 0.5))
}
