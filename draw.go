package forestfires

import (
	"fmt"
	"github.com/up-zero/gotool/imageutil"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	"image"
	"image/color"
	"image/draw"
	"os"
)

var (
	// GroundTruthColor is used for annotated (human labelled) boxes.
	GroundTruthColor = color.RGBA{G: 255, A: 255}
	// PredictionColor is used for detector output.
	PredictionColor = color.RGBA{R: 255, A: 255}
)

// TextDrawer renders text with an OpenType face.
type TextDrawer struct {
	font     *opentype.Font
	face     font.Face
	fontSize float64
}

// NewTextDrawer creates a text drawer.
//
// # Params:
//
//	fontPath: path to a ttf/otf file; empty selects the embedded Go Regular font
func NewTextDrawer(fontPath string) (*TextDrawer, error) {
	fontBytes := goregular.TTF
	if fontPath != "" {
		b, err := os.ReadFile(fontPath)
		if err != nil {
			return nil, fmt.Errorf("open font file: %w", err)
		}
		fontBytes = b
	}

	ttFont, err := opentype.Parse(fontBytes)
	if err != nil {
		return nil, fmt.Errorf("parse font file: %w", err)
	}

	d := &TextDrawer{font: ttFont}
	if err := d.SetSize(12); err != nil {
		return nil, err
	}
	return d, nil
}

// SetSize changes the font size. The face is rebuilt only when the size
// differs; a failed rebuild keeps the previous face.
func (d *TextDrawer) SetSize(fontSize float64) error {
	if fontSize <= 0 {
		return fmt.Errorf("font size must be positive, got %v", fontSize)
	}
	if d.face != nil && d.fontSize == fontSize {
		return nil
	}

	face, err := opentype.NewFace(d.font, &opentype.FaceOptions{
		Size:    fontSize,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return fmt.Errorf("create %vpt face: %w", fontSize, err)
	}
	if d.face != nil {
		d.face.Close()
	}
	d.face, d.fontSize = face, fontSize
	return nil
}

// Size returns the current font size.
func (d *TextDrawer) Size() float64 {
	return d.fontSize
}

// Ascent returns the distance from the baseline to the top of the tallest glyph.
func (d *TextDrawer) Ascent() int {
	return d.face.Metrics().Ascent.Ceil()
}

// MeasureText returns the advance width of text in pixels.
func (d *TextDrawer) MeasureText(text string) int {
	return font.MeasureString(d.face, text).Ceil()
}

// DrawText draws text with its baseline starting at (x, y).
//
// # Params:
//
//	img: destination image
//	text: text to draw
//	x, y: baseline origin
//	c: text color
func (d *TextDrawer) DrawText(img draw.Image, text string, x, y int, c color.Color) {
	dr := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: d.face,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	dr.DrawString(text)
}

// Close releases the font face.
func (d *TextDrawer) Close() {
	if d.face != nil {
		d.face.Close()
		d.face = nil
	}
}

// DrawBox outlines b on dst and writes its label just above the top-left
// corner. The label moves inside the box when there is no room above it.
//
// # Params:
//
//	dst: destination image
//	b: ground truth or predicted box
//	names: class id to display name mapping
//	c: outline and text color
//	thickness: outline stroke in pixels
//	d: text drawer, nil draws the outline only
func DrawBox(dst *image.RGBA, b Box, names ClassNames, c color.RGBA, thickness int, d *TextDrawer) {
	rect := b.Rect().Intersect(dst.Bounds())
	if rect.Empty() {
		return
	}
	imageutil.DrawThickRectOutline(dst, rect, c, thickness)

	if d == nil {
		return
	}
	x := rect.Min.X
	y := rect.Min.Y - thickness - 2
	if y-d.Ascent() < dst.Bounds().Min.Y {
		y = rect.Min.Y + thickness + d.Ascent()
	}
	d.DrawText(dst, b.Label(names), x, y, c)
}

// StrokeFor picks an outline thickness proportional to the image size.
func StrokeFor(bounds image.Rectangle) int {
	return max(2, min(bounds.Dx(), bounds.Dy())/200)
}

// FontSizeFor picks a label font size proportional to the image size.
func FontSizeFor(bounds image.Rectangle) float64 {
	return float64(max(12, min(bounds.Dx(), bounds.Dy())/30))
}
