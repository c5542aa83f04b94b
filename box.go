// Package forestfires holds the primitives shared by the detector, the dataset
// loader and the prediction grid renderer: the box model, class names, text
// drawing and the ONNX Runtime environment.
package forestfires

import (
	"fmt"
	"image"
	"strconv"
)

// ClassNames maps a dense class id (0..n-1) to its display name.
type ClassNames []string

// Name returns the display name of id, or the id itself when it is unknown.
func (n ClassNames) Name(id int) string {
	if id < 0 || id >= len(n) {
		return strconv.Itoa(id)
	}
	return n[id]
}

// Box is either a GroundTruthBox or a PredictedBox.
type Box interface {
	Rect() image.Rectangle
	Class() int
	Label(names ClassNames) string
	XYXY() (x1, y1, x2, y2 float32)
	box()
}

// GroundTruthBox is an annotated box in absolute pixel coordinates.
type GroundTruthBox struct {
	X1, Y1, X2, Y2 float32
	ClassID        int
}

// PredictedBox is a detector output in absolute pixel coordinates.
type PredictedBox struct {
	X1, Y1, X2, Y2 float32
	Confidence     float32 // [0, 1]
	ClassID        int
}

func (b GroundTruthBox) Rect() image.Rectangle {
	return image.Rect(int(b.X1), int(b.Y1), int(b.X2), int(b.Y2))
}

func (b GroundTruthBox) Class() int { return b.ClassID }

// Label is the class name only.
func (b GroundTruthBox) Label(names ClassNames) string {
	return names.Name(b.ClassID)
}

func (b GroundTruthBox) XYXY() (x1, y1, x2, y2 float32) { return b.X1, b.Y1, b.X2, b.Y2 }

func (GroundTruthBox) box() {}

func (b PredictedBox) Rect() image.Rectangle {
	return image.Rect(int(b.X1), int(b.Y1), int(b.X2), int(b.Y2))
}

func (b PredictedBox) Class() int { return b.ClassID }

// Label is "<class name> <confidence>" with two decimals.
func (b PredictedBox) Label(names ClassNames) string {
	return fmt.Sprintf("%s %.2f", names.Name(b.ClassID), b.Confidence)
}

func (b PredictedBox) XYXY() (x1, y1, x2, y2 float32) { return b.X1, b.Y1, b.X2, b.Y2 }

func (PredictedBox) box() {}

// IoU is the intersection over union of two boxes, 0 when they do not overlap.
func IoU(a, b Box) float32 {
	ax1, ay1, ax2, ay2 := a.XYXY()
	bx1, by1, bx2, by2 := b.XYXY()
	iw := max(0, min(ax2, bx2)-max(ax1, bx1))
	ih := max(0, min(ay2, by2)-max(ay1, by1))
	inter := iw * ih
	if inter == 0 {
		return 0
	}
	return inter / ((ax2-ax1)*(ay2-ay1) + (bx2-bx1)*(by2-by1) - inter)
}

