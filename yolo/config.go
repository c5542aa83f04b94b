package yolo

import (
	forestfires "github.com/MLOPS-Group34/mlops-project-group34"
	"image"
)

// Config holds the detection engine parameters.
type Config struct {
	ModelPath          string // ONNX model path
	OnnxRuntimeLibPath string // ONNX Runtime shared library path

	// inference
	ConfThreshold float32 // default 0.25
	IOUThreshold  float32 // NMS IoU threshold, default 0.7
	MaxDetections int     // per image, default 300

	// model
	InputSize  int  // default 640
	NumClasses int  // default 2 (fire, smoke)
	Head       Head // output layout, default HeadRaw

	// optional
	UseCuda    bool // enable CUDA
	NumThreads int  // ONNX intra-op threads, 0 lets onnxruntime decide
}

// DefaultConfig mirrors the Ultralytics predict defaults for the fire model.
func DefaultConfig() Config {
	return Config{
		OnnxRuntimeLibPath: forestfires.DefaultLibraryPath(),
		ConfThreshold:      0.25,
		IOUThreshold:       0.70,
		MaxDetections:      300,
		InputSize:          640,
		NumClasses:         2,
		Head:               HeadRaw,
	}
}

// Head is the layout of the model output tensor.
type Head string

const (
	// HeadRaw is the YOLOv8/YOLO11 head [1, 4+nc, anchors] that needs NMS.
	HeadRaw Head = "raw"
	// HeadEnd2End is the NMS-free head [1, 300, 6] of YOLO26 and YOLOv10
	// exports, one [x1, y1, x2, y2, score, class] row per detection.
	HeadEnd2End Head = "end2end"
)

// end2endRows is the fixed number of rows of an end-to-end head.
const end2endRows = 300

// PredictOptions overrides the thresholds of a single call.
type PredictOptions struct {
	ConfThreshold float32
	IOUThreshold  float32
	MaxDetections int
}

// imageParams original size and letterbox scale
type imageParams struct {
	origW, origH int
	scale        float32
}

// DetResult is a single detection.
type DetResult struct {
	ClassID int
	Score   float32
	Box     image.Rectangle

	// float coordinates in the original image, clamped to its bounds
	X1, Y1, X2, Y2 float32
}

// Predicted converts r to the shared box model.
func (r DetResult) Predicted() forestfires.PredictedBox {
	return forestfires.PredictedBox{
		X1:         r.X1,
		Y1:         r.Y1,
		X2:         r.X2,
		Y2:         r.Y2,
		Confidence: r.Score,
		ClassID:    r.ClassID,
	}
}

// numAnchors is the number of prediction rows of a YOLOv8/11 head for a
// square input of the given size (strides 8, 16 and 32).
func numAnchors(inputSize int) int {
	n := 0
	for _, s := range []int{8, 16, 32} {
		g := inputSize / s
		n += g * g
	}
	return n
}
