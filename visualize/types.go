// Package visualize ranks detector output over a test set by confidence and
// renders the most confident images as prediction grids.
//
// The pipeline is a single forward pass:
//
//	Loader -> Aggregate -> Rank -> Partition -> Renderer -> predictions_grid_<n>.png
//
// The detector and the loader are collaborators behind narrow interfaces so
// the pipeline can run against a trained ONNX model or a deterministic stub.
package visualize

import (
	forestfires "github.com/MLOPS-Group34/mlops-project-group34"
	"image"
)

const (
	// DefaultConfThreshold is passed to the detector for every batch.
	DefaultConfThreshold = float32(0.3)
	// DefaultTopN caps the ranked selection.
	DefaultTopN = 24
	// GridRows and GridCols define the grid layout.
	GridRows = 2
	GridCols = 3
	// CellsPerGrid is the number of images in one grid file.
	CellsPerGrid = GridRows * GridCols
	// MaxGrids is the number of grid files a run can produce.
	MaxGrids = 4
)

// Detector predicts boxes for a batch of images. It must return exactly one
// detection set per input image, in input order.
type Detector interface {
	Predict(images []image.Image, conf float32) ([][]forestfires.PredictedBox, error)
}

// Batch is one step of a Loader. All slices have the same length.
type Batch struct {
	Images      []image.Image
	GroundTruth [][]forestfires.GroundTruthBox
	Paths       []string
}

// Len returns the number of images in the batch.
func (b *Batch) Len() int { return len(b.Images) }

// Loader yields the test set in batches and returns io.EOF once exhausted.
type Loader interface {
	Next() (*Batch, error)
}

// DetectionResult is the scored outcome for one test image.
type DetectionResult struct {
	Image       image.Image
	Path        string
	GroundTruth []forestfires.GroundTruthBox
	Predictions []forestfires.PredictedBox

	// AvgConfidence and MaxConfidence are 0 when there are no predictions.
	AvgConfidence float32
	MaxConfidence float32
	NumDetections int
}

// GridFile describes one written grid image.
type GridFile struct {
	Index int    `json:"index"` // 1-based grid number
	Path  string `json:"path"`

	// 1-based global ranks of the first and last image in the grid
	FirstRank int `json:"first_rank"`
	LastRank  int `json:"last_rank"`

	// average confidence of the first and last image in the grid
	TopConfidence    float32 `json:"top_confidence"`
	BottomConfidence float32 `json:"bottom_confidence"`
}
