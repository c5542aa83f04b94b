package visualize

import (
	"fmt"
	forestfires "github.com/MLOPS-Group34/mlops-project-group34"
	"image"
	"image/color"
	"io"
)

// testImage is a small solid image; its pointer identifies it to stubDetector.
func testImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 128, A: 255})
		}
	}
	return img
}

type item struct {
	path  string
	img   image.Image
	gt    []forestfires.GroundTruthBox
	preds []forestfires.PredictedBox
}

// newItems builds one item per confidence list; an empty list means no detections.
func newItems(confs ...[]float32) []item {
	items := make([]item, len(confs))
	for i, cs := range confs {
		it := item{
			path: fmt.Sprintf("img_%02d.jpg", i),
			img:  testImage(64, 48),
			gt:   []forestfires.GroundTruthBox{{X1: 4, Y1: 4, X2: 30, Y2: 30, ClassID: 0}},
		}
		for _, c := range cs {
			it.preds = append(it.preds, forestfires.PredictedBox{X1: 6, Y1: 6, X2: 32, Y2: 32, Confidence: c, ClassID: 1})
		}
		items[i] = it
	}
	return items
}

// stubDetector returns the predictions registered for each image.
type stubDetector struct {
	preds map[image.Image][]forestfires.PredictedBox
	calls int
	confs []float32
	err   error
}

func newStubDetector(items []item) *stubDetector {
	d := &stubDetector{preds: map[image.Image][]forestfires.PredictedBox{}}
	for _, it := range items {
		d.preds[it.img] = it.preds
	}
	return d
}

func (d *stubDetector) Predict(images []image.Image, conf float32) ([][]forestfires.PredictedBox, error) {
	d.calls++
	d.confs = append(d.confs, conf)
	if d.err != nil {
		return nil, d.err
	}
	out := make([][]forestfires.PredictedBox, len(images))
	for i, img := range images {
		out[i] = d.preds[img]
	}
	return out, nil
}

// sliceLoader serves items in fixed-size batches.
type sliceLoader struct {
	items     []item
	batchSize int
	pos       int
	err       error
}

func newLoader(items []item, batchSize int) *sliceLoader {
	return &sliceLoader{items: items, batchSize: batchSize}
}

func (l *sliceLoader) Next() (*Batch, error) {
	if l.err != nil {
		return nil, l.err
	}
	if l.pos >= len(l.items) {
		return nil, io.EOF
	}
	end := min(l.pos+l.batchSize, len(l.items))
	b := &Batch{}
	for _, it := range l.items[l.pos:end] {
		b.Images = append(b.Images, it.img)
		b.GroundTruth = append(b.GroundTruth, it.gt)
		b.Paths = append(b.Paths, it.path)
	}
	l.pos = end
	return b, nil
}

func avgs(results []DetectionResult) []float32 {
	out := make([]float32, len(results))
	for i, r := range results {
		out[i] = r.AvgConfidence
	}
	return out
}

func paths(results []DetectionResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Path
	}
	return out
}

func single(c float32) []float32 { return []float32{c} }
