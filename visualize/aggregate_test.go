package visualize

import (
	"errors"
	forestfires "github.com/MLOPS-Group34/mlops-project-group34"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"image"
	"testing"
)

func TestScore(t *testing.T) {
	preds := []forestfires.PredictedBox{{Confidence: 0.9}, {Confidence: 0.5}, {Confidence: 0.7}}
	r := Score("a.jpg", nil, nil, preds)

	assert.InDelta(t, 0.7, r.AvgConfidence, 1e-6)
	assert.Equal(t, float32(0.9), r.MaxConfidence)
	assert.Equal(t, 3, r.NumDetections)
}

func TestScore_NoDetections(t *testing.T) {
	r := Score("a.jpg", nil, []forestfires.GroundTruthBox{{ClassID: 1}}, nil)

	assert.Equal(t, float32(0), r.AvgConfidence)
	assert.Equal(t, float32(0), r.MaxConfidence)
	assert.Equal(t, 0, r.NumDetections)
	assert.Len(t, r.GroundTruth, 1)
}

func TestAggregate_PreservesOrder(t *testing.T) {
	items := newItems(single(0.2), nil, []float32{0.8, 0.6}, single(0.4), single(0.9))
	det := newStubDetector(items)

	results, err := Aggregate(det, newLoader(items, 2), 0.3)
	require.NoError(t, err)
	require.Len(t, results, 5)

	assert.Equal(t, []string{"img_00.jpg", "img_01.jpg", "img_02.jpg", "img_03.jpg", "img_04.jpg"}, paths(results))
	assert.InDelta(t, 0.7, results[2].AvgConfidence, 1e-6)
	assert.Equal(t, float32(0.8), results[2].MaxConfidence)
	assert.Equal(t, 2, results[2].NumDetections)
	assert.Same(t, items[0].img, results[0].Image.(*image.RGBA))

	assert.Equal(t, 3, det.calls)
	assert.Equal(t, []float32{0.3, 0.3, 0.3}, det.confs)
}

func TestAggregate_BatchSizeDoesNotChangeResults(t *testing.T) {
	items := newItems(single(0.5), single(0.9), nil, single(0.5), single(0.1), single(0.9), single(0.3))

	var want []DetectionResult
	for _, bs := range []int{1, 2, 3, 6, 7, 100} {
		results, err := Aggregate(newStubDetector(items), newLoader(items, bs), DefaultConfThreshold)
		require.NoError(t, err)
		ranked := Rank(results, DefaultTopN)
		if want == nil {
			want = ranked
			continue
		}
		assert.Equal(t, paths(want), paths(ranked), "batch size %d", bs)
		assert.Equal(t, avgs(want), avgs(ranked), "batch size %d", bs)
	}
}

func TestAggregate_Empty(t *testing.T) {
	det := newStubDetector(nil)
	results, err := Aggregate(det, newLoader(nil, 6), 0.3)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, 0, det.calls)
}

func TestAggregate_DetectorError(t *testing.T) {
	items := newItems(single(0.5))
	det := newStubDetector(items)
	det.err = errors.New("boom")

	_, err := Aggregate(det, newLoader(items, 6), 0.3)
	require.Error(t, err)
	assert.ErrorIs(t, err, det.err)
}

func TestAggregate_LoaderError(t *testing.T) {
	loader := newLoader(nil, 6)
	loader.err = errors.New("disk gone")

	_, err := Aggregate(newStubDetector(nil), loader, 0.3)
	assert.ErrorIs(t, err, loader.err)
}

type shortDetector struct{}

func (shortDetector) Predict(images []image.Image, _ float32) ([][]forestfires.PredictedBox, error) {
	return make([][]forestfires.PredictedBox, len(images)-1), nil
}

func TestAggregate_DetectorCountMismatch(t *testing.T) {
	items := newItems(single(0.5), single(0.6))
	_, err := Aggregate(shortDetector{}, newLoader(items, 2), 0.3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 detection sets for 2 images")
}
