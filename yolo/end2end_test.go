package yolo

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"image"
	"testing"
)

func TestPostprocessEnd2End(t *testing.T) {
	params := imageParams{origW: 200, origH: 100, scale: 0.5}
	data := []float32{
		// x1, y1, x2, y2, score, class
		10, 10, 30, 30, 0.6, 1,
		0, 0, 400, 400, 0.9, 0, // clamped to the image
		5, 5, 8, 8, 0.2, 1, // below threshold
		0, 0, 0, 0, 0, 0, // padding
	}

	results := postprocessEnd2End(data, params, PredictOptions{ConfThreshold: 0.25, MaxDetections: 300})
	require.Len(t, results, 2)

	assert.Equal(t, float32(0.9), results[0].Score)
	assert.Equal(t, image.Rect(0, 0, 200, 100), results[0].Box)
	assert.Equal(t, float32(200), results[0].X2)

	assert.Equal(t, 1, results[1].ClassID)
	assert.Equal(t, image.Rect(20, 20, 60, 60), results[1].Box)
}

func TestPostprocessEnd2End_Cap(t *testing.T) {
	params := imageParams{origW: 100, origH: 100, scale: 1}
	data := []float32{
		0, 0, 10, 10, 0.5, 0,
		0, 0, 10, 10, 0.7, 0,
		0, 0, 10, 10, 0.6, 0,
		1, 2, 3, // truncated row is ignored
	}
	results := postprocessEnd2End(data, params, PredictOptions{ConfThreshold: 0.1, MaxDetections: 2})
	require.Len(t, results, 2)
	assert.Equal(t, float32(0.7), results[0].Score)
	assert.Equal(t, float32(0.6), results[1].Score)
}

func TestDefaultConfig_Head(t *testing.T) {
	assert.Equal(t, HeadRaw, DefaultConfig().Head)
}
