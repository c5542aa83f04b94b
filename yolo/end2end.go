package yolo

import (
	"image"
	"sort"
)

// postprocessEnd2End decodes an NMS-free [1, rows, 6] output. Rows are
// [x1, y1, x2, y2, score, class] in letterbox coordinates; padding rows have
// a zero score.
func postprocessEnd2End(data []float32, params imageParams, opts PredictOptions) []DetResult {
	const stride = 6
	w, h := float32(params.origW), float32(params.origH)

	results := make([]DetResult, 0)
	for offset := 0; offset+stride <= len(data); offset += stride {
		score := data[offset+4]
		if score <= 0 || score < opts.ConfThreshold {
			continue
		}

		// back to original image coordinates
		x1 := clamp(data[offset+0]/params.scale, 0, w)
		y1 := clamp(data[offset+1]/params.scale, 0, h)
		x2 := clamp(data[offset+2]/params.scale, 0, w)
		y2 := clamp(data[offset+3]/params.scale, 0, h)

		results = append(results, DetResult{
			ClassID: int(data[offset+5]),
			Score:   score,
			Box:     image.Rect(int(x1), int(y1), int(x2), int(y2)),
			X1:      x1,
			Y1:      y1,
			X2:      x2,
			Y2:      y2,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if opts.MaxDetections > 0 && len(results) > opts.MaxDetections {
		results = results[:opts.MaxDetections]
	}
	return results
}
