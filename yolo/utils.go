package yolo

import (
	forestfires "github.com/MLOPS-Group34/mlops-project-group34"
	"github.com/chewxy/math32"
	"github.com/nfnt/resize"
	"image"
	"sort"
)

// padValue is the Ultralytics letterbox fill (114/255).
const padValue = float32(114.0 / 255.0)

// preprocess letterboxes img into dst (CHW, RGB, 0-1) anchored at the top-left
// corner and returns the scale needed to map boxes back.
//
// # Params:
//
//	img: source image
//	inputSize: model input side
//	dst: tensor data of length 3*inputSize*inputSize
func preprocess(img image.Image, inputSize int, dst []float32) imageParams {
	bounds := img.Bounds()
	params := imageParams{
		origW: bounds.Dx(),
		origH: bounds.Dy(),
	}

	scale := float32(inputSize) / float32(max(params.origW, params.origH))
	params.scale = scale

	newW := max(1, min(inputSize, int(float32(params.origW)*scale)))
	newH := max(1, min(inputSize, int(float32(params.origH)*scale)))

	resized := resize.Resize(uint(newW), uint(newH), img, resize.Bilinear)
	rb := resized.Bounds()

	for i := range dst {
		dst[i] = padValue
	}
	plane := inputSize * inputSize
	for y := 0; y < newH; y++ {
		for x := 0; x < newW; x++ {
			r, g, b, _ := resized.At(rb.Min.X+x, rb.Min.Y+y).RGBA()

			idx := y*inputSize + x
			dst[idx] = float32(r) / 65535.0         // R
			dst[plane+idx] = float32(g) / 65535.0   // G
			dst[2*plane+idx] = float32(b) / 65535.0 // B
		}
	}
	return params
}

// postprocess decodes a [1, 4+nc, anchors] head output into detections.
func postprocess(data []float32, numClasses, anchors int, params imageParams, opts PredictOptions) []DetResult {
	cands := parseCandidates(data, numClasses, anchors, params, opts.ConfThreshold)
	kept := nms(cands, opts.IOUThreshold, opts.MaxDetections)

	results := make([]DetResult, 0, len(kept))
	for _, b := range kept {
		results = append(results, DetResult{
			ClassID: b.ClassID,
			Score:   b.Confidence,
			Box:     b.Rect(),
			X1:      b.X1,
			Y1:      b.Y1,
			X2:      b.X2,
			Y2:      b.Y2,
		})
	}
	return results
}

// parseCandidates keeps anchors whose best class score reaches the threshold.
func parseCandidates(data []float32, numClasses, anchors int, params imageParams, conf float32) []forestfires.PredictedBox {
	var cands []forestfires.PredictedBox
	if len(data) < (4+numClasses)*anchors {
		return cands
	}

	w, h := float32(params.origW), float32(params.origH)
	for i := 0; i < anchors; i++ {
		maxScore := float32(0)
		classID := -1
		for c := 0; c < numClasses; c++ {
			score := data[(4+c)*anchors+i]
			if score > maxScore {
				maxScore = score
				classID = c
			}
		}
		if classID < 0 || maxScore < conf {
			continue
		}

		cx := data[0*anchors+i]
		cy := data[1*anchors+i]
		bw := data[2*anchors+i]
		bh := data[3*anchors+i]

		cands = append(cands, forestfires.PredictedBox{
			X1:         clamp((cx-bw/2)/params.scale, 0, w),
			Y1:         clamp((cy-bh/2)/params.scale, 0, h),
			X2:         clamp((cx+bw/2)/params.scale, 0, w),
			Y2:         clamp((cy+bh/2)/params.scale, 0, h),
			Confidence: maxScore,
			ClassID:    classID,
		})
	}
	return cands
}

// nms runs per-class non-maximum suppression. Boxes of different classes
// never suppress each other. The survivors are returned best first, at most
// maxDet of them when maxDet > 0.
func nms(cands []forestfires.PredictedBox, iouThresh float32, maxDet int) []forestfires.PredictedBox {
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].Confidence > cands[j].Confidence
	})

	kept := make([]forestfires.PredictedBox, 0)
	for _, c := range cands {
		if maxDet > 0 && len(kept) == maxDet {
			break
		}
		overlaps := false
		for _, k := range kept {
			if k.ClassID == c.ClassID && forestfires.IoU(k, c) > iouThresh {
				overlaps = true
				break
			}
		}
		if !overlaps {
			kept = append(kept, c)
		}
	}
	return kept
}

func clamp(v, lo, hi float32) float32 {
	return math32.Max(lo, math32.Min(v, hi))
}
