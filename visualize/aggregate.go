package visualize

import (
	forestfires "github.com/MLOPS-Group34/mlops-project-group34"
	"github.com/pkg/errors"
	"image"
	"io"
)

// Score builds the DetectionResult of one image from its predictions.
func Score(path string, img image.Image, gt []forestfires.GroundTruthBox, preds []forestfires.PredictedBox) DetectionResult {
	r := DetectionResult{
		Image:         img,
		Path:          path,
		GroundTruth:   gt,
		Predictions:   preds,
		NumDetections: len(preds),
	}
	if len(preds) == 0 {
		return r
	}

	var sum float64
	maxConf := preds[0].Confidence
	for _, p := range preds {
		sum += float64(p.Confidence)
		if p.Confidence > maxConf {
			maxConf = p.Confidence
		}
	}
	r.AvgConfidence = float32(sum / float64(len(preds)))
	r.MaxConfidence = maxConf
	return r
}

// Aggregate drains loader, runs det on every batch at the conf threshold and
// returns one result per image in the order the loader produced them.
func Aggregate(det Detector, loader Loader, conf float32) ([]DetectionResult, error) {
	var results []DetectionResult
	for batchIdx := 0; ; batchIdx++ {
		batch, err := loader.Next()
		if errors.Is(err, io.EOF) {
			return results, nil
		}
		if err != nil {
			return nil, errors.Wrapf(err, "load batch %d", batchIdx)
		}
		if batch == nil || batch.Len() == 0 {
			continue
		}
		if len(batch.GroundTruth) != batch.Len() || len(batch.Paths) != batch.Len() {
			return nil, errors.Errorf("batch %d: %d images, %d ground truth sets, %d paths",
				batchIdx, batch.Len(), len(batch.GroundTruth), len(batch.Paths))
		}

		preds, err := det.Predict(batch.Images, conf)
		if err != nil {
			return nil, errors.Wrapf(err, "predict batch %d", batchIdx)
		}
		if len(preds) != batch.Len() {
			return nil, errors.Errorf("batch %d: detector returned %d detection sets for %d images",
				batchIdx, len(preds), batch.Len())
		}

		for i := range batch.Images {
			results = append(results, Score(batch.Paths[i], batch.Images[i], batch.GroundTruth[i], preds[i]))
		}
	}
}
