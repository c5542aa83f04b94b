// Package evaluate scores a detector against the ground truth of a test set.
//
// Predictions are matched greedily to ground truth boxes of the same class in
// descending confidence order, once per IoU threshold in 0.50:0.05:0.95. The
// average precision of a class is the area under its precision envelope.
package evaluate

import (
	"fmt"
	forestfires "github.com/MLOPS-Group34/mlops-project-group34"
	"github.com/MLOPS-Group34/mlops-project-group34/visualize"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"io"
	"sort"
)

// DefaultConfThreshold keeps nearly every prediction so the precision/recall
// curve reaches low confidences.
const DefaultConfThreshold = float32(0.001)

// IoUThresholds are the matching thresholds 0.50, 0.55, ..., 0.95.
var IoUThresholds = func() []float32 {
	t := make([]float32, 10)
	for i := range t {
		t[i] = 0.5 + 0.05*float32(i)
	}
	return t
}()

// ClassMetrics is the result for one class with ground truth.
type ClassMetrics struct {
	ClassID   int
	Name      string
	Instances int // ground truth boxes
	Precision float64
	Recall    float64
	AP50      float64
	AP        float64 // mean over IoUThresholds
}

// Metrics summarizes an evaluation run. The means are taken over the classes
// that have ground truth; they are 0 when there are none.
type Metrics struct {
	Images    int
	Instances int
	Classes   []ClassMetrics

	MAP50     float64
	MAP5095   float64
	Precision float64
	Recall    float64
}

// Log writes the summary and one line per class.
func (m *Metrics) Log(log logrus.FieldLogger) {
	log.WithFields(logrus.Fields{
		"images":    m.Images,
		"instances": m.Instances,
	}).Info("evaluation results")
	log.Info(fmt.Sprintf("mAP@50: %.4f", m.MAP50))
	log.Info(fmt.Sprintf("mAP@50-95: %.4f", m.MAP5095))
	log.Info(fmt.Sprintf("Precision: %.4f", m.Precision))
	log.Info(fmt.Sprintf("Recall: %.4f", m.Recall))
	for _, c := range m.Classes {
		log.WithFields(logrus.Fields{
			"class":     c.Name,
			"instances": c.Instances,
			"precision": fmt.Sprintf("%.4f", c.Precision),
			"recall":    fmt.Sprintf("%.4f", c.Recall),
			"map50":     fmt.Sprintf("%.4f", c.AP50),
			"map50_95":  fmt.Sprintf("%.4f", c.AP),
		}).Info("class results")
	}
}

// record is one prediction with its match outcome per IoU threshold.
type record struct {
	class int
	conf  float32
	tp    []bool
}

// Evaluator accumulates matches over a test set.
type Evaluator struct {
	Detector      visualize.Detector
	Loader        visualize.Loader
	Classes       forestfires.ClassNames
	ConfThreshold float32 // 0 selects DefaultConfThreshold
	Logger        logrus.FieldLogger
}

// Run drains the loader, predicts every batch and returns the metrics.
func (e *Evaluator) Run() (*Metrics, error) {
	if e.Detector == nil || e.Loader == nil {
		return nil, errors.New("evaluator needs a detector and a loader")
	}
	conf := e.ConfThreshold
	if conf <= 0 {
		conf = DefaultConfThreshold
	}
	log := e.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	log.WithField("conf", conf).Info("starting evaluation on test set")

	var (
		records []record
		gts     = map[int]int{}
		images  int
	)
	for batchIdx := 0; ; batchIdx++ {
		batch, err := e.Loader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "load batch %d", batchIdx)
		}
		if batch == nil || batch.Len() == 0 {
			continue
		}
		if len(batch.GroundTruth) != batch.Len() {
			return nil, errors.Errorf("batch %d: %d images, %d ground truth sets",
				batchIdx, batch.Len(), len(batch.GroundTruth))
		}

		preds, err := e.Detector.Predict(batch.Images, conf)
		if err != nil {
			return nil, errors.Wrapf(err, "predict batch %d", batchIdx)
		}
		if len(preds) != batch.Len() {
			return nil, errors.Errorf("batch %d: detector returned %d detection sets for %d images",
				batchIdx, len(preds), batch.Len())
		}

		for i := range batch.Images {
			images++
			for _, g := range batch.GroundTruth[i] {
				gts[g.ClassID]++
			}
			records = append(records, match(preds[i], batch.GroundTruth[i])...)
		}
	}

	m := summarize(records, gts, e.Classes)
	m.Images = images
	return m, nil
}

// match pairs the predictions of one image with its ground truth. The
// highest confidence prediction claims the unclaimed box of its class with
// the largest IoU, if that IoU reaches the threshold.
func match(preds []forestfires.PredictedBox, gt []forestfires.GroundTruthBox) []record {
	order := make([]int, len(preds))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return preds[order[a]].Confidence > preds[order[b]].Confidence
	})

	out := make([]record, len(preds))
	for k, i := range order {
		out[k] = record{class: preds[i].ClassID, conf: preds[i].Confidence, tp: make([]bool, len(IoUThresholds))}
	}

	for t, thresh := range IoUThresholds {
		claimed := make([]bool, len(gt))
		for k, i := range order {
			best, bestIoU := -1, float32(0)
			for j, g := range gt {
				if claimed[j] || g.ClassID != preds[i].ClassID {
					continue
				}
				if iou := forestfires.IoU(preds[i], g); iou > bestIoU {
					best, bestIoU = j, iou
				}
			}
			if best >= 0 && bestIoU >= thresh {
				claimed[best] = true
				out[k].tp[t] = true
			}
		}
	}
	return out
}

// summarize turns matched predictions and per-class ground truth counts into
// metrics. Classes without ground truth are left out.
func summarize(records []record, gts map[int]int, names forestfires.ClassNames) *Metrics {
	byClass := map[int][]record{}
	for _, r := range records {
		byClass[r.class] = append(byClass[r.class], r)
	}

	ids := make([]int, 0, len(gts))
	for id, n := range gts {
		if n > 0 {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)

	m := &Metrics{}
	for _, id := range ids {
		c := classMetrics(byClass[id], gts[id])
		c.ClassID = id
		c.Name = names.Name(id)
		m.Classes = append(m.Classes, c)
		m.Instances += c.Instances

		m.MAP50 += c.AP50
		m.MAP5095 += c.AP
		m.Precision += c.Precision
		m.Recall += c.Recall
	}
	if n := float64(len(m.Classes)); n > 0 {
		m.MAP50 /= n
		m.MAP5095 /= n
		m.Precision /= n
		m.Recall /= n
	}
	return m
}

func classMetrics(recs []record, instances int) ClassMetrics {
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].conf > recs[j].conf })

	c := ClassMetrics{Instances: instances}
	var apSum float64
	for t := range IoUThresholds {
		precision := make([]float64, len(recs))
		recall := make([]float64, len(recs))
		tp := 0
		for i, r := range recs {
			if r.tp[t] {
				tp++
			}
			precision[i] = float64(tp) / float64(i+1)
			recall[i] = float64(tp) / float64(instances)
		}
		ap := AveragePrecision(recall, precision)
		apSum += ap

		if t == 0 {
			c.AP50 = ap
			if len(recs) > 0 {
				c.Precision = float64(tp) / float64(len(recs))
			}
			c.Recall = float64(tp) / float64(instances)
		}
	}
	c.AP = apSum / float64(len(IoUThresholds))
	return c
}

// AveragePrecision integrates the precision envelope over recall. recall must
// be non-decreasing; both slices come from the same ranked predictions.
func AveragePrecision(recall, precision []float64) float64 {
	mrec := append(append([]float64{0}, recall...), 1)
	mpre := append(append([]float64{1}, precision...), 0)
	for i := len(mpre) - 2; i >= 0; i-- {
		mpre[i] = max(mpre[i], mpre[i+1])
	}

	var ap float64
	for i := 1; i < len(mrec); i++ {
		if mrec[i] != mrec[i-1] {
			ap += (mrec[i] - mrec[i-1]) * mpre[i]
		}
	}
	return ap
}
