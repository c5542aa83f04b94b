package visualize

import (
	forestfires "github.com/MLOPS-Group34/mlops-project-group34"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Stage is the pipeline progress.
type Stage int

const (
	NotStarted Stage = iota
	Aggregating
	Ranking
	Rendering
	Done
)

func (s Stage) String() string {
	switch s {
	case NotStarted:
		return "not started"
	case Aggregating:
		return "aggregating"
	case Ranking:
		return "ranking"
	case Rendering:
		return "rendering"
	case Done:
		return "done"
	}
	return "unknown"
}

// Options tunes a pipeline run. Zero values select the defaults.
type Options struct {
	ConfThreshold float32
	TopN          int
	PerGrid       int
	MaxGrids      int
	Render        RenderConfig
}

// DefaultOptions returns the reference settings: conf 0.3, top 24, 4 grids of 6.
func DefaultOptions() Options {
	return Options{
		ConfThreshold: DefaultConfThreshold,
		TopN:          DefaultTopN,
		PerGrid:       CellsPerGrid,
		MaxGrids:      MaxGrids,
		Render:        DefaultRenderConfig(),
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.ConfThreshold <= 0 {
		o.ConfThreshold = def.ConfThreshold
	}
	if o.TopN <= 0 {
		o.TopN = def.TopN
	}
	if o.PerGrid <= 0 || o.PerGrid > CellsPerGrid {
		o.PerGrid = def.PerGrid
	}
	if o.MaxGrids <= 0 {
		o.MaxGrids = def.MaxGrids
	}
	return o
}

// Pipeline runs aggregation, ranking and rendering once.
type Pipeline struct {
	Detector Detector
	Loader   Loader
	Classes  forestfires.ClassNames
	Options  Options
	Logger   logrus.FieldLogger

	stage Stage
}

// Stage reports how far the last Run got. A failed run stays at the stage
// that failed.
func (p *Pipeline) Stage() Stage {
	return p.stage
}

func (p *Pipeline) enter(s Stage) {
	p.stage = s
	p.logger().WithField("stage", s).Debug("pipeline stage")
}

func (p *Pipeline) logger() logrus.FieldLogger {
	if p.Logger == nil {
		return logrus.StandardLogger()
	}
	return p.Logger
}

// Run drains the loader, keeps the most confident images and writes their
// grids into outputDir. It returns the written grid files in order; an empty
// test set produces none.
func (p *Pipeline) Run(outputDir string) ([]GridFile, error) {
	if p.Detector == nil || p.Loader == nil {
		return nil, errors.New("pipeline needs a detector and a loader")
	}
	opts := p.Options.withDefaults()
	log := p.logger()
	p.stage = NotStarted

	p.enter(Aggregating)
	log.WithField("conf", opts.ConfThreshold).Info("running inference on test set")
	results, err := Aggregate(p.Detector, p.Loader, opts.ConfThreshold)
	if err != nil {
		return nil, err
	}

	p.enter(Ranking)
	selection := Rank(results, opts.TopN)
	gtImages, gtBoxes := 0, 0
	for _, r := range results {
		if len(r.GroundTruth) > 0 {
			gtImages++
			gtBoxes += len(r.GroundTruth)
		}
	}
	log.WithFields(logrus.Fields{
		"images":     len(results),
		"gt_images":  gtImages,
		"gt_boxes":   gtBoxes,
		"selected":   len(selection),
		"top_avg":    topScore(selection),
		"bottom_avg": bottomScore(selection),
	}).Info("ranked test images by average confidence")

	p.enter(Rendering)
	groups := Partition(selection, opts.PerGrid, opts.MaxGrids)
	if len(groups) == 0 {
		log.Warn("no test images; nothing to show")
	}
	renderer, err := NewRenderer(opts.Render, p.Classes)
	if err != nil {
		return nil, err
	}
	defer renderer.Close()

	files, err := renderer.Render(outputDir, groups)
	if err != nil {
		return files, err
	}
	for _, f := range files {
		log.WithFields(logrus.Fields{
			"grid": f.Index,
			"path": f.Path,
		}).Infof("visualization %d/%d saved", f.Index, len(groups))
	}

	p.enter(Done)
	return files, nil
}

func topScore(sel []DetectionResult) float32 {
	if len(sel) == 0 {
		return 0
	}
	return sel[0].AvgConfidence
}

func bottomScore(sel []DetectionResult) float32 {
	if len(sel) == 0 {
		return 0
	}
	return sel[len(sel)-1].AvgConfidence
}
