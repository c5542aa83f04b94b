// Package runner wires the configuration, the ONNX detector and the test set
// loader into a single visualization or evaluation run.
package runner

import (
	forestfires "github.com/MLOPS-Group34/mlops-project-group34"
	"github.com/MLOPS-Group34/mlops-project-group34/config"
	"github.com/MLOPS-Group34/mlops-project-group34/dataset"
	"github.com/MLOPS-Group34/mlops-project-group34/evaluate"
	"github.com/MLOPS-Group34/mlops-project-group34/visualize"
	"github.com/MLOPS-Group34/mlops-project-group34/yolo"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"image"
	"os"
)

// ErrModelNotFound is returned when the model weights file does not exist.
var ErrModelNotFound = errors.New("model weights not found")

// Engine is a batch detector holding native resources.
type Engine interface {
	visualize.Detector
	Destroy()
}

// EngineFactory creates the detector for a run.
type EngineFactory func(cfg yolo.Config) (Engine, error)

// Runner runs the visualization pipeline.
type Runner struct {
	NewEngine EngineFactory
	Logger    logrus.FieldLogger
}

// New returns a runner backed by the ONNX YOLO engine. A nil logger uses the
// standard logger.
func New(logger logrus.FieldLogger) *Runner {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Runner{NewEngine: NewYOLOEngine, Logger: logger}
}

// Visualize loads the config at configPath (config.DefaultPath when empty)
// and renders the prediction grids of its test split. modelPath overrides
// the weights location derived from the config.
func Visualize(configPath, modelPath string) ([]visualize.GridFile, error) {
	return New(nil).Visualize(configPath, modelPath)
}

// Visualize is the package level Visualize with r's engine and logger.
func (r *Runner) Visualize(configPath, modelPath string) ([]visualize.GridFile, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	return r.Run(cfg, modelPath)
}

// CheckModel reports ErrModelNotFound when path does not exist. Other stat
// failures are returned as they are.
func CheckModel(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return errors.Wrap(ErrModelNotFound, path)
		}
		return errors.Wrap(err, "stat model weights")
	}
	return nil
}

func (r *Runner) logger() logrus.FieldLogger {
	if r.Logger == nil {
		return logrus.StandardLogger()
	}
	return r.Logger
}

// open checks the weights, creates the engine and opens the test set. The
// caller destroys the engine.
func (r *Runner) open(cfg *config.Config, modelPath string) (Engine, *dataset.Dataset, error) {
	log := r.logger()
	modelPath = cfg.ModelPath(modelPath)
	if err := CheckModel(modelPath); err != nil {
		return nil, nil, err
	}
	log.WithField("path", modelPath).Info("loading model")

	factory := r.NewEngine
	if factory == nil {
		factory = NewYOLOEngine
	}
	engine, err := factory(cfg.DetConfig(modelPath))
	if err != nil {
		return nil, nil, errors.Wrap(err, "create detector")
	}

	ds, err := dataset.OpenTest(cfg)
	if err != nil {
		engine.Destroy()
		return nil, nil, err
	}
	log.WithFields(logrus.Fields{
		"images": ds.Len(),
		"path":   cfg.TestImagesDir(),
	}).Info("loaded test set")
	return engine, ds, nil
}

// Run renders the prediction grids for an already loaded config.
func (r *Runner) Run(cfg *config.Config, modelPath string) ([]visualize.GridFile, error) {
	engine, ds, err := r.open(cfg, modelPath)
	if err != nil {
		return nil, err
	}
	defer engine.Destroy()

	log := r.logger()
	p := &visualize.Pipeline{
		Detector: engine,
		Loader:   dataset.NewLoader(ds, cfg.Visualization.BatchSize, log),
		Classes:  cfg.ClassNames(),
		Options: visualize.Options{
			ConfThreshold: cfg.Visualization.ConfThreshold,
			TopN:          cfg.Visualization.TopN,
			PerGrid:       cfg.Visualization.PerGrid,
			MaxGrids:      cfg.Visualization.MaxGrids,
			Render: visualize.RenderConfig{
				CellWidth:  cfg.Visualization.CellWidth,
				CellHeight: cfg.Visualization.CellHeight,
				FontPath:   cfg.Resolve(cfg.Visualization.FontPath),
			},
		},
		Logger: log,
	}
	return p.Run(cfg.ReportsDir())
}

// Evaluate loads the config at configPath (config.DefaultPath when empty) and
// scores the model on its test split.
func Evaluate(configPath, modelPath string) (*evaluate.Metrics, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	return New(nil).Evaluate(cfg, modelPath)
}

// Evaluate scores the model on the test split of cfg and logs the results.
func (r *Runner) Evaluate(cfg *config.Config, modelPath string) (*evaluate.Metrics, error) {
	engine, ds, err := r.open(cfg, modelPath)
	if err != nil {
		return nil, err
	}
	defer engine.Destroy()

	log := r.logger()
	e := &evaluate.Evaluator{
		Detector:      engine,
		Loader:        dataset.NewLoader(ds, cfg.Evaluation.BatchSize, log),
		Classes:       cfg.ClassNames(),
		ConfThreshold: cfg.Evaluation.ConfThreshold,
		Logger:        log,
	}
	m, err := e.Run()
	if err != nil {
		return nil, err
	}
	m.Log(log)
	return m, nil
}

func loadConfig(configPath string) (*config.Config, error) {
	if configPath == "" {
		configPath = config.DefaultPath
	}
	return config.LoadFromFile(configPath)
}

// yoloEngine exposes DetEngine.PredictBatch as a visualize.Detector.
type yoloEngine struct {
	*yolo.DetEngine
}

func (e yoloEngine) Predict(images []image.Image, conf float32) ([][]forestfires.PredictedBox, error) {
	return e.PredictBatch(images, conf)
}

// NewYOLOEngine is the default EngineFactory.
func NewYOLOEngine(cfg yolo.Config) (Engine, error) {
	e, err := yolo.NewDetEngine(cfg)
	if err != nil {
		return nil, err
	}
	return yoloEngine{e}, nil
}
