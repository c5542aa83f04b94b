// Package yolo runs a YOLOv8/YOLO11 detection model exported to ONNX.
package yolo

import (
	"fmt"
	forestfires "github.com/MLOPS-Group34/mlops-project-group34"
	"github.com/up-zero/gotool/convertutil"
	ort "github.com/yalue/onnxruntime_go"
	"image"
	"sync"
)

// DetEngine YOLO detection engine. Safe for concurrent use; calls are
// serialized because the session reuses its input and output tensors.
type DetEngine struct {
	mu      sync.Mutex
	session *ort.AdvancedSession
	options *ort.SessionOptions
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	config  Config
	anchors int
}

// NewDetEngine loads the model and prepares its tensors.
func NewDetEngine(cfg Config) (*DetEngine, error) {
	if cfg.InputSize <= 0 || cfg.InputSize%32 != 0 {
		return nil, fmt.Errorf("input size %d must be a positive multiple of 32", cfg.InputSize)
	}
	if cfg.NumClasses <= 0 {
		return nil, fmt.Errorf("number of classes must be positive")
	}
	switch cfg.Head {
	case "":
		cfg.Head = HeadRaw
	case HeadRaw, HeadEnd2End:
	default:
		return nil, fmt.Errorf("unknown output head %q", cfg.Head)
	}

	oc := new(forestfires.OnnxConfig)
	if err := convertutil.CopyProperties(cfg, oc); err != nil {
		return nil, fmt.Errorf("copy onnx config: %w", err)
	}
	options, err := oc.NewSessionOptions()
	if err != nil {
		return nil, err
	}

	e := &DetEngine{
		options: options,
		config:  cfg,
		anchors: numAnchors(cfg.InputSize),
	}

	size := int64(cfg.InputSize)
	e.input, err = ort.NewEmptyTensor[float32](ort.NewShape(1, 3, size, size))
	if err != nil {
		e.Destroy()
		return nil, fmt.Errorf("create input tensor: %w", err)
	}
	outShape := ort.NewShape(1, int64(4+cfg.NumClasses), int64(e.anchors))
	if cfg.Head == HeadEnd2End {
		outShape = ort.NewShape(1, end2endRows, 6)
	}
	e.output, err = ort.NewEmptyTensor[float32](outShape)
	if err != nil {
		e.Destroy()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}

	e.session, err = ort.NewAdvancedSession(cfg.ModelPath,
		[]string{"images"}, []string{"output0"},
		[]ort.Value{e.input}, []ort.Value{e.output},
		options)
	if err != nil {
		e.Destroy()
		return nil, fmt.Errorf("create onnx session: %w", err)
	}
	return e, nil
}

// Config returns the engine configuration.
func (e *DetEngine) Config() Config {
	return e.config
}

// Destroy releases the session and its tensors.
func (e *DetEngine) Destroy() {
	if e.session != nil {
		e.session.Destroy()
		e.session = nil
	}
	if e.input != nil {
		e.input.Destroy()
		e.input = nil
	}
	if e.output != nil {
		e.output.Destroy()
		e.output = nil
	}
	if e.options != nil {
		e.options.Destroy()
		e.options = nil
	}
}

// Predict runs detection with the configured thresholds.
func (e *DetEngine) Predict(img image.Image) ([]DetResult, error) {
	return e.PredictWithOptions(img, PredictOptions{
		ConfThreshold: e.config.ConfThreshold,
		IOUThreshold:  e.config.IOUThreshold,
		MaxDetections: e.config.MaxDetections,
	})
}

// PredictWithOptions runs detection with per-call thresholds.
func (e *DetEngine) PredictWithOptions(img image.Image, opts PredictOptions) ([]DetResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session == nil {
		return nil, fmt.Errorf("engine destroyed")
	}

	params := preprocess(img, e.config.InputSize, e.input.GetData())
	if err := e.session.Run(); err != nil {
		return nil, fmt.Errorf("inference: %w", err)
	}
	if e.config.Head == HeadEnd2End {
		return postprocessEnd2End(e.output.GetData(), params, opts), nil
	}
	return postprocess(e.output.GetData(), e.config.NumClasses, e.anchors, params, opts), nil
}

// PredictBatch runs detection on every image at the given confidence
// threshold and returns one detection set per image, in order.
func (e *DetEngine) PredictBatch(images []image.Image, conf float32) ([][]forestfires.PredictedBox, error) {
	opts := PredictOptions{
		ConfThreshold: conf,
		IOUThreshold:  e.config.IOUThreshold,
		MaxDetections: e.config.MaxDetections,
	}
	out := make([][]forestfires.PredictedBox, len(images))
	for i, img := range images {
		results, err := e.PredictWithOptions(img, opts)
		if err != nil {
			return nil, fmt.Errorf("image %d: %w", i, err)
		}
		boxes := make([]forestfires.PredictedBox, len(results))
		for j, r := range results {
			boxes[j] = r.Predicted()
		}
		out[i] = boxes
	}
	return out, nil
}
