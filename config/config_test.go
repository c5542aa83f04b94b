package config

import (
	forestfires "github.com/MLOPS-Group34/mlops-project-group34"
	"github.com/MLOPS-Group34/mlops-project-group34/yolo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"os"
	"path/filepath"
	"testing"
)

const sampleYAML = `
project_name: forest_fire_detection
paths:
  root_dir: ..
  reports_dir: reports/figures
  models_dir: models
  test_images: data/test/images
  test_labels: data/test/labels
hyperparameters:
  img_size: 640
  classes:
    1: smoke
    0: fire
visualization:
  conf_threshold: 0.4
  top_n: 12
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "configs")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, float32(0.3), cfg.Visualization.ConfThreshold)
	assert.Equal(t, 24, cfg.Visualization.TopN)
	assert.Equal(t, 6, cfg.Visualization.PerGrid)
	assert.Equal(t, 4, cfg.Visualization.MaxGrids)
	assert.Equal(t, float32(0.001), cfg.Evaluation.ConfThreshold)
}

// values the pipeline would silently replace must not load
func TestLoadFromFile_RejectsDefaultedValues(t *testing.T) {
	for _, body := range []string{
		"project_name: x\nvisualization:\n  conf_threshold: 0\n",
		"project_name: x\nvisualization:\n  top_n: 0\n",
		"project_name: x\nvisualization:\n  per_grid: 9\n",
	} {
		_, err := LoadFromFile(writeConfig(t, body))
		assert.Error(t, err, body)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, sampleYAML)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, float32(0.4), cfg.Visualization.ConfThreshold)
	assert.Equal(t, 12, cfg.Visualization.TopN)
	// unspecified keys keep defaults
	assert.Equal(t, 6, cfg.Visualization.PerGrid)
	assert.Equal(t, 300, cfg.Inference.MaxDetections)

	assert.Equal(t, []string{"fire", "smoke"}, []string(cfg.ClassNames()))

	root := filepath.Dir(filepath.Dir(path))
	assert.Equal(t, root, cfg.RootDir())
	assert.Equal(t, filepath.Join(root, "reports", "figures"), cfg.ReportsDir())
	assert.Equal(t, filepath.Join(root, "data", "test", "images"), cfg.TestImagesDir())
	assert.Equal(t, filepath.Join(root, "models", "forest_fire_detection", "weights", "best.onnx"), cfg.DefaultModelPath())
}

func TestLoadFromFile_Missing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadFromFile_SparseClasses(t *testing.T) {
	path := writeConfig(t, "project_name: x\nhyperparameters:\n  classes:\n    0: fire\n    2: smoke\n")
	_, err := LoadFromFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dense ids")
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"conf threshold": func(c *Config) { c.Visualization.ConfThreshold = 1.5 },
		"per grid":       func(c *Config) { c.Visualization.PerGrid = 0 },
		"zero conf":      func(c *Config) { c.Visualization.ConfThreshold = 0 },
		"zero top n":     func(c *Config) { c.Visualization.TopN = 0 },
		"wide grid":      func(c *Config) { c.Visualization.PerGrid = 7 },
		"eval conf":      func(c *Config) { c.Evaluation.ConfThreshold = 0 },
		"eval batch":     func(c *Config) { c.Evaluation.BatchSize = 0 },
		"input size":     func(c *Config) { c.Inference.InputSize = 100 },
		"iou":            func(c *Config) { c.Inference.IOUThreshold = -0.1 },
		"head":           func(c *Config) { c.Inference.Head = "yolov5" },
		"no classes":     func(c *Config) { c.Hyperparameters.Classes = nil },
		"samples":        func(c *Config) { c.DataSampling.TestSamples = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestModelPath(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "/tmp/explicit.onnx", cfg.ModelPath("/tmp/explicit.onnx"))
	assert.Equal(t, cfg.DefaultModelPath(), cfg.ModelPath(""))

	cfg.Server.ModelPath = "/srv/best.onnx"
	assert.Equal(t, "/srv/best.onnx", cfg.ModelPath(""))
}

func TestDetConfig(t *testing.T) {
	cfg := Default()
	det := cfg.DetConfig("/models/best.onnx")
	assert.Equal(t, "/models/best.onnx", det.ModelPath)
	assert.Equal(t, 2, det.NumClasses)
	assert.Equal(t, float32(0.3), det.ConfThreshold)
	assert.Equal(t, 640, det.InputSize)
	assert.Equal(t, yolo.HeadRaw, det.Head)
}

func TestDetConfig_LibraryPath(t *testing.T) {
	t.Setenv(forestfires.LibraryPathEnv, "/opt/ort/libonnxruntime.so")
	cfg := Default()
	assert.Equal(t, "/opt/ort/libonnxruntime.so", cfg.DetConfig("m.onnx").OnnxRuntimeLibPath)

	path := writeConfig(t, "project_name: x\ninference:\n  onnxruntime_lib_path: lib/libonnxruntime.so\n")
	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "lib", "libonnxruntime.so"), cfg.DetConfig("m.onnx").OnnxRuntimeLibPath)
}

func TestSaveToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "config.yaml")
	cfg := Default()
	require.NoError(t, cfg.SaveToFile(path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.ClassNames(), loaded.ClassNames())
	assert.Equal(t, cfg.Visualization, loaded.Visualization)
}
