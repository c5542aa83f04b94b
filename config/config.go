// Package config loads the project YAML configuration and resolves the
// filesystem layout it describes.
package config

import (
	"fmt"
	forestfires "github.com/MLOPS-Group34/mlops-project-group34"
	"github.com/MLOPS-Group34/mlops-project-group34/visualize"
	"github.com/MLOPS-Group34/mlops-project-group34/yolo"
	"gopkg.in/yaml.v3"
	"os"
	"path/filepath"
	"sort"
)

// DefaultPath is used when no config locator is given.
const DefaultPath = "configs/config.yaml"

// Config holds the application configuration
type Config struct {
	ProjectName     string              `yaml:"project_name"`
	Paths           PathsConfig         `yaml:"paths"`
	Hyperparameters HyperparamsConfig   `yaml:"hyperparameters"`
	DataSampling    SamplingConfig      `yaml:"data_sampling"`
	Visualization   VisualizationConfig `yaml:"visualization"`
	Evaluation      EvaluationConfig    `yaml:"evaluation"`
	Inference       InferenceConfig     `yaml:"inference"`
	Server          ServerConfig        `yaml:"server"`

	// directory of the loaded file; relative paths resolve against it
	baseDir string
}

// PathsConfig holds directories relative to RootDir
type PathsConfig struct {
	RootDir     string `yaml:"root_dir"`
	ReportsDir  string `yaml:"reports_dir"`
	ModelsDir   string `yaml:"models_dir"`
	TrainImages string `yaml:"train_images"`
	TrainLabels string `yaml:"train_labels"`
	ValImages   string `yaml:"val_images"`
	ValLabels   string `yaml:"val_labels"`
	TestImages  string `yaml:"test_images"`
	TestLabels  string `yaml:"test_labels"`
	YoloYAML    string `yaml:"yolo_yaml"`
}

// HyperparamsConfig holds training parameters; only Classes and ImgSize are
// used at inference time.
type HyperparamsConfig struct {
	ModelType string         `yaml:"model_type"`
	Epochs    int            `yaml:"epochs"`
	ImgSize   int            `yaml:"img_size"`
	BatchSize int            `yaml:"batch_size"`
	LR        float64        `yaml:"lr"`
	Classes   map[int]string `yaml:"classes"`
}

// SamplingConfig selects a reproducible subset of each split
type SamplingConfig struct {
	Enabled      bool  `yaml:"enabled"`
	RandomSeed   int64 `yaml:"random_seed"`
	TrainSamples int   `yaml:"train_samples"`
	ValSamples   int   `yaml:"val_samples"`
	TestSamples  int   `yaml:"test_samples"`
}

// VisualizationConfig holds the prediction grid parameters
type VisualizationConfig struct {
	ConfThreshold float32 `yaml:"conf_threshold"`
	TopN          int     `yaml:"top_n"`
	PerGrid       int     `yaml:"per_grid"`
	MaxGrids      int     `yaml:"max_grids"`
	BatchSize     int     `yaml:"batch_size"`
	CellWidth     int     `yaml:"cell_width"`
	CellHeight    int     `yaml:"cell_height"`
	FontPath      string  `yaml:"font_path"`
}

// EvaluationConfig holds the test set scoring parameters
type EvaluationConfig struct {
	ConfThreshold float32 `yaml:"conf_threshold"`
	BatchSize     int     `yaml:"batch_size"`
}

// InferenceConfig holds the ONNX detector parameters
type InferenceConfig struct {
	OnnxRuntimeLibPath string  `yaml:"onnxruntime_lib_path"`
	InputSize          int     `yaml:"input_size"`
	Head               string  `yaml:"head"`
	IOUThreshold       float32 `yaml:"iou_threshold"`
	MaxDetections      int     `yaml:"max_detections"`
	UseCuda            bool    `yaml:"use_cuda"`
	NumThreads         int     `yaml:"num_threads"`
}

// ServerConfig holds the HTTP API settings
type ServerConfig struct {
	Addr      string `yaml:"addr"`
	LogLevel  string `yaml:"log_level"`
	LogFile   string `yaml:"log_file"`
	ModelPath string `yaml:"model_path"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		ProjectName: "forest_fire_detection",
		Paths: PathsConfig{
			RootDir:     "..",
			ReportsDir:  "reports/figures",
			ModelsDir:   "models",
			TrainImages: "data/train/images",
			TrainLabels: "data/train/labels",
			ValImages:   "data/val/images",
			ValLabels:   "data/val/labels",
			TestImages:  "data/test/images",
			TestLabels:  "data/test/labels",
			YoloYAML:    "data.yaml",
		},
		Hyperparameters: HyperparamsConfig{
			ModelType: "yolov8n.pt",
			Epochs:    50,
			ImgSize:   640,
			BatchSize: 16,
			LR:        0.01,
			Classes:   map[int]string{0: "fire", 1: "smoke"},
		},
		DataSampling: SamplingConfig{
			RandomSeed: 42,
		},
		Visualization: VisualizationConfig{
			ConfThreshold: 0.3,
			TopN:          24,
			PerGrid:       6,
			MaxGrids:      4,
			BatchSize:     6,
			CellWidth:     640,
			CellHeight:    480,
		},
		Evaluation: EvaluationConfig{
			ConfThreshold: 0.001,
			BatchSize:     16,
		},
		Inference: InferenceConfig{
			InputSize:     640,
			Head:          string(yolo.HeadRaw),
			IOUThreshold:  0.7,
			MaxDetections: 300,
		},
		Server: ServerConfig{
			Addr:     ":8000",
			LogLevel: "info",
		},
		baseDir: ".",
	}
}

// LoadFromFile loads configuration from a YAML file on top of Default.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	// an explicit classes mapping replaces the default one
	config.Hyperparameters.Classes = nil
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if config.Hyperparameters.Classes == nil {
		config.Hyperparameters.Classes = Default().Hyperparameters.Classes
	}

	abs, err := filepath.Abs(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}
	config.baseDir = filepath.Dir(abs)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", filename, err)
	}
	return config, nil
}

// SaveToFile writes the configuration as YAML
func (c *Config) SaveToFile(filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.ProjectName == "" {
		return fmt.Errorf("project_name must not be empty")
	}

	n := len(c.Hyperparameters.Classes)
	if n == 0 {
		return fmt.Errorf("hyperparameters.classes must not be empty")
	}
	for id := 0; id < n; id++ {
		if _, ok := c.Hyperparameters.Classes[id]; !ok {
			return fmt.Errorf("hyperparameters.classes must use dense ids 0..%d, missing %d", n-1, id)
		}
	}

	v := c.Visualization
	if v.ConfThreshold <= 0 || v.ConfThreshold > 1 {
		return fmt.Errorf("visualization.conf_threshold must be in (0, 1]")
	}
	if v.TopN < 1 {
		return fmt.Errorf("visualization.top_n must be positive")
	}
	if v.PerGrid < 1 || v.PerGrid > visualize.CellsPerGrid {
		return fmt.Errorf("visualization.per_grid must be between 1 and %d", visualize.CellsPerGrid)
	}
	if v.MaxGrids < 1 || v.BatchSize < 1 {
		return fmt.Errorf("visualization.max_grids and batch_size must be positive")
	}
	if v.CellWidth < 1 || v.CellHeight < 1 {
		return fmt.Errorf("visualization.cell_width and cell_height must be positive")
	}

	if e := c.Evaluation; e.ConfThreshold <= 0 || e.ConfThreshold > 1 || e.BatchSize < 1 {
		return fmt.Errorf("evaluation.conf_threshold must be in (0, 1] and batch_size positive")
	}

	inf := c.Inference
	if inf.InputSize <= 0 || inf.InputSize%32 != 0 {
		return fmt.Errorf("inference.input_size must be a positive multiple of 32")
	}
	if inf.Head != string(yolo.HeadRaw) && inf.Head != string(yolo.HeadEnd2End) {
		return fmt.Errorf("inference.head must be %q or %q", yolo.HeadRaw, yolo.HeadEnd2End)
	}
	if inf.IOUThreshold < 0 || inf.IOUThreshold > 1 {
		return fmt.Errorf("inference.iou_threshold must be between 0 and 1")
	}
	if inf.MaxDetections < 1 {
		return fmt.Errorf("inference.max_detections must be positive")
	}

	if c.DataSampling.TrainSamples < 0 || c.DataSampling.ValSamples < 0 || c.DataSampling.TestSamples < 0 {
		return fmt.Errorf("data_sampling sample counts must not be negative")
	}
	return nil
}

// ClassNames returns the class names ordered by id.
func (c *Config) ClassNames() forestfires.ClassNames {
	ids := make([]int, 0, len(c.Hyperparameters.Classes))
	for id := range c.Hyperparameters.Classes {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	names := make(forestfires.ClassNames, len(ids))
	for i, id := range ids {
		names[i] = c.Hyperparameters.Classes[id]
	}
	return names
}

// DetConfig builds the detector configuration for the given weights.
func (c *Config) DetConfig(modelPath string) yolo.Config {
	cfg := yolo.DefaultConfig()
	cfg.ModelPath = modelPath
	if c.Inference.OnnxRuntimeLibPath != "" {
		cfg.OnnxRuntimeLibPath = c.Resolve(c.Inference.OnnxRuntimeLibPath)
	}
	cfg.ConfThreshold = c.Visualization.ConfThreshold
	cfg.IOUThreshold = c.Inference.IOUThreshold
	cfg.MaxDetections = c.Inference.MaxDetections
	cfg.InputSize = c.Inference.InputSize
	cfg.Head = yolo.Head(c.Inference.Head)
	cfg.NumClasses = len(c.Hyperparameters.Classes)
	cfg.UseCuda = c.Inference.UseCuda
	cfg.NumThreads = c.Inference.NumThreads
	return cfg
}
