package dataset

import (
	"github.com/MLOPS-Group34/mlops-project-group34/config"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
	"os"
	"path/filepath"
	"strings"
)

// DataYAML is the dataset descriptor read by the Ultralytics trainer.
type DataYAML struct {
	Path  string   `yaml:"path"`
	Train string   `yaml:"train"`
	Val   string   `yaml:"val"`
	Test  string   `yaml:"test"`
	NC    int      `yaml:"nc"`
	Names []string `yaml:"names"`
}

type split struct {
	name    string
	dir     string
	samples int
}

// WriteYOLOYAML writes the data.yaml descriptor into the project root and
// returns its path. With data_sampling enabled every split is sampled into a
// <split>_sampled.txt list of absolute image paths referenced by the
// descriptor; otherwise the descriptor points at the split directories.
func WriteYOLOYAML(cfg *config.Config, logger logrus.FieldLogger) (string, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	root := cfg.RootDir()
	desc := DataYAML{
		Path:  root,
		Train: cfg.Paths.TrainImages,
		Val:   cfg.Paths.ValImages,
		Test:  cfg.Paths.TestImages,
		NC:    len(cfg.Hyperparameters.Classes),
		Names: cfg.ClassNames(),
	}

	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", errors.Wrap(err, "create project root")
	}

	if cfg.DataSampling.Enabled {
		logger.Info("data sampling is enabled")
		s := cfg.DataSampling
		splits := []split{
			{"train", cfg.Path(cfg.Paths.TrainImages), s.TrainSamples},
			{"val", cfg.Path(cfg.Paths.ValImages), s.ValSamples},
			{"test", cfg.Path(cfg.Paths.TestImages), s.TestSamples},
		}
		lists := make([]string, len(splits))
		for i, sp := range splits {
			name, err := writeSampleList(root, sp, s.RandomSeed, logger)
			if err != nil {
				return "", err
			}
			lists[i] = name
		}
		desc.Train, desc.Val, desc.Test = lists[0], lists[1], lists[2]
	} else {
		logger.Info("data sampling is disabled; using all available data")
	}

	data, err := yaml.Marshal(desc)
	if err != nil {
		return "", errors.Wrap(err, "marshal data.yaml")
	}
	path := cfg.Path(cfg.Paths.YoloYAML)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", errors.Wrap(err, "create data.yaml directory")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", errors.Wrap(err, "write data.yaml")
	}
	logger.WithField("path", path).Info("YOLO data configuration saved")
	return path, nil
}

// writeSampleList samples one split into <root>/<split>_sampled.txt and
// returns the file name.
func writeSampleList(root string, sp split, seed int64, logger logrus.FieldLogger) (string, error) {
	var files []string
	all, err := ListImages(sp.dir)
	switch {
	case os.IsNotExist(errors.Cause(err)):
		logger.WithField("path", sp.dir).Warn("no images found")
	case err != nil:
		return "", err
	default:
		files = Sample(all, sp.samples, seed)
		logger.WithFields(logrus.Fields{
			"split":     sp.name,
			"sampled":   len(files),
			"available": len(all),
		}).Info("sampled split")
	}

	name := sp.name + "_sampled.txt"
	var sb strings.Builder
	for _, f := range files {
		sb.WriteString(f)
		sb.WriteByte('\n')
	}
	if err := os.WriteFile(filepath.Join(root, name), []byte(sb.String()), 0o644); err != nil {
		return "", errors.Wrapf(err, "write %s", name)
	}
	return name, nil
}
