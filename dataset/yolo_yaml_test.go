package dataset

import (
	"github.com/MLOPS-Group34/mlops-project-group34/config"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func loadConfig(t *testing.T, root, body string) *config.Config {
	t.Helper()
	path := filepath.Join(root, "configs", "config.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	writeFile(t, path, body)
	cfg, err := config.LoadFromFile(path)
	require.NoError(t, err)
	return cfg
}

func readDataYAML(t *testing.T, path string) DataYAML {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var d DataYAML
	require.NoError(t, yaml.Unmarshal(data, &d))
	return d
}

func TestWriteYOLOYAML_AllData(t *testing.T) {
	root := t.TempDir()
	cfg := loadConfig(t, root, "paths:\n  root_dir: ..\n")
	logger, _ := test.NewNullLogger()

	path, err := WriteYOLOYAML(cfg, logger)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "data.yaml"), path)

	d := readDataYAML(t, path)
	assert.Equal(t, DataYAML{
		Path:  root,
		Train: "data/train/images",
		Val:   "data/val/images",
		Test:  "data/test/images",
		NC:    2,
		Names: []string{"fire", "smoke"},
	}, d)
}

func TestWriteYOLOYAML_Sampled(t *testing.T) {
	root := t.TempDir()
	trainDir := filepath.Join(root, "data", "train", "images")
	require.NoError(t, os.MkdirAll(trainDir, 0o755))
	for _, name := range []string{"a.jpg", "b.jpg", "c.jpg", "d.jpg", "e.jpg"} {
		writeFile(t, filepath.Join(trainDir, name), "x")
	}

	cfg := loadConfig(t, root, `
paths:
  root_dir: ..
hyperparameters:
  classes:
    0: smoke
data_sampling:
  enabled: true
  random_seed: 7
  train_samples: 2
`)
	logger, _ := test.NewNullLogger()

	path, err := WriteYOLOYAML(cfg, logger)
	require.NoError(t, err)

	d := readDataYAML(t, path)
	assert.Equal(t, "train_sampled.txt", d.Train)
	assert.Equal(t, "val_sampled.txt", d.Val)
	assert.Equal(t, "test_sampled.txt", d.Test)
	assert.Equal(t, 1, d.NC)
	assert.Equal(t, []string{"smoke"}, d.Names)

	train, err := os.ReadFile(filepath.Join(root, "train_sampled.txt"))
	require.NoError(t, err)
	lines := strings.Fields(string(train))
	require.Len(t, lines, 2)
	for _, l := range lines {
		assert.True(t, filepath.IsAbs(l))
		assert.Equal(t, trainDir, filepath.Dir(l))
	}

	// missing split directories give empty lists
	val, err := os.ReadFile(filepath.Join(root, "val_sampled.txt"))
	require.NoError(t, err)
	assert.Empty(t, val)

	// same seed, same sample
	_, err = WriteYOLOYAML(cfg, logger)
	require.NoError(t, err)
	again, err := os.ReadFile(filepath.Join(root, "train_sampled.txt"))
	require.NoError(t, err)
	assert.Equal(t, train, again)
}

func TestOpenTest_Sampling(t *testing.T) {
	root := t.TempDir()
	testDir := filepath.Join(root, "data", "test", "images")
	require.NoError(t, os.MkdirAll(testDir, 0o755))
	for _, name := range []string{"1.jpg", "2.jpg", "3.jpg", "4.jpg"} {
		writeFile(t, filepath.Join(testDir, name), "x")
	}

	cfg := loadConfig(t, root, "paths:\n  root_dir: ..\ndata_sampling:\n  test_samples: 3\n")
	ds, err := OpenTest(cfg)
	require.NoError(t, err)
	assert.Equal(t, 4, ds.Len(), "sampling disabled keeps every image")
	assert.Equal(t, filepath.Join(root, "data", "test", "labels"), ds.LabelDir)

	cfg.DataSampling.Enabled = true
	ds, err = OpenTest(cfg)
	require.NoError(t, err)
	assert.Equal(t, 3, ds.Len())
}
