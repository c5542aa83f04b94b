// Package dataset reads a YOLO formatted image split: image files with one
// label file per image holding normalized "class cx cy w h" lines.
package dataset

import (
	forestfires "github.com/MLOPS-Group34/mlops-project-group34"
	"github.com/MLOPS-Group34/mlops-project-group34/config"
	"github.com/MLOPS-Group34/mlops-project-group34/visualize"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"image"
	"io"
)

// Dataset is an ordered list of image files and the directory of their labels.
type Dataset struct {
	Files    []string
	LabelDir string
}

// Open lists imageDir and keeps a seeded sample of n images; n <= 0 keeps all.
func Open(imageDir, labelDir string, n int, seed int64) (*Dataset, error) {
	files, err := ListImages(imageDir)
	if err != nil {
		return nil, err
	}
	return &Dataset{Files: Sample(files, n, seed), LabelDir: labelDir}, nil
}

// OpenTest opens the test split described by cfg, sampled when
// data_sampling is enabled.
func OpenTest(cfg *config.Config) (*Dataset, error) {
	n := 0
	if cfg.DataSampling.Enabled {
		n = cfg.DataSampling.TestSamples
	}
	return Open(cfg.TestImagesDir(), cfg.TestLabelsDir(), n, cfg.DataSampling.RandomSeed)
}

// Len returns the number of images.
func (d *Dataset) Len() int { return len(d.Files) }

// Item decodes image i and its ground truth boxes.
func (d *Dataset) Item(i int) (image.Image, []forestfires.GroundTruthBox, error) {
	if i < 0 || i >= len(d.Files) {
		return nil, nil, errors.Errorf("item %d out of range [0, %d)", i, len(d.Files))
	}
	path := d.Files[i]

	img, err := LoadImage(path)
	if err != nil {
		return nil, nil, err
	}
	b := img.Bounds()
	boxes, err := ReadLabels(LabelPath(d.LabelDir, path), b.Dx(), b.Dy())
	if err != nil {
		return nil, nil, err
	}
	return img, boxes, nil
}

// Loader batches a Dataset in file order. Images that fail to decode or whose
// label file is malformed are logged and skipped.
type Loader struct {
	ds        *Dataset
	batchSize int
	pos       int
	skipped   int
	logger    logrus.FieldLogger
}

var _ visualize.Loader = (*Loader)(nil)

// NewLoader creates a loader; batchSize < 1 is treated as 1 and a nil logger
// uses the standard logger.
func NewLoader(ds *Dataset, batchSize int, logger logrus.FieldLogger) *Loader {
	if batchSize < 1 {
		batchSize = 1
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Loader{ds: ds, batchSize: batchSize, logger: logger}
}

// Next returns up to batchSize decoded images, or io.EOF once every file has
// been visited.
func (l *Loader) Next() (*visualize.Batch, error) {
	batch := &visualize.Batch{}
	for batch.Len() < l.batchSize && l.pos < l.ds.Len() {
		i := l.pos
		l.pos++

		img, boxes, err := l.ds.Item(i)
		if err != nil {
			l.skipped++
			l.logger.WithError(err).WithField("path", l.ds.Files[i]).Warn("skipping test image")
			continue
		}
		batch.Images = append(batch.Images, img)
		batch.GroundTruth = append(batch.GroundTruth, boxes)
		batch.Paths = append(batch.Paths, l.ds.Files[i])
	}
	if batch.Len() == 0 {
		return nil, io.EOF
	}
	return batch, nil
}

// Skipped returns the number of images skipped so far.
func (l *Loader) Skipped() int { return l.skipped }

// Reset rewinds the loader to the first file.
func (l *Loader) Reset() {
	l.pos = 0
	l.skipped = 0
}
