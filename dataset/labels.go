package dataset

import (
	"bufio"
	forestfires "github.com/MLOPS-Group34/mlops-project-group34"
	"github.com/pkg/errors"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ParseLabels reads YOLO label lines ("class cx cy w h", normalized to the
// image size) and converts them to absolute pixel boxes for a w x h image.
// Coordinates are truncated to whole pixels. Blank lines are ignored; any
// other malformed line is an error.
func ParseLabels(r io.Reader, w, h int) ([]forestfires.GroundTruthBox, error) {
	var boxes []forestfires.GroundTruthBox
	sc := bufio.NewScanner(r)
	for line := 1; sc.Scan(); line++ {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) < 5 {
			return nil, errors.Errorf("line %d: want 5 fields, got %d", line, len(fields))
		}

		var v [5]float64
		for i := range v {
			f, err := strconv.ParseFloat(fields[i], 64)
			if err != nil {
				return nil, errors.Wrapf(err, "line %d", line)
			}
			v[i] = f
		}
		if v[0] < 0 {
			return nil, errors.Errorf("line %d: negative class id", line)
		}

		cx, cy, bw, bh := v[1], v[2], v[3], v[4]
		boxes = append(boxes, forestfires.GroundTruthBox{
			X1:      float32(int((cx - bw/2) * float64(w))),
			Y1:      float32(int((cy - bh/2) * float64(h))),
			X2:      float32(int((cx + bw/2) * float64(w))),
			Y2:      float32(int((cy + bh/2) * float64(h))),
			ClassID: int(v[0]),
		})
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "read labels")
	}
	return boxes, nil
}

// LabelPath returns the label file of imagePath inside labelDir: the same
// stem with a .txt extension.
func LabelPath(labelDir, imagePath string) string {
	base := filepath.Base(imagePath)
	return filepath.Join(labelDir, strings.TrimSuffix(base, filepath.Ext(base))+".txt")
}

// ReadLabels parses the label file at path. A missing file means the image
// has no annotated objects.
func ReadLabels(path string, w, h int) ([]forestfires.GroundTruthBox, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "open labels")
	}
	defer f.Close()

	boxes, err := ParseLabels(f, w, h)
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	return boxes, nil
}
