package visualize

import (
	"fmt"
	"github.com/pkg/errors"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

const (
	gridPrefix = "predictions_grid_"
	gridExt    = ".png"
	// GridGlob matches every grid file in a reports directory.
	GridGlob = gridPrefix + "*" + gridExt
)

// GridFileName returns the file name of grid n (1-based).
func GridFileName(n int) string {
	return fmt.Sprintf("%s%d%s", gridPrefix, n, gridExt)
}

// ParseGridNumber extracts n from a predictions_grid_<n>.png name or path.
func ParseGridNumber(name string) (int, error) {
	base := filepath.Base(name)
	if !strings.HasPrefix(base, gridPrefix) || !strings.HasSuffix(base, gridExt) {
		return 0, errors.Errorf("%q is not a prediction grid file", base)
	}
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(base, gridPrefix), gridExt))
	if err != nil || n < 1 {
		return 0, errors.Errorf("%q has no valid grid number", base)
	}
	return n, nil
}

// GridInfo describes a grid file found on disk.
type GridInfo struct {
	Path   string `json:"path"`
	Name   string `json:"name"`
	Number int    `json:"grid_num"`
	Size   int64  `json:"size"`
}

// ListGrids finds the grid files in dir ordered by grid number. A missing
// directory yields an empty list.
func ListGrids(dir string) ([]GridInfo, error) {
	matches, err := filepath.Glob(filepath.Join(dir, GridGlob))
	if err != nil {
		return nil, errors.Wrap(err, "glob grid files")
	}

	grids := make([]GridInfo, 0, len(matches))
	for _, path := range matches {
		n, err := ParseGridNumber(path)
		if err != nil {
			continue
		}
		fi, err := os.Stat(path)
		if err != nil || fi.IsDir() {
			continue
		}
		grids = append(grids, GridInfo{
			Path:   path,
			Name:   strings.TrimSuffix(fi.Name(), gridExt),
			Number: n,
			Size:   fi.Size(),
		})
	}
	sort.Slice(grids, func(i, j int) bool {
		return grids[i].Number < grids[j].Number
	})
	return grids, nil
}
