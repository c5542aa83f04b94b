package dataset

import (
	"github.com/pkg/errors"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
)

// ListImages returns the image files directly inside dir, sorted by name.
func ListImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "list images in %s", dir)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !IsImage(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// Sample picks n files using seed. The same files and seed always give the
// same subset, returned in sorted order. n <= 0 or n >= len(files) keeps
// every file.
func Sample(files []string, n int, seed int64) []string {
	all := append([]string(nil), files...)
	sort.Strings(all)
	if n <= 0 || n >= len(all) {
		return all
	}

	rng := rand.New(rand.NewSource(seed))
	picked := make([]string, n)
	for i, idx := range rng.Perm(len(all))[:n] {
		picked[i] = all[idx]
	}
	sort.Strings(picked)
	return picked
}
