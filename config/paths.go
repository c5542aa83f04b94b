package config

import (
	"path/filepath"
)

// Resolve makes p absolute against the config file directory.
func (c *Config) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.baseDir, p)
}

// RootDir is the project root, root_dir resolved against the config file.
func (c *Config) RootDir() string {
	root, err := filepath.Abs(c.Resolve(c.Paths.RootDir))
	if err != nil {
		return c.Resolve(c.Paths.RootDir)
	}
	return root
}

// Path joins rel onto RootDir unless rel is already absolute.
func (c *Config) Path(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(c.RootDir(), rel)
}

// ReportsDir is where prediction grids are written.
func (c *Config) ReportsDir() string { return c.Path(c.Paths.ReportsDir) }

// TestImagesDir holds the test split images.
func (c *Config) TestImagesDir() string { return c.Path(c.Paths.TestImages) }

// TestLabelsDir holds the test split YOLO label files.
func (c *Config) TestLabelsDir() string { return c.Path(c.Paths.TestLabels) }

// DefaultModelPath is <root>/<models_dir>/<project_name>/weights/best.onnx.
func (c *Config) DefaultModelPath() string {
	return filepath.Join(c.Path(c.Paths.ModelsDir), c.ProjectName, "weights", "best.onnx")
}

// ModelPath returns explicit when set, otherwise the server override or the
// default weights location.
func (c *Config) ModelPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if c.Server.ModelPath != "" {
		return c.Path(c.Server.ModelPath)
	}
	return c.DefaultModelPath()
}
