package logger

import (
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"os"
	"path/filepath"
	"testing"
)

func TestNew_Level(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, New("debug", "").GetLevel())
	assert.Equal(t, logrus.InfoLevel, New("loud", "").GetLevel())
}

func TestNew_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	log := New("info", path)
	log.WithField("grid", 1).Info("visualization saved")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "visualization saved")
	assert.Contains(t, string(data), "grid=1")
}

func TestNew_BadFile(t *testing.T) {
	log := New("info", filepath.Join(t.TempDir(), "missing", "app.log"))
	assert.Equal(t, os.Stdout, log.Out)
}
