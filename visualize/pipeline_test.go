package visualize

import (
	"errors"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"os"
	"path/filepath"
	"testing"
)

func newPipeline(items []item, batchSize int) (*Pipeline, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return &Pipeline{
		Detector: newStubDetector(items),
		Loader:   newLoader(items, batchSize),
		Classes:  testClasses,
		Options:  Options{Render: RenderConfig{CellWidth: 64, CellHeight: 48}},
		Logger:   logger,
	}, hook
}

// ten images: seven with detections and three without
func exampleItems() []item {
	return newItems(
		single(0.60), nil, single(0.91), single(0.10), nil,
		single(0.77), single(0.40), single(0.85), nil, single(0.55),
	)
}

func TestPipeline_ExampleRun(t *testing.T) {
	dir := t.TempDir()
	p, _ := newPipeline(exampleItems(), 4)

	files, err := p.Run(dir)
	require.NoError(t, err)
	assert.Equal(t, Done, p.Stage())
	require.Len(t, files, 2)

	assert.Equal(t, filepath.Join(dir, "predictions_grid_1.png"), files[0].Path)
	assert.Equal(t, 1, files[0].FirstRank)
	assert.Equal(t, 6, files[0].LastRank)
	assert.Equal(t, float32(0.91), files[0].TopConfidence)
	assert.Equal(t, float32(0.40), files[0].BottomConfidence)

	assert.Equal(t, filepath.Join(dir, "predictions_grid_2.png"), files[1].Path)
	assert.Equal(t, 7, files[1].FirstRank)
	assert.Equal(t, 10, files[1].LastRank)
	assert.Equal(t, float32(0.10), files[1].TopConfidence)
	assert.Equal(t, float32(0), files[1].BottomConfidence)

	grids, err := ListGrids(dir)
	require.NoError(t, err)
	assert.Len(t, grids, 2)
}

func TestPipeline_GridCountFollowsSelection(t *testing.T) {
	for n, want := range map[int]int{1: 1, 6: 1, 7: 2, 12: 2, 13: 3, 24: 4, 40: 4} {
		confs := make([][]float32, n)
		for i := range confs {
			confs[i] = single(float32(i+1) / float32(n+1))
		}
		p, _ := newPipeline(newItems(confs...), 16)
		p.Options.TopN = 24

		files, err := p.Run(t.TempDir())
		require.NoError(t, err)
		assert.Len(t, files, want, "n=%d", n)
	}
}

func TestPipeline_Idempotent(t *testing.T) {
	dir := t.TempDir()
	items := exampleItems()

	p, _ := newPipeline(items, 3)
	first, err := p.Run(dir)
	require.NoError(t, err)
	firstBytes, err := os.ReadFile(first[0].Path)
	require.NoError(t, err)

	p, _ = newPipeline(items, 5)
	second, err := p.Run(dir)
	require.NoError(t, err)
	secondBytes, err := os.ReadFile(second[0].Path)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, firstBytes, secondBytes)
}

func TestPipeline_EmptyTestSet(t *testing.T) {
	dir := t.TempDir()
	p, hook := newPipeline(nil, 6)

	files, err := p.Run(dir)
	require.NoError(t, err)
	assert.Empty(t, files)
	assert.Equal(t, Done, p.Stage())

	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Message == "no test images; nothing to show" {
			warned = true
		}
	}
	assert.True(t, warned)

	grids, err := ListGrids(dir)
	require.NoError(t, err)
	assert.Empty(t, grids)
}

func TestPipeline_DetectorFailure(t *testing.T) {
	p, _ := newPipeline(exampleItems(), 4)
	boom := errors.New("session lost")
	p.Detector.(*stubDetector).err = boom

	_, err := p.Run(t.TempDir())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, Aggregating, p.Stage())
}

func TestPipeline_RenderFailure(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	p, _ := newPipeline(exampleItems(), 4)
	_, err := p.Run(filepath.Join(blocker, "figures"))
	var re *RenderError
	assert.True(t, errors.As(err, &re))
	assert.Equal(t, Rendering, p.Stage())
}

func TestPipeline_Options(t *testing.T) {
	p, _ := newPipeline(exampleItems(), 4)
	p.Options.ConfThreshold = 0.5
	p.Options.TopN = 5
	p.Options.PerGrid = 2
	p.Options.MaxGrids = 2

	files, err := p.Run(t.TempDir())
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, 4, files[1].LastRank)
	assert.Equal(t, []float32{0.5}, p.Detector.(*stubDetector).confs[:1])
}

func TestPipeline_MissingCollaborators(t *testing.T) {
	_, err := (&Pipeline{}).Run(t.TempDir())
	assert.Error(t, err)
	assert.Equal(t, NotStarted, (&Pipeline{}).Stage())
}

func TestStageString(t *testing.T) {
	assert.Equal(t, "aggregating", Aggregating.String())
	assert.Equal(t, "done", Done.String())
	assert.Equal(t, "unknown", Stage(42).String())
}
