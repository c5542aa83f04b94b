package visualize

import (
	"fmt"
	forestfires "github.com/MLOPS-Group34/mlops-project-group34"
	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"image"
	"image/color"
	"image/draw"
	"os"
	"path/filepath"
)

const (
	titleFontSize = 18
	cellMargin    = 16
)

// LegendText is the second title line of every cell.
const LegendText = "GT(Green) vs Pred(Red)"

// RenderConfig controls the grid image layout.
type RenderConfig struct {
	CellWidth  int    // image area of one cell, default 640
	CellHeight int    // default 480
	FontPath   string // empty uses the embedded font
}

// DefaultRenderConfig returns the default layout.
func DefaultRenderConfig() RenderConfig {
	return RenderConfig{CellWidth: 640, CellHeight: 480}
}

// RenderError reports a grid file that could not be written.
type RenderError struct {
	Path string
	Err  error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("write grid %s: %v", e.Path, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// Renderer composes prediction grids. Not safe for concurrent use.
type Renderer struct {
	cfg     RenderConfig
	classes forestfires.ClassNames
	drawer  *forestfires.TextDrawer
}

// NewRenderer creates a renderer; Close releases its font face.
func NewRenderer(cfg RenderConfig, classes forestfires.ClassNames) (*Renderer, error) {
	def := DefaultRenderConfig()
	if cfg.CellWidth <= 0 {
		cfg.CellWidth = def.CellWidth
	}
	if cfg.CellHeight <= 0 {
		cfg.CellHeight = def.CellHeight
	}
	drawer, err := forestfires.NewTextDrawer(cfg.FontPath)
	if err != nil {
		return nil, err
	}
	return &Renderer{cfg: cfg, classes: classes, drawer: drawer}, nil
}

// Close releases the font face.
func (r *Renderer) Close() {
	r.drawer.Close()
}

// Render writes one predictions_grid_<n>.png per group into dir, creating dir
// if needed. Grid files left by a previous run with a higher number are
// removed. The first write failure aborts the remaining grids and is
// returned as a *RenderError.
func (r *Renderer) Render(dir string, groups [][]DetectionResult) ([]GridFile, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &RenderError{Path: dir, Err: err}
	}

	files := make([]GridFile, 0, len(groups))
	offset := 0
	for gi, group := range groups {
		if len(group) == 0 {
			continue
		}
		canvas, err := r.Compose(group, offset)
		if err != nil {
			return files, err
		}

		path := filepath.Join(dir, GridFileName(gi+1))
		if err := writePNG(path, canvas); err != nil {
			return files, &RenderError{Path: path, Err: err}
		}
		files = append(files, GridFile{
			Index:            gi + 1,
			Path:             path,
			FirstRank:        offset + 1,
			LastRank:         offset + len(group),
			TopConfidence:    group[0].AvgConfidence,
			BottomConfidence: group[len(group)-1].AvgConfidence,
		})
		offset += len(group)
	}

	if err := removeStaleGrids(dir, len(files)); err != nil {
		return files, err
	}
	return files, nil
}

// Compose lays out up to CellsPerGrid results on a GridRows x GridCols canvas.
// offset is the number of results ranked before the first one of group.
func (r *Renderer) Compose(group []DetectionResult, offset int) (*image.NRGBA, error) {
	if len(group) > CellsPerGrid {
		return nil, errors.Errorf("grid holds at most %d images, got %d", CellsPerGrid, len(group))
	}
	if err := r.drawer.SetSize(titleFontSize); err != nil {
		return nil, err
	}
	lineH := r.drawer.Ascent() + 6
	titleH := 2 * lineH

	slotW := r.cfg.CellWidth + 2*cellMargin
	slotH := titleH + r.cfg.CellHeight + 2*cellMargin
	canvas := imaging.New(GridCols*slotW, GridRows*slotH, color.White)

	for i, res := range group {
		x0 := (i%GridCols)*slotW + cellMargin
		y0 := (i/GridCols)*slotH + cellMargin

		annotated, err := r.Annotate(res)
		if err != nil {
			return nil, err
		}
		fitted := imaging.Fit(annotated, r.cfg.CellWidth, r.cfg.CellHeight, imaging.Lanczos)
		fb := fitted.Bounds()
		at := image.Pt(x0+(r.cfg.CellWidth-fb.Dx())/2, y0+titleH+(r.cfg.CellHeight-fb.Dy())/2)
		draw.Draw(canvas, image.Rectangle{Min: at, Max: at.Add(fb.Size())}, fitted, fb.Min, draw.Src)

		// Annotate changes the font size
		if err := r.drawer.SetSize(titleFontSize); err != nil {
			return nil, err
		}
		title := fmt.Sprintf("Image %d: Avg Conf=%.3f", offset+i+1, res.AvgConfidence)
		r.centerText(canvas, title, x0, y0+lineH-4)
		r.centerText(canvas, LegendText, x0, y0+2*lineH-4)
	}
	// unused cells stay blank
	return canvas, nil
}

// Annotate returns a copy of the result image with ground truth boxes in
// green and predictions in red drawn on top.
func (r *Renderer) Annotate(res DetectionResult) (*image.RGBA, error) {
	if res.Image == nil {
		return nil, errors.Errorf("%s: no image", res.Path)
	}
	src := res.Image.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, src.Dx(), src.Dy()))
	draw.Draw(dst, dst.Bounds(), res.Image, src.Min, draw.Src)

	if err := r.drawer.SetSize(forestfires.FontSizeFor(dst.Bounds())); err != nil {
		return nil, err
	}
	stroke := forestfires.StrokeFor(dst.Bounds())
	for _, b := range res.GroundTruth {
		forestfires.DrawBox(dst, b, r.classes, forestfires.GroundTruthColor, stroke, r.drawer)
	}
	for _, b := range res.Predictions {
		forestfires.DrawBox(dst, b, r.classes, forestfires.PredictionColor, stroke, r.drawer)
	}
	return dst, nil
}

func (r *Renderer) centerText(dst draw.Image, text string, x0, baseline int) {
	x := x0 + max(0, (r.cfg.CellWidth-r.drawer.MeasureText(text))/2)
	r.drawer.DrawText(dst, text, x, baseline, color.Black)
}

// writePNG encodes img next to path and renames it into place so readers
// never observe a partial file.
func writePNG(path string, img image.Image) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := imaging.Encode(tmp, img, imaging.PNG); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// removeStaleGrids deletes grid files numbered above keep.
func removeStaleGrids(dir string, keep int) error {
	grids, err := ListGrids(dir)
	if err != nil {
		return err
	}
	for _, g := range grids {
		if g.Number <= keep {
			continue
		}
		if err := os.Remove(g.Path); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "remove stale grid %s", g.Path)
		}
	}
	return nil
}
