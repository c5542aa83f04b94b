package server

import (
	"fmt"
	forestfires "github.com/MLOPS-Group34/mlops-project-group34"
	"github.com/MLOPS-Group34/mlops-project-group34/dataset"
	"github.com/MLOPS-Group34/mlops-project-group34/visualize"
	"github.com/MLOPS-Group34/mlops-project-group34/yolo"
	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"image"
	"image/draw"
	"io"
	"net/http"
	"runtime"
	"strconv"
	"time"
)

// uploads above this size are rejected
const maxUploadSize = 32 << 20

type predictQuery struct {
	Conf   float32 `form:"conf,default=0.25" binding:"gte=0,lte=1"`
	IOU    float32 `form:"iou,default=0.7" binding:"gte=0,lte=1"`
	MaxDet int     `form:"max_det,default=300" binding:"gte=1,lte=3000"`
}

func (q predictQuery) options() yolo.PredictOptions {
	return yolo.PredictOptions{ConfThreshold: q.Conf, IOUThreshold: q.IOU, MaxDetections: q.MaxDet}
}

type imageSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type detection struct {
	ClassID    int        `json:"class_id"`
	ClassName  string     `json:"class_name"`
	Confidence float32    `json:"confidence"`
	BoxXYXY    [4]float32 `json:"box_xyxy"`
}

type predictResponse struct {
	Filename      string             `json:"filename"`
	ImageSize     imageSize          `json:"image_size"`
	Conf          float32            `json:"conf"`
	IOU           float32            `json:"iou"`
	MaxDet        int                `json:"max_det"`
	NumDetections int                `json:"num_detections"`
	Detections    []detection        `json:"detections"`
	Speed         map[string]float64 `json:"speed"`
}

func abort(c *gin.Context, code int, detail string) {
	c.AbortWithStatusJSON(code, gin.H{"detail": detail})
}

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message":    "YOLO Inference API is running",
		"model_path": s.modelPath,
	})
}

// readUpload binds the query thresholds and decodes the "file" form field.
// It writes the error response itself and returns ok=false on failure.
func (s *Server) readUpload(c *gin.Context) (img image.Image, name string, q predictQuery, ok bool) {
	if err := c.ShouldBindQuery(&q); err != nil {
		abort(c, http.StatusBadRequest, fmt.Sprintf("invalid query: %v", err))
		return nil, "", q, false
	}
	fh, err := c.FormFile("file")
	if err != nil {
		abort(c, http.StatusBadRequest, "missing file field")
		return nil, "", q, false
	}
	f, err := fh.Open()
	if err != nil {
		abort(c, http.StatusBadRequest, "unreadable upload")
		return nil, "", q, false
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxUploadSize+1))
	if err != nil {
		abort(c, http.StatusBadRequest, "unreadable upload")
		return nil, "", q, false
	}
	if len(data) == 0 {
		abort(c, http.StatusBadRequest, "Empty file uploaded.")
		return nil, "", q, false
	}
	if len(data) > maxUploadSize {
		abort(c, http.StatusRequestEntityTooLarge, "file too large")
		return nil, "", q, false
	}
	img, err = dataset.DecodeImage(data)
	if err != nil {
		abort(c, http.StatusBadRequest, "Uploaded file is not a valid image.")
		return nil, "", q, false
	}
	return img, fh.Filename, q, true
}

func (s *Server) handlePredict(c *gin.Context) {
	img, name, q, ok := s.readUpload(c)
	if !ok {
		return
	}

	start := time.Now()
	results, err := s.predictor.PredictWithOptions(img, q.options())
	if err != nil {
		abort(c, http.StatusInternalServerError, fmt.Sprintf("Inference failed: %v", err))
		return
	}
	elapsed := time.Since(start)

	classes := s.cfg.ClassNames()
	dets := make([]detection, len(results))
	for i, r := range results {
		dets[i] = detection{
			ClassID:    r.ClassID,
			ClassName:  classes.Name(r.ClassID),
			Confidence: r.Score,
			BoxXYXY:    [4]float32{r.X1, r.Y1, r.X2, r.Y2},
		}
	}
	b := img.Bounds()
	c.JSON(http.StatusOK, predictResponse{
		Filename:      name,
		ImageSize:     imageSize{Width: b.Dx(), Height: b.Dy()},
		Conf:          q.Conf,
		IOU:           q.IOU,
		MaxDet:        q.MaxDet,
		NumDetections: len(dets),
		Detections:    dets,
		Speed:         map[string]float64{"inference": float64(elapsed.Microseconds()) / 1000},
	})
}

func (s *Server) handlePredictImage(c *gin.Context) {
	img, _, q, ok := s.readUpload(c)
	if !ok {
		return
	}
	results, err := s.predictor.PredictWithOptions(img, q.options())
	if err != nil {
		abort(c, http.StatusInternalServerError, err.Error())
		return
	}

	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)

	drawer, err := forestfires.NewTextDrawer(s.cfg.Resolve(s.cfg.Visualization.FontPath))
	if err != nil {
		abort(c, http.StatusInternalServerError, err.Error())
		return
	}
	defer drawer.Close()
	if err := drawer.SetSize(forestfires.FontSizeFor(dst.Bounds())); err != nil {
		abort(c, http.StatusInternalServerError, err.Error())
		return
	}

	classes := s.cfg.ClassNames()
	stroke := forestfires.StrokeFor(dst.Bounds())
	for _, r := range results {
		forestfires.DrawBox(dst, r.Predicted(), classes, forestfires.PredictionColor, stroke, drawer)
	}

	c.Header("Content-Type", "image/jpeg")
	c.Status(http.StatusOK)
	if err := imaging.Encode(c.Writer, dst, imaging.JPEG); err != nil {
		s.logger.WithError(err).Warn("encode annotated image")
	}
}

func (s *Server) handleDevice(c *gin.Context) {
	device := "cpu"
	if s.cfg.Inference.UseCuda {
		device = "cuda"
	}
	c.JSON(http.StatusOK, gin.H{
		"cuda_enabled": s.cfg.Inference.UseCuda,
		"device":       device,
		"num_cpu":      runtime.NumCPU(),
		"os":           runtime.GOOS,
		"arch":         runtime.GOARCH,
	})
}

func (s *Server) handleGrids(c *gin.Context) {
	grids, err := visualize.ListGrids(s.cfg.ReportsDir())
	if err != nil {
		abort(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"grids": grids, "generating": s.generating.Load()})
}

func (s *Server) handleGrid(c *gin.Context) {
	n, err := strconv.Atoi(c.Param("n"))
	if err != nil || n < 1 {
		abort(c, http.StatusBadRequest, "grid number must be a positive integer")
		return
	}
	grids, err := visualize.ListGrids(s.cfg.ReportsDir())
	if err != nil {
		abort(c, http.StatusInternalServerError, err.Error())
		return
	}
	for _, g := range grids {
		if g.Number == n {
			c.File(g.Path)
			return
		}
	}
	abort(c, http.StatusNotFound, fmt.Sprintf("grid %d not found", n))
}

func (s *Server) handleVisualize(c *gin.Context) {
	if !s.generating.CompareAndSwap(false, true) {
		abort(c, http.StatusConflict, "visualization already running")
		return
	}
	defer s.generating.Store(false)

	start := time.Now()
	files, err := s.generate()
	if err != nil {
		s.logger.WithError(err).Error("visualization failed")
		abort(c, http.StatusInternalServerError, fmt.Sprintf("visualization failed: %v", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"grids":    files,
		"count":    len(files),
		"duration": time.Since(start).Seconds(),
	})
}
