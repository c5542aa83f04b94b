// Package server exposes the detector and the prediction grids over HTTP.
package server

import (
	"github.com/MLOPS-Group34/mlops-project-group34/config"
	"github.com/MLOPS-Group34/mlops-project-group34/runner"
	"github.com/MLOPS-Group34/mlops-project-group34/visualize"
	"github.com/MLOPS-Group34/mlops-project-group34/yolo"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"image"
	"sync/atomic"
	"time"
)

// Predictor runs single image detection with per-request thresholds.
type Predictor interface {
	PredictWithOptions(img image.Image, opts yolo.PredictOptions) ([]yolo.DetResult, error)
}

// GenerateFunc renders the prediction grids.
type GenerateFunc func() ([]visualize.GridFile, error)

// Server is the HTTP API. Generation requests are serialized: while one is
// running, further ones are rejected.
type Server struct {
	cfg       *config.Config
	predictor Predictor
	modelPath string
	generate  GenerateFunc
	logger    logrus.FieldLogger

	generating atomic.Bool
	started    time.Time
}

// Option customizes a Server.
type Option func(*Server)

// WithGenerator replaces the grid generation run.
func WithGenerator(fn GenerateFunc) Option {
	return func(s *Server) { s.generate = fn }
}

// WithLogger sets the logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Server) { s.logger = logger }
}

// New creates a server for predictor, whose weights were loaded from
// modelPath. Grid generation defaults to a runner over cfg.
func New(cfg *config.Config, predictor Predictor, modelPath string, opts ...Option) *Server {
	s := &Server{
		cfg:       cfg,
		predictor: predictor,
		modelPath: modelPath,
		logger:    logrus.StandardLogger(),
		started:   time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.generate == nil {
		s.generate = func() ([]visualize.GridFile, error) {
			return runner.New(s.logger).Run(s.cfg, s.modelPath)
		}
	}
	return s
}

// Router builds the gin engine.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/", s.handleRoot)
	r.POST("/predict", s.handlePredict)
	r.POST("/predict/image", s.handlePredictImage)
	r.GET("/device", s.handleDevice)
	r.GET("/metrics", s.handleMetrics)
	r.GET("/grids", s.handleGrids)
	r.GET("/grids/:n", s.handleGrid)
	r.POST("/visualize", s.handleVisualize)
	return r
}

// Run listens on addr until the server fails.
func (s *Server) Run(addr string) error {
	s.logger.WithField("addr", addr).Info("serving inference API")
	return s.Router().Run(addr)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start),
		}).Debug("request")
	}
}
