package main

import (
	"fmt"
	"github.com/MLOPS-Group34/mlops-project-group34/config"
	"github.com/MLOPS-Group34/mlops-project-group34/dataset"
	"github.com/MLOPS-Group34/mlops-project-group34/internal/logger"
	"github.com/MLOPS-Group34/mlops-project-group34/runner"
	"github.com/MLOPS-Group34/mlops-project-group34/server"
	"github.com/MLOPS-Group34/mlops-project-group34/yolo"
	"github.com/akamensky/argparse"
	"github.com/sirupsen/logrus"
	"os"
)

func main() {
	parser := argparse.NewParser("forestfires", "Forest fire detection toolkit")
	configPath := parser.String("c", "config", &argparse.Options{Help: "Path to the YAML config", Default: config.DefaultPath})
	logLevel := parser.String("", "log-level", &argparse.Options{Help: "Log level, overrides server.log_level"})

	visualizeCmd := parser.NewCommand("visualize", "Render the most confident test set predictions as grids")
	modelPath := visualizeCmd.String("m", "model", &argparse.Options{Help: "ONNX weights, defaults to <models_dir>/<project_name>/weights/best.onnx"})

	evaluateCmd := parser.NewCommand("evaluate", "Report mAP, precision and recall on the test set")
	evalModel := evaluateCmd.String("m", "model", &argparse.Options{Help: "ONNX weights, defaults to <models_dir>/<project_name>/weights/best.onnx"})

	serveCmd := parser.NewCommand("serve", "Run the inference HTTP API")
	serveModel := serveCmd.String("m", "model", &argparse.Options{Help: "ONNX weights, defaults to server.model_path or the trained weights"})
	addr := serveCmd.String("a", "addr", &argparse.Options{Help: "Listen address, overrides server.addr"})

	prepareCmd := parser.NewCommand("prepare", "Write the YOLO data.yaml for training")

	if err := parser.Parse(os.Args); err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	cfg, err := config.LoadFromFile(*configPath)
	if err != nil {
		logrus.Fatal(err)
	}
	level := cfg.Server.LogLevel
	if *logLevel != "" {
		level = *logLevel
	}
	log := logger.New(level, cfg.Server.LogFile)

	switch {
	case visualizeCmd.Happened():
		err = runVisualize(cfg, *modelPath, log)
	case evaluateCmd.Happened():
		_, err = runner.New(log).Evaluate(cfg, *evalModel)
	case serveCmd.Happened():
		err = runServe(cfg, *serveModel, *addr, log)
	case prepareCmd.Happened():
		_, err = dataset.WriteYOLOYAML(cfg, log)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func runVisualize(cfg *config.Config, modelPath string, log *logrus.Logger) error {
	files, err := runner.New(log).Run(cfg, modelPath)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return nil
	}
	log.WithField("dir", cfg.ReportsDir()).Infof("saved %d prediction grids", len(files))
	return nil
}

func runServe(cfg *config.Config, modelPath, addr string, log *logrus.Logger) error {
	modelPath = cfg.ModelPath(modelPath)
	if err := runner.CheckModel(modelPath); err != nil {
		return err
	}
	engine, err := yolo.NewDetEngine(cfg.DetConfig(modelPath))
	if err != nil {
		return err
	}
	defer engine.Destroy()

	if addr == "" {
		addr = cfg.Server.Addr
	}
	return server.New(cfg, engine, modelPath, server.WithLogger(log)).Run(addr)
}
