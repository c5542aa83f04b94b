package forestfires

import (
	"fmt"
	ort "github.com/yalue/onnxruntime_go"
	"os"
	"runtime"
	"sync"
)

// OnnxConfig describes how the ONNX Runtime environment and sessions are set up.
type OnnxConfig struct {
	// required
	OnnxRuntimeLibPath string // path to onnxruntime.dll (or .so, .dylib)
	// optional
	UseCuda    bool // enable the CUDA execution provider
	NumThreads int  // intra-op threads, 0 lets onnxruntime decide
}

var (
	initErr error
	once    sync.Once
)

// NewSessionOptions initializes the ONNX Runtime environment (once per process)
// and returns session options built from the config. The caller owns the
// returned options and must Destroy them.
func (cfg *OnnxConfig) NewSessionOptions() (*ort.SessionOptions, error) {
	if cfg.OnnxRuntimeLibPath == "" {
		return nil, fmt.Errorf("OnnxRuntimeLibPath must not be empty")
	}
	once.Do(func() {
		ort.SetSharedLibraryPath(cfg.OnnxRuntimeLibPath)
		initErr = ort.InitializeEnvironment()
	})
	if initErr != nil {
		return nil, fmt.Errorf("initialize onnxruntime environment: %w", initErr)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, err
	}
	if cfg.NumThreads > 0 {
		if err := options.SetIntraOpNumThreads(cfg.NumThreads); err != nil {
			options.Destroy()
			return nil, err
		}
	}

	if cfg.UseCuda {
		cudaOptions, err := ort.NewCUDAProviderOptions()
		if err != nil {
			options.Destroy()
			return nil, fmt.Errorf("create CUDAProviderOptions: %w", err)
		}
		defer cudaOptions.Destroy()
		if err := options.AppendExecutionProviderCUDA(cudaOptions); err != nil {
			options.Destroy()
			return nil, fmt.Errorf("append CUDA execution provider: %w", err)
		}
	}

	return options, nil
}

// LibraryPathEnv overrides the detected onnxruntime shared library.
const LibraryPathEnv = "ONNXRUNTIME_SHARED_LIBRARY_PATH"

// DefaultLibraryPath returns $ONNXRUNTIME_SHARED_LIBRARY_PATH when set, else
// the first existing LibraryCandidates entry. When none exists it returns the
// bundled ./lib location so the load error names a concrete path.
func DefaultLibraryPath() string {
	if p := os.Getenv(LibraryPathEnv); p != "" {
		return p
	}
	candidates := LibraryCandidates(runtime.GOOS, runtime.GOARCH)
	for _, p := range candidates {
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			return p
		}
	}
	return candidates[0]
}

// LibraryCandidates lists where the onnxruntime shared library is looked up,
// the bundled ./lib copy first.
func LibraryCandidates(goos, goarch string) []string {
	if goos == "windows" {
		return []string{"./lib/onnxruntime.dll", "onnxruntime.dll"}
	}

	ext := "so"
	if goos == "darwin" {
		ext = "dylib"
	}
	if goos != "linux" && goos != "darwin" {
		goarch = "amd64"
	}
	paths := []string{
		fmt.Sprintf("./lib/onnxruntime_%s.%s", goarch, ext),
		"./lib/libonnxruntime." + ext,
		"/usr/local/lib/libonnxruntime." + ext,
	}
	switch goos {
	case "darwin":
		paths = append(paths, "/opt/homebrew/lib/libonnxruntime.dylib")
	case "linux":
		paths = append(paths, "/usr/lib/libonnxruntime.so")
	}
	return paths
}
