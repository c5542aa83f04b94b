//go:build !linux

package server

import (
	"github.com/pkg/errors"
	"time"
)

func systemMemory() (memoryStats, error) {
	return memoryStats{}, errors.New("system memory not supported on this platform")
}

func cpuUsage(time.Duration) (float64, error) {
	return 0, errors.New("cpu usage not supported on this platform")
}
