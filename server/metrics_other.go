//go:build !linux && !darwin && !freebsd

package server

import (
	"github.com/pkg/errors"
)

func diskUsage(string) (diskStats, error) {
	return diskStats{}, errors.New("disk usage not supported on this platform")
}
