//go:build linux

package server

import (
	"bufio"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
	"os"
	"strings"
	"time"
)

func systemMemory() (memoryStats, error) {
	var si unix.Sysinfo_t
	if err := unix.Sysinfo(&si); err != nil {
		return memoryStats{}, err
	}
	unit := uint64(si.Unit)
	if unit == 0 {
		unit = 1
	}
	return newMemoryStats(uint64(si.Totalram)*unit, uint64(si.Freeram)*unit, uint64(si.Bufferram)*unit), nil
}

func readCPUTimes() (cpuTimes, error) {
	f, err := os.Open("/proc/stat")
	if err != nil {
		return cpuTimes{}, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if line := sc.Text(); strings.HasPrefix(line, "cpu ") {
			return parseCPUTimes(line)
		}
	}
	if err := sc.Err(); err != nil {
		return cpuTimes{}, err
	}
	return cpuTimes{}, errors.New("no cpu line in /proc/stat")
}

func cpuUsage(interval time.Duration) (float64, error) {
	before, err := readCPUTimes()
	if err != nil {
		return 0, err
	}
	time.Sleep(interval)
	after, err := readCPUTimes()
	if err != nil {
		return 0, err
	}
	return cpuPercent(before, after), nil
}
