package server

import (
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// cpuSampleInterval is the window CPU usage is measured over.
var cpuSampleInterval = 200 * time.Millisecond

type diskStats struct {
	Total   uint64  `json:"total"`
	Used    uint64  `json:"used"`
	Free    uint64  `json:"free"`
	Percent float64 `json:"percent"`
}

type memoryStats struct {
	Total     uint64  `json:"total"`
	Available uint64  `json:"available"`
	Used      uint64  `json:"used"`
	Percent   float64 `json:"percent"`
}

type runtimeStats struct {
	HeapAlloc uint64 `json:"heap_alloc"`
	HeapSys   uint64 `json:"heap_sys"`
	Sys       uint64 `json:"sys"`
	NumGC     uint32 `json:"num_gc"`
}

type metricsResponse struct {
	CPUUsagePercent *float64     `json:"cpu_usage_percent,omitempty"`
	Memory          *memoryStats `json:"memory,omitempty"`
	Disk            *diskStats   `json:"disk,omitempty"`
	Goroutines      int          `json:"goroutines"`
	NumCPU          int          `json:"num_cpu"`
	Runtime         runtimeStats `json:"runtime"`
	UptimeSeconds   float64      `json:"uptime_seconds"`
}

func newDiskStats(total, free, avail uint64) diskStats {
	d := diskStats{Total: total, Free: avail}
	if total >= free {
		d.Used = total - free
	}
	if d.Used+avail > 0 {
		d.Percent = float64(d.Used) / float64(d.Used+avail) * 100
	}
	return d
}

// newMemoryStats treats buffers as reclaimable.
func newMemoryStats(total, free, buffers uint64) memoryStats {
	m := memoryStats{Total: total, Available: min(total, free+buffers)}
	m.Used = total - m.Available
	if total > 0 {
		m.Percent = float64(m.Used) / float64(total) * 100
	}
	return m
}

// cpuTimes are the aggregate jiffies of the "cpu" line of /proc/stat.
type cpuTimes struct {
	idle, total uint64
}

// parseCPUTimes reads "cpu user nice system idle iowait irq softirq steal ...".
// Guest time is already part of user and nice and is not counted again.
func parseCPUTimes(line string) (cpuTimes, error) {
	fields := strings.Fields(line)
	if len(fields) < 5 || fields[0] != "cpu" {
		return cpuTimes{}, errors.Errorf("unexpected cpu line %q", line)
	}
	var t cpuTimes
	for i, f := range fields[1:min(len(fields), 9)] {
		v, err := strconv.ParseUint(f, 10, 64)
		if err != nil {
			return cpuTimes{}, errors.Wrapf(err, "cpu field %d", i+1)
		}
		t.total += v
		// idle and iowait
		if i == 3 || i == 4 {
			t.idle += v
		}
	}
	return t, nil
}

// cpuPercent is the busy share between two samples.
func cpuPercent(before, after cpuTimes) float64 {
	if after.total <= before.total {
		return 0
	}
	total := float64(after.total - before.total)
	idle := float64(after.idle - before.idle)
	return max(0, (total-idle)/total*100)
}

func (s *Server) handleMetrics(c *gin.Context) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	resp := metricsResponse{
		Goroutines: runtime.NumGoroutine(),
		NumCPU:     runtime.NumCPU(),
		Runtime: runtimeStats{
			HeapAlloc: ms.HeapAlloc,
			HeapSys:   ms.HeapSys,
			Sys:       ms.Sys,
			NumGC:     ms.NumGC,
		},
		UptimeSeconds: time.Since(s.started).Seconds(),
	}
	if pct, err := cpuUsage(cpuSampleInterval); err != nil {
		s.logger.WithError(err).Debug("cpu usage unavailable")
	} else {
		resp.CPUUsagePercent = &pct
	}
	if m, err := systemMemory(); err != nil {
		s.logger.WithError(err).Debug("system memory unavailable")
	} else {
		resp.Memory = &m
	}
	if d, err := diskUsage("/"); err != nil {
		s.logger.WithError(err).Debug("disk usage unavailable")
	} else {
		resp.Disk = &d
	}
	c.JSON(http.StatusOK, resp)
}
