//go:build linux || darwin || freebsd

package server

import (
	"golang.org/x/sys/unix"
)

func diskUsage(path string) (diskStats, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return diskStats{}, err
	}
	bsize := uint64(st.Bsize)
	return newDiskStats(uint64(st.Blocks)*bsize, uint64(st.Bfree)*bsize, uint64(st.Bavail)*bsize), nil
}
