//go:build linux

package storage

import (
	"os"
	"syscall"
	"time"
)

// fileTimes returns the inode change time as the creation time, falling back
// to the modification time.
func fileTimes(info os.FileInfo) (created, modified time.Time) {
	modified = info.ModTime()
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		return time.Unix(int64(st.Ctim.Sec), int64(st.Ctim.Nsec)), modified
	}
	return modified, modified
}
