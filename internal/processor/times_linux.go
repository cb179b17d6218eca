//go:build linux

package processor

import (
	"os"
	"syscall"
	"time"
)

// fileTimes returns the access and modification times recorded in the
// underlying inode.
func fileTimes(info os.FileInfo) (atime, mtime time.Time) {
	mtime = info.ModTime()
	atime = mtime
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		atime = time.Unix(st.Atim.Sec, st.Atim.Nsec)
	}
	return atime, mtime
}
