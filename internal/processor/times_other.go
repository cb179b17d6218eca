//go:build !linux

package processor

import (
	"os"
	"time"
)

// fileTimes approximates the access time with the modification time on
// platforms where the stat access time is not portably reachable.
func fileTimes(info os.FileInfo) (atime, mtime time.Time) {
	mtime = info.ModTime()
	return mtime, mtime
}
