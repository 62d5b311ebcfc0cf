//go:build darwin

package cache

import (
	"os"
	"syscall"
	"time"
)

// accessTime extracts the last access time from a stat result. Falls back
// to the modification time if the platform-specific data is unavailable.
func accessTime(info os.FileInfo) time.Time {
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		return time.Unix(st.Atimespec.Sec, st.Atimespec.Nsec)
	}

	return info.ModTime()
}
