//go:build !linux && !darwin

package cache

import (
	"os"
	"time"
)

// accessTime falls back to the modification time on platforms where the
// stat access time is not exposed. Chtimes in Get keeps it fresh either way.
func accessTime(info os.FileInfo) time.Time {
	return info.ModTime()
}
