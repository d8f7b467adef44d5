package preflight

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"
)

// MinDiskSpaceBytes is the free space required for the catalog database
// and the fuzzy index built from the full dumps.
const MinDiskSpaceBytes = 500 * 1000 * 1000

// CheckDiskSpace checks the free space on the filesystem holding path,
// or its nearest existing parent. Low space warns; ingest may still fit.
func (c *Checker) CheckDiskSpace(path string) CheckResult {
	result := CheckResult{
		Name:     "disk_space",
		Required: true,
	}

	dir := existingParent(path)
	var stat unix.Statfs_t
	if err := unix.Statfs(dir, &stat); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("failed to check disk space: %v", err)
		return result
	}

	available := stat.Bavail * uint64(stat.Bsize)
	result.Message = fmt.Sprintf("%s free (minimum: %s)",
		humanize.Bytes(available), humanize.Bytes(MinDiskSpaceBytes))
	if available < MinDiskSpaceBytes {
		result.Status = StatusWarn
		result.Details = "Ingesting the full dumps needs roughly this much for the database"
		return result
	}
	result.Status = StatusPass
	return result
}

func existingParent(path string) string {
	for {
		if _, err := os.Stat(path); err == nil {
			return path
		}
		parent := filepath.Dir(path)
		if parent == path {
			return path
		}
		path = parent
	}
}
