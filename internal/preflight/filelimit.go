package preflight

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// MinFileDescriptors is the floor below which the daemon cannot hold the
// database, the lock, the socket and a handful of clients.
const MinFileDescriptors = 256

// fdsPerFetch is the headroom each concurrent source fetch needs.
const fdsPerFetch = 8

// wantFileDescriptors is the comfortable limit for a given ingest
// concurrency.
func wantFileDescriptors(concurrency int) uint64 {
	return MinFileDescriptors + uint64(max(concurrency, 0))*fdsPerFetch
}

// CheckFileDescriptors compares the soft RLIMIT_NOFILE with what ingestion
// at concurrency needs. Below the floor fails; below the comfortable
// limit warns.
func (c *Checker) CheckFileDescriptors(concurrency int) CheckResult {
	var lim unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &lim); err != nil {
		return CheckResult{
			Name:     "file_descriptors",
			Required: true,
			Status:   StatusFail,
			Message:  "cannot read the open file limit: " + err.Error(),
		}
	}
	return fdResult(lim.Cur, concurrency)
}

func fdResult(soft uint64, concurrency int) CheckResult {
	want := wantFileDescriptors(concurrency)
	r := CheckResult{
		Name:     "file_descriptors",
		Required: true,
		Status:   StatusPass,
		Message:  fmt.Sprintf("%d open files allowed", soft),
	}
	switch {
	case soft < MinFileDescriptors:
		r.Status = StatusFail
		r.Details = fmt.Sprintf("need at least %d; raise it with 'ulimit -n %d'", MinFileDescriptors, want)
	case soft < want:
		r.Status = StatusWarn
		r.Details = fmt.Sprintf("%d concurrent fetches want %d; lower data.concurrency or raise 'ulimit -n'", concurrency, want)
	}
	return r
}
