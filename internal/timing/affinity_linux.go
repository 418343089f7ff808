//go:build linux

package timing

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// PinAffinity pins the calling OS thread to the given CPU core. Advisory:
// failures are logged by the caller and never treated as fatal, so
// callers should ignore the returned error beyond logging it.
func PinAffinity(cpu int) error {
	runtime.LockOSThread()
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	return unix.SchedSetaffinity(0, &set)
}

// LockPages locks the process's current and future memory pages into RAM,
// preventing paging-induced latency spikes on the hot path. Best effort.
func LockPages() error {
	return unix.Mlockall(unix.MCL_CURRENT | unix.MCL_FUTURE)
}
