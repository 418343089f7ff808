//go:build !linux

package timing

import "errors"

// PinAffinity is a no-op stub on platforms without Linux's affinity API.
// Advisory hardening only — see affinity_linux.go.
func PinAffinity(cpu int) error {
	return errors.New("timing: CPU affinity pinning not supported on this platform")
}

// LockPages is a no-op stub on platforms without mlockall.
func LockPages() error {
	return errors.New("timing: page locking not supported on this platform")
}
