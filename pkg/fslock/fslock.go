package fslock

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// WithShared runs fn while holding a shared advisory lock on f. Acquisition
// blocks until the lock is available; the lock is released on every exit
// path, including a panic inside fn.
func WithShared(f *os.File, fn func() error) error {
	return with(f, unix.LOCK_SH, "shared", fn)
}

// WithExclusive runs fn while holding an exclusive advisory lock on f.
func WithExclusive(f *os.File, fn func() error) error {
	return with(f, unix.LOCK_EX, "exclusive", fn)
}

func with(f *os.File, how int, kind string, fn func() error) error {
	fd := int(f.Fd())
	if err := unix.Flock(fd, how); err != nil {
		return fmt.Errorf("failed to acquire %s lock on %s: %w", kind, f.Name(), err)
	}
	defer unix.Flock(fd, unix.LOCK_UN)

	return fn()
}
