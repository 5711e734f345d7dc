package fslock

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golang.org/x/sys/unix"
)

func openTemp(t *testing.T) *os.File {
	t.Helper()
	f, err := os.Create(filepath.Join(t.TempDir(), "lockfile"))
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func TestWithExclusiveHoldsLock(t *testing.T) {
	f := openTemp(t)

	err := WithExclusive(f, func() error {
		// A second handle must not be able to grab the lock.
		other, err := os.Open(f.Name())
		require.NoError(t, err)
		defer other.Close()

		lockErr := unix.Flock(int(other.Fd()), unix.LOCK_SH|unix.LOCK_NB)
		assert.ErrorIs(t, lockErr, unix.EWOULDBLOCK)
		return nil
	})
	require.NoError(t, err)

	// Released after fn returns.
	other, err := os.Open(f.Name())
	require.NoError(t, err)
	defer other.Close()
	assert.NoError(t, unix.Flock(int(other.Fd()), unix.LOCK_EX|unix.LOCK_NB))
}

func TestSharedLocksCoexist(t *testing.T) {
	f := openTemp(t)

	err := WithShared(f, func() error {
		other, err := os.Open(f.Name())
		require.NoError(t, err)
		defer other.Close()
		return unix.Flock(int(other.Fd()), unix.LOCK_SH|unix.LOCK_NB)
	})
	assert.NoError(t, err)
}

func TestErrorPropagatesAndReleases(t *testing.T) {
	f := openTemp(t)
	boom := errors.New("boom")

	err := WithExclusive(f, func() error { return boom })
	assert.ErrorIs(t, err, boom)

	other, err := os.Open(f.Name())
	require.NoError(t, err)
	defer other.Close()
	assert.NoError(t, unix.Flock(int(other.Fd()), unix.LOCK_EX|unix.LOCK_NB))
}
