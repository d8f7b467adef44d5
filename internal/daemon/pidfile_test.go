package daemon

import (
	"os"
	"path/filepath"
	"strconv"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tberrors "github.com/tunebook/tunebook/internal/errors"
)

// deadPID is above the default pid_max on Linux.
const deadPID = 4194304

func writePID(t *testing.T, path string, pid int) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(pid)), 0o644))
}

func TestPIDFile_WriteAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "daemon.pid")
	pf := NewPIDFile(path)

	require.NoError(t, pf.Write())

	pid, err := pf.Read()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
	assert.True(t, pf.IsRunning())
}

func TestPIDFile_Read_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := NewPIDFile(filepath.Join(dir, "missing.pid")).Read()
	assert.ErrorIs(t, err, ErrPIDFileNotFound)

	bad := filepath.Join(dir, "bad.pid")
	require.NoError(t, os.WriteFile(bad, []byte("not-a-number"), 0o644))
	_, err = NewPIDFile(bad).Read()
	require.Error(t, err)
	assert.Equal(t, tberrors.ErrCodeStoreRead, tberrors.GetCode(err))
}

func TestPIDFile_Read_TrimsNewline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.pid")
	require.NoError(t, os.WriteFile(path, []byte("4242\n"), 0o644))

	pid, err := NewPIDFile(path).Read()
	require.NoError(t, err)
	assert.Equal(t, 4242, pid)
}

func TestPIDFile_Remove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.pid")
	writePID(t, path, deadPID)
	pf := NewPIDFile(path)

	require.NoError(t, pf.Remove())
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// Removing twice is fine
	require.NoError(t, pf.Remove())
}

func TestPIDFile_IsRunning_StalePID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.pid")
	writePID(t, path, deadPID)

	assert.False(t, NewPIDFile(path).IsRunning())
	assert.False(t, NewPIDFile(filepath.Join(t.TempDir(), "none.pid")).IsRunning())
}

func TestPIDFile_Claim(t *testing.T) {
	t.Run("stale file is overwritten", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "daemon.pid")
		writePID(t, path, deadPID)

		require.NoError(t, NewPIDFile(path).Claim())
		pid, err := NewPIDFile(path).Read()
		require.NoError(t, err)
		assert.Equal(t, os.Getpid(), pid)
	})

	t.Run("live process blocks the claim", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "daemon.pid")
		writePID(t, path, os.Getppid())

		err := NewPIDFile(path).Claim()
		require.Error(t, err)
		assert.ErrorIs(t, err, tberrors.ErrStoreLocked)
	})

	t.Run("own pid can be claimed again", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "daemon.pid")
		pf := NewPIDFile(path)
		require.NoError(t, pf.Claim())
		require.NoError(t, pf.Claim())
	})
}

func TestPIDFile_Signal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.pid")
	writePID(t, path, os.Getpid())
	require.NoError(t, NewPIDFile(path).Signal(syscall.Signal(0)))

	writePID(t, path, deadPID)
	require.Error(t, NewPIDFile(path).Signal(syscall.Signal(0)))
}
