package helper

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestSignalPIDFile(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "harness.pid")

	t.Run("empty path", func(t *testing.T) {
		err := SignalPIDFile("", unix.SIGTERM)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "PID file path is empty")
	})

	t.Run("missing file", func(t *testing.T) {
		err := SignalPIDFile(filepath.Join(t.TempDir(), "none.pid"), unix.SIGTERM)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read PID file")
	})

	t.Run("garbage", func(t *testing.T) {
		require.NoError(t, os.WriteFile(pidFile, []byte("abc"), 0644))
		_, err := readPID(pidFile)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid PID format")
	})

	t.Run("zero", func(t *testing.T) {
		require.NoError(t, os.WriteFile(pidFile, []byte("0\n"), 0644))
		_, err := readPID(pidFile)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid PID value")
	})

	t.Run("own process", func(t *testing.T) {
		require.NoError(t, os.WriteFile(pidFile, []byte(strconv.Itoa(os.Getpid())), 0644))
		// signal 0 checks the process without delivering anything
		assert.NoError(t, SignalPIDFile(pidFile, 0))
	})
}
