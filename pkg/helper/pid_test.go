package helper

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPIDPath(t *testing.T) {
	abs := "/tmp/xx.pid"
	assert.Equal(t, abs, GetPIDPath(abs))

	assert.Equal(t, defaultPIDPath, GetPIDPath(""))

	old, _ := os.Getwd()
	t.Cleanup(func() { _ = os.Chdir(old) })
	tmp := t.TempDir()
	_ = os.Chdir(tmp)
	got := GetPIDPath("proc.pid")
	exp, _ := filepath.EvalSymlinks(filepath.Join(tmp, "proc.pid"))
	realGot, _ := filepath.EvalSymlinks(filepath.Dir(got))
	assert.Equal(t, filepath.Dir(exp), realGot)
	assert.Equal(t, "proc.pid", filepath.Base(got))
}

func TestWriteAndRemovePID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run", "harness.pid")
	require.NoError(t, WritePID(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("%d\n", os.Getpid()), string(data))

	require.NoError(t, RemovePID(path))
	// second removal is a no-op
	assert.NoError(t, RemovePID(path))
}
