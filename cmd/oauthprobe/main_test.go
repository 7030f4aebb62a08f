package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs([]string{})
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestRootCmd_Version(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "oauthprobe version v"))
}

func TestRootCmd_Help(t *testing.T) {
	_, err := execute(t, "--help")
	assert.NoError(t, err)
}

func TestHashPasswordCmd(t *testing.T) {
	out, err := execute(t, "hash-password", "Passw0rdXYZ")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(strings.TrimSpace(out)), []byte("Passw0rdXYZ")))

	_, err = execute(t, "hash-password")
	assert.Error(t, err)
}

func TestTestCmd(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "oauthprobe.yaml")
	require.NoError(t, os.WriteFile(good, []byte(`
session:
  secret_key: this-is-a-very-long-secret-key-for-testing
  username: operator1
  password: Passw0rdXYZ
database:
  type: sqlite
  dbname: `+filepath.Join(dir, "harness.db")+`
`), 0o644))

	out, err := execute(t, "test", "--conf", good)
	require.NoError(t, err)
	assert.Contains(t, out, "is valid")

	weak := filepath.Join(dir, "weak.yaml")
	require.NoError(t, os.WriteFile(weak, []byte("session:\n  secret_key: short\n"), 0o644))
	_, err = execute(t, "test", "--conf", weak)
	assert.Error(t, err)

	badStore := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(badStore, []byte(`
session:
  secret_key: this-is-a-very-long-secret-key-for-testing
  username: operator1
  password: Passw0rdXYZ
correlator:
  type: memcached
`), 0o644))
	_, err = execute(t, "test", "--conf", badStore)
	assert.Error(t, err)
}

func TestStopCmd_NoPIDFile(t *testing.T) {
	_, err := execute(t, "stop", "--pid", filepath.Join(t.TempDir(), "missing.pid"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read PID file")
}
