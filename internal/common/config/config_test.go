package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveEnv(t *testing.T) {
	t.Setenv("X_A", "va")
	in := []byte("a: ${X_A:da}\nb: ${X_B:db}")
	out := resolveEnv(in)
	assert.Contains(t, string(out), "a: va")
	assert.Contains(t, string(out), "b: db")
}

func TestLoadConfig(t *testing.T) {
	tmp := t.TempDir()
	old, _ := os.Getwd()
	t.Cleanup(func() { _ = os.Chdir(old) })
	_ = os.Chdir(tmp)
	t.Setenv("X_SECRET", "from-env-secret-that-is-long-enough!!")

	yaml := `
server:
  addr: ":8080"
  base_path: "client/"
  external_url: "https://harness.example.com/"
correlator:
  type: redis
  ttl: 45s
  redis:
    addr: 127.0.0.1:6379
session:
  secret_key: ${X_SECRET:unset}
  username: operator1
resource:
  url: http://localhost:4000/resource
  method: get
`
	file := filepath.Join(tmp, "oauthprobe.yaml")
	require.NoError(t, os.WriteFile(file, []byte(yaml), 0o644))

	cfg, path, err := LoadConfig("oauthprobe.yaml")
	require.NoError(t, err)
	realFile, _ := filepath.EvalSymlinks(file)
	realPath, _ := filepath.EvalSymlinks(path)
	assert.Equal(t, realFile, realPath)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "/client", cfg.Server.BasePath)
	assert.Equal(t, "redis", cfg.Correlator.Type)
	assert.Equal(t, 45*time.Second, cfg.Correlator.TTL)
	assert.Equal(t, "oauthprobe:req:", cfg.Correlator.Redis.Prefix)
	assert.Equal(t, "from-env-secret-that-is-long-enough!!", cfg.Session.SecretKey)
	assert.Equal(t, time.Hour, cfg.Session.Duration)
	assert.Equal(t, "GET", cfg.Resource.Method)
	assert.Equal(t, "https://harness.example.com/client/callback", cfg.CallbackURL())
}

func TestLoadConfig_Defaults(t *testing.T) {
	tmp := t.TempDir()
	file := filepath.Join(tmp, "empty.yaml")
	require.NoError(t, os.WriteFile(file, []byte("{}\n"), 0o644))

	cfg, _, err := LoadConfig(file)
	require.NoError(t, err)
	assert.Equal(t, ":3000", cfg.Server.Addr)
	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, "memory", cfg.Correlator.Type)
	assert.Equal(t, 120*time.Second, cfg.Correlator.TTL)
	assert.Equal(t, 30*time.Second, cfg.OAuth.Timeout)
	assert.Equal(t, "POST", cfg.Resource.Method)
	assert.Equal(t, "en", cfg.I18n.DefaultLang)
	assert.Equal(t, "http://localhost:3000/client/callback", cfg.CallbackURL())
}

func TestLoadConfig_Missing(t *testing.T) {
	_, _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestDatabaseConfig_GetDSN(t *testing.T) {
	pg := DatabaseConfig{Type: "postgres", User: "u", Password: "p", Host: "h", Port: 5432, DBName: "d", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@h:5432/d?sslmode=disable", pg.GetDSN())

	my := DatabaseConfig{Type: "mysql", User: "u", Password: "p", Host: "h", Port: 3306, DBName: "d"}
	assert.Contains(t, my.GetDSN(), "u:p@tcp(h:3306)/d?")

	lite := DatabaseConfig{Type: "sqlite", DBName: filepath.Join(t.TempDir(), "sub", "x.db")}
	assert.Equal(t, lite.DBName, lite.GetDSN())
	_, err := os.Stat(filepath.Dir(lite.DBName))
	assert.NoError(t, err)

	assert.Equal(t, "", (&DatabaseConfig{Type: "oracle"}).GetDSN())
}
