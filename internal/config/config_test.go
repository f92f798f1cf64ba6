package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, BackendMemory, cfg.Dispatch.Backend)
	assert.Equal(t, 2, cfg.Assignment.MaxBackups)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "router.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":7000"
  read_timeout: 5s
dispatch:
  backend: redis
  redis_addr: "cache:6379"
assignment:
  max_backups: 4
  base_processing_hours: 1
  hours_per_work_item: 0.25
logging:
  level: debug
`), 0o600))

	t.Setenv("HTTP_ADDR", ":7100")
	t.Setenv("ORG_DIRECTORY", "/etc/router/org.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7100", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 15*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, BackendRedis, cfg.Dispatch.Backend)
	assert.Equal(t, "cache:6379", cfg.Dispatch.RedisAddr)
	assert.Equal(t, 4, cfg.Assignment.MaxBackups)
	assert.Equal(t, 0.25, cfg.Assignment.HoursPerWorkItem)
	assert.Equal(t, "/etc/router/org.yaml", cfg.Directory.Path)

	level, err := cfg.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))

	assert.Error(t, err)
}

func TestValidate_CollectsErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Dispatch.Backend = BackendPostgres
	cfg.Logging.Level = "chatty"
	cfg.Assignment.MaxBackups = -1

	err := cfg.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres_dsn")
	assert.Contains(t, err.Error(), "chatty")
	assert.Contains(t, err.Error(), "max_backups")
}

func TestValidate_UnknownBackend(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ApplyEnv(func(key string) (string, bool) {
		if key == "DISPATCH_BACKEND" {
			return "etcd", true
		}
		return "", false
	})

	assert.ErrorContains(t, cfg.Validate(), `"etcd"`)
}
