package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "9090"
quiz:
  time_limit: 5m
  admins: ["root"]
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 5*time.Minute, Duration(cfg.Quiz.TimeLimit, 0))
	assert.Equal(t, 10, cfg.Quiz.QuestionLimit)
	assert.Equal(t, BackendMemory, cfg.Storage.Backend)
	assert.Equal(t, []string{"root"}, cfg.Quiz.Admins)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Server.Port, cfg.Server.Port)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "7000")
	t.Setenv("STORAGE_BACKEND", "postgres")
	t.Setenv("POSTGRES_URL", "postgres://localhost/quiz")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "7000", cfg.Server.Port)
	assert.Equal(t, BackendPostgres, cfg.Storage.Backend)
}

func TestValidateBackends(t *testing.T) {
	cfg := Default()
	cfg.Storage.Backend = BackendMongo
	assert.Error(t, cfg.Validate())

	cfg.Mongo.URI = "mongodb://localhost:27017"
	assert.NoError(t, cfg.Validate())

	cfg.Storage.Backend = "sqlite"
	assert.Error(t, cfg.Validate())
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("REDIS_ADDR=cache:6379\n"), 0o600))
	t.Setenv("REDIS_ADDR", "")
	require.NoError(t, os.Unsetenv("REDIS_ADDR"))

	require.NoError(t, LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env")))
	assert.Equal(t, "cache:6379", os.Getenv("REDIS_ADDR"))
}

func TestDuration(t *testing.T) {
	assert.Equal(t, time.Second, Duration("", time.Second))
	assert.Equal(t, time.Second, Duration("soon", time.Second))
	assert.Equal(t, 250*time.Millisecond, Duration("250ms", time.Second))
}
