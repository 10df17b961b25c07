package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("MINIO_ACCESS_KEY_ID", "minio")
	t.Setenv("MINIO_SECRET_ACCESS_KEY", "minio-secret")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.API.Port)
	assert.Equal(t, time.Minute, cfg.API.PublicCacheTTL)
	assert.Equal(t, "portfolios", cfg.MinIO.Bucket)
	assert.Equal(t, 20, cfg.Editor.HistoryLimit)
	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTokenTTL)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
	assert.Equal(t, 10, cfg.Worker.Concurrency)
	assert.Equal(t, 9091, cfg.Worker.MetricsPort)
}

func TestLoad_EnvOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("API_PORT", "9090")
	t.Setenv("EDITOR_HISTORY_LIMIT", "50")
	t.Setenv("PUBLIC_CACHE_TTL", "30s")
	t.Setenv("WS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.API.Port)
	assert.Equal(t, 50, cfg.Editor.HistoryLimit)
	assert.Equal(t, 30*time.Second, cfg.API.PublicCacheTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.API.WsAllowedOrigins)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	cases := map[string]map[string]string{
		"missing minio key": {"MINIO_ACCESS_KEY_ID": ""},
		"history too small": {"EDITOR_HISTORY_LIMIT": "1"},
		"bad port":          {"API_PORT": "0"},
		"no workers":        {"WORKER_CONCURRENCY": "0"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			setRequiredEnv(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "n", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=n sslmode=disable", d.DSN())
}
