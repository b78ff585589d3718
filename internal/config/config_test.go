package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadJSONDefaults(t *testing.T) {
	path := writeConfig(t, "config.json", `{
		"port": 8080,
		"database": {"driver": "sqlite", "path": "/tmp/readweb.db"}
	}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, "info", cfg.LogConfig.Level)
	require.Equal(t, 30, cfg.AI.Timeout)
	require.Equal(t, 500, cfg.AI.MaxCommentChars)
	require.Equal(t, 50, cfg.AI.BatchSize)
	require.Equal(t, LeaseLocal, cfg.Lease.Type)
	require.Equal(t, 120, cfg.Lease.TTLSeconds)
	require.Equal(t, 20, cfg.Summary.WarmBatch)
	require.Empty(t, cfg.Summary.WarmCron)
}

func TestLoadYAMLWithEnvExpansion(t *testing.T) {
	t.Setenv("READWEB_TEST_KEY", "sk-test")
	path := writeConfig(t, "config.yaml", `
port: 9000
log_config:
  level: debug
database:
  dsn: postgres://u:p@localhost/readweb?sslmode=disable
ai:
  providers:
    - provider: openai
      model: gpt-4o-mini
      data:
        api_key: ${READWEB_TEST_KEY}
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9000, cfg.Port)
	require.Equal(t, "debug", cfg.LogConfig.Level)
	require.Equal(t, DriverPostgres, cfg.Database.Driver)
	require.Len(t, cfg.AI.Providers, 1)
	require.Equal(t, "openai", cfg.AI.Providers[0].Name)
	data, ok := cfg.AI.Providers[0].Data.(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, "sk-test", data["api_key"])
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing port",
			content: `{"database": {"driver": "sqlite", "path": "x.db"}}`,
			wantErr: "port is required",
		},
		{
			name:    "unknown driver",
			content: `{"port": 1, "database": {"driver": "mysql"}}`,
			wantErr: "database.driver must be postgres or sqlite",
		},
		{
			name:    "redis lease without url",
			content: `{"port": 1, "database": {"driver": "sqlite", "path": "x.db"}, "lease": {"type": "redis"}}`,
			wantErr: "lease.redis_url is required",
		},
		{
			name:    "provider without model",
			content: `{"port": 1, "database": {"driver": "sqlite", "path": "x.db"}, "ai": {"providers": [{"provider": "gemini"}]}}`,
			wantErr: "ai.providers[0].model is required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, "config.json", tt.content))
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	path := writeConfig(t, ".env", "READWEB_ENV_FILE_KEY=from-file\n")
	t.Setenv("READWEB_ENV_FILE_KEY", "")
	require.NoError(t, os.Unsetenv("READWEB_ENV_FILE_KEY"))
	require.NoError(t, LoadEnvFile(path))
	require.Equal(t, "from-file", os.Getenv("READWEB_ENV_FILE_KEY"))
	require.NoError(t, LoadEnvFile(""))
}
