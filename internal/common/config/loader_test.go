// internal/common/config/loader_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const minimalConfig = `
database:
  postgres:
    host: localhost
    database: devmatch
    user: devmatch
`

func TestLoadFromFile_AppliesDefaults(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "devmatch-workers", cfg.App.Name)
	assert.Equal(t, 5, cfg.Analysis.MaxWorkUnits)
	assert.Equal(t, 60000, cfg.Analysis.UnitTimeout)
	assert.Equal(t, "memory", cfg.JobStore.Backend)
	assert.Equal(t, 24, cfg.JobStore.RetentionHours)
	assert.Equal(t, "@every 1h", cfg.JobStore.EvictSchedule)
	assert.Equal(t, 20, cfg.Feed.DefaultLimit)
	assert.Equal(t, 168, cfg.Feed.FreshWindowHours)
	assert.Equal(t, "analysis.finished", cfg.Notifications.Redis.Channel)
	assert.Equal(t, ":8080", cfg.Metrics.Address)
	assert.Equal(t, "disable", cfg.Database.Postgres.SSLMode)
	assert.Equal(t, "https://api.github.com", cfg.GitHub.APIURL)
	assert.Equal(t, 10000, cfg.GitHub.Timeout)
}

func TestLoadFromFile_GitHubTokenFromEnv(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "ghp_test")

	cfg, err := LoadFromFile(writeConfig(t, minimalConfig))
	require.NoError(t, err)
	assert.Equal(t, "ghp_test", cfg.GitHub.Token)
}

func TestLoadFromFile_ExpandsEnvPlaceholders(t *testing.T) {
	t.Setenv("TEST_DB_HOST", "db.internal")

	cfg, err := LoadFromFile(writeConfig(t, `
database:
  postgres:
    host: ${TEST_DB_HOST}
    database: devmatch
    user: devmatch
`))
	require.NoError(t, err)
	assert.Equal(t, "db.internal", cfg.Database.Postgres.Host)
}

func TestLoadFromFile_Validation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "missing postgres host",
			body:    "database:\n  postgres:\n    database: x\n    user: y\n",
			wantErr: "database.postgres.host",
		},
		{
			name:    "redis job store without redis address",
			body:    minimalConfig + "jobstore:\n  backend: redis\n",
			wantErr: "database.redis.address",
		},
		{
			name:    "unknown job store backend",
			body:    minimalConfig + "jobstore:\n  backend: etcd\n",
			wantErr: "jobstore.backend",
		},
		{
			name:    "camunda enabled without broker",
			body:    minimalConfig + "camunda:\n  enabled: true\n",
			wantErr: "camunda.broker_address",
		},
		{
			name:    "sns enabled without topic",
			body:    minimalConfig + "notifications:\n  sns:\n    enabled: true\n",
			wantErr: "topic_arn",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGetWorkerConfig_FallsBackToDefaults(t *testing.T) {
	cfg := &Config{Workers: map[string]WorkerConfig{
		"build-feed": {Enabled: false, MaxJobsActive: 2, Timeout: 1000},
	}}

	assert.False(t, IsWorkerEnabled(cfg, "build-feed"))
	assert.True(t, IsWorkerEnabled(cfg, "rescore-seeker"))

	def := GetWorkerConfig(cfg, "rescore-seeker")
	assert.True(t, def.Enabled)
	assert.Equal(t, 5, def.MaxJobsActive)
	assert.Equal(t, 30*time.Second, GetDuration(def.Timeout))
}
