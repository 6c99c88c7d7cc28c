package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "https://www.reddit.com", cfg.Reddit.BaseURL)
	assert.NotEmpty(t, cfg.Reddit.UserAgent)
	assert.Equal(t, 25, cfg.Reddit.PageSize)
	assert.Equal(t, 2*time.Second, cfg.RateLimit.MinInterval)
	assert.Equal(t, 2*time.Second, cfg.RateLimit.Floor)
	assert.Equal(t, 4, cfg.Download.Workers)
	assert.Equal(t, ".list", cfg.Output.ListExtension)
	assert.Equal(t, 255, cfg.Output.MaxFilenameLength)
	assert.True(t, cfg.Output.PerSubjectFolders)
	assert.Equal(t, 1, cfg.Retry.MaxAttempts)

	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("REDDITDL_USER_AGENT", "test-agent")
	t.Setenv("REDDITDL_OUTPUT_DIR", "/tmp/test-downloads")
	t.Setenv("REDDITDL_WORKERS", "7")
	t.Setenv("REDDITDL_MIN_INTERVAL", "3s")
	t.Setenv("REDDITDL_SHUFFLE", "all")
	t.Setenv("REDDITDL_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "test-agent", cfg.Reddit.UserAgent)
	assert.Equal(t, "/tmp/test-downloads", cfg.Output.BaseDirectory)
	assert.Equal(t, 7, cfg.Download.Workers)
	assert.Equal(t, 3*time.Second, cfg.RateLimit.MinInterval)
	assert.Equal(t, "all", cfg.Schedule.Shuffle)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromEnvInvalidValues(t *testing.T) {
	t.Setenv("REDDITDL_WORKERS", "many")
	t.Setenv("REDDITDL_MIN_INTERVAL", "soon")

	cfg := DefaultConfig()
	err := cfg.LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REDDITDL_WORKERS")
	assert.Contains(t, err.Error(), "REDDITDL_MIN_INTERVAL")
	assert.Equal(t, 4, cfg.Download.Workers)
}

func TestValidate(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(c *Config) {}},
		{name: "zero workers", mutate: func(c *Config) { c.Download.Workers = 0 }, wantErr: "workers must be positive"},
		{name: "bad regex", mutate: func(c *Config) { c.Filter.TitlePattern = "(" }, wantErr: "invalid title pattern"},
		{name: "destination is a file", mutate: func(c *Config) { c.Output.BaseDirectory = file }, wantErr: "is not a directory"},
		{name: "list extension without dot", mutate: func(c *Config) { c.Output.ListExtension = "list" }, wantErr: "list extension"},
		{name: "invalid log level", mutate: func(c *Config) { c.Logging.Level = "loud" }, wantErr: "invalid log level"},
		{name: "zero retry attempts", mutate: func(c *Config) { c.Retry.MaxAttempts = 0 }, wantErr: "retry max attempts"},
		{name: "zero timeout", mutate: func(c *Config) { c.Reddit.RequestTimeout = 0 }, wantErr: "request timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMergeCommandLineFlags(t *testing.T) {
	cfg := DefaultConfig()

	cfg.MergeCommandLineFlags(map[string]interface{}{
		"dest":      "/flag/output",
		"workers":   2,
		"sfw":       true,
		"regex":     "^cat",
		"num":       10,
		"update":    true,
		"last":      "abc123",
		"interval":  5 * time.Second,
		"log-level": "error",
	})

	assert.Equal(t, "/flag/output", cfg.Output.BaseDirectory)
	assert.Equal(t, 2, cfg.Download.Workers)
	assert.True(t, cfg.Filter.SFWOnly)
	assert.False(t, cfg.Filter.NSFWOnly)
	assert.Equal(t, "^cat", cfg.Filter.TitlePattern)
	assert.Equal(t, 10, cfg.Download.MaxDownloads)
	assert.True(t, cfg.Download.StopOnExisting)
	assert.Equal(t, "abc123", cfg.Download.StartCursor)
	assert.Equal(t, 5*time.Second, cfg.RateLimit.MinInterval)
	assert.Equal(t, "error", cfg.Logging.Level)
}

func TestSaveAndLoadFromFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Download.Workers = 8
	cfg.Filter.MinScore = 100
	cfg.Schedule.Shuffle = "subjects,lists"
	require.NoError(t, cfg.Save(configPath))

	loaded := DefaultConfig()
	require.NoError(t, loaded.LoadFromFile(configPath))

	assert.Equal(t, 8, loaded.Download.Workers)
	assert.Equal(t, 100, loaded.Filter.MinScore)
	assert.Equal(t, "subjects,lists", loaded.Schedule.Shuffle)
	assert.Equal(t, cfg.RateLimit.MinInterval, loaded.RateLimit.MinInterval)
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	yamlData := []byte("download:\n  workers: 3\nfilter:\n  min_score: 50\noutput:\n  base_directory: " + dir + "\n")
	require.NoError(t, os.WriteFile(configPath, yamlData, 0644))

	t.Setenv("REDDITDL_WORKERS", "5")

	cfg, err := Load(configPath, map[string]interface{}{"workers": 9})
	require.NoError(t, err)

	assert.Equal(t, 9, cfg.Download.Workers)
	assert.Equal(t, 50, cfg.Filter.MinScore)
	assert.Equal(t, dir, cfg.Output.BaseDirectory)

	cfg, err = Load(configPath, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Download.Workers)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("download:\n  workers: -1\n"), 0644))

	_, err := Load(configPath, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration validation failed")
}
