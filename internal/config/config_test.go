package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func missingEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), ".env")
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(missingEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, "8082", cfg.WorkerPort)
	assert.Equal(t, 5, cfg.Prefetch)
	assert.Equal(t, 5, cfg.BreakerFailureThreshold)
	assert.Equal(t, 60*time.Second, cfg.BreakerWindow)
	assert.Equal(t, 10*time.Second, cfg.BreakerRetryDelay)
	assert.Equal(t, "exponential", cfg.RetryBackoff)
	assert.Equal(t, time.Second, cfg.RetryInitialDelay)
	assert.Equal(t, 30*time.Second, cfg.RetryMaxDelay)
	assert.Equal(t, 3, cfg.DefaultMaxRetries)
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAIModel)
	assert.Equal(t, []string{"refine_text", "fix_format"}, cfg.FinalJobTypes)
	assert.False(t, cfg.LLMEnabled())
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PREFETCH", "20")
	t.Setenv("BREAKER_WINDOW", "2m")
	t.Setenv("RETRY_BACKOFF", "FIXED")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("FINAL_JOB_TYPES", " fix_format , ,solve_tasks")

	cfg, err := load(missingEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.Prefetch)
	assert.Equal(t, 2*time.Minute, cfg.BreakerWindow)
	assert.Equal(t, "fixed", cfg.RetryBackoff)
	assert.True(t, cfg.LLMEnabled())
	assert.Equal(t, []string{"fix_format", "solve_tasks"}, cfg.FinalJobTypes)
}

func TestLoad_FromEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("WORKER_PORT=9100\nOPENAI_MODEL=gpt-4.1\n"), 0o600))

	cfg, err := load(path)
	require.NoError(t, err)
	assert.Equal(t, "9100", cfg.WorkerPort)
	assert.Equal(t, "gpt-4.1", cfg.OpenAIModel)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("PREFETCH", "0")
	t.Setenv("RETRY_BACKOFF", "linear")

	_, err := load(missingEnvFile(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PREFETCH")
	assert.Contains(t, err.Error(), "RETRY_BACKOFF")
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		return Config{
			Prefetch:                1,
			BreakerFailureThreshold: 1,
			BreakerWindow:           time.Second,
			BreakerRetryDelay:       time.Second,
			RetryBackoff:            "fixed",
			RetryInitialDelay:       time.Second,
			RetryMaxDelay:           time.Second,
			LLMTimeout:              time.Second,
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "zero threshold", mutate: func(c *Config) { c.BreakerFailureThreshold = 0 }, wantErr: true},
		{name: "zero window", mutate: func(c *Config) { c.BreakerWindow = 0 }, wantErr: true},
		{name: "max below initial", mutate: func(c *Config) { c.RetryMaxDelay = time.Millisecond }, wantErr: true},
		{name: "negative retries", mutate: func(c *Config) { c.DefaultMaxRetries = -1 }, wantErr: true},
		{name: "zero llm timeout", mutate: func(c *Config) { c.LLMTimeout = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
