package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("FRAMESCHED_DB", "")
	t.Setenv("FRAMESCHED_OTEL_ENDPOINT", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Zero(t, cfg.FrameRate)
	assert.Zero(t, cfg.FixedRate)
	assert.Zero(t, cfg.SlowInterval)
	assert.Empty(t, cfg.DB)
	assert.False(t, cfg.Verbose)
	assert.True(t, cfg.OTel.Enabled)
	assert.False(t, cfg.OTel.TracingOn())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("FRAMESCHED_DB", "/tmp/runs.db")
	t.Setenv("FRAMESCHED_FRAME_RATE", "30")
	t.Setenv("FRAMESCHED_VERBOSE", "true")
	t.Setenv("FRAMESCHED_OTEL_ENDPOINT", "http://localhost:4318")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/runs.db", cfg.DB)
	assert.Equal(t, 30.0, cfg.FrameRate)
	assert.True(t, cfg.Verbose)
	assert.True(t, cfg.OTel.TracingOn())
}

func TestLoad_OTelDisabled(t *testing.T) {
	t.Setenv("FRAMESCHED_OTEL_ENDPOINT", "http://localhost:4318")
	t.Setenv("FRAMESCHED_OTEL_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.OTel.TracingOn())
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"unparsable rate", "FRAMESCHED_FRAME_RATE", "fast"},
		{"negative rate", "FRAMESCHED_FRAME_RATE", "-60"},
		{"negative fixed rate", "FRAMESCHED_FIXED_RATE", "-1"},
		{"negative slow interval", "FRAMESCHED_SLOW_INTERVAL", "-0.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestParseEnv_Prefix(t *testing.T) {
	t.Setenv("FRAMESCHED_FRAME_RATE", "nope")

	var cfg Config
	err := ParseEnv(&cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env:")
}
