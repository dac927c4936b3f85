package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateDefaultsHaveNoWarnings(t *testing.T) {
	warnings, err := Validate(Default())
	require.NoError(t, err)
	require.Empty(t, warnings)
}

func TestValidateRejectsInvalidCoreFields(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "empty base url", mutate: func(c *Config) { c.Backend.BaseURL = "" }, wantErr: "backend.base_url must not be empty"},
		{name: "relative base url", mutate: func(c *Config) { c.Backend.BaseURL = "api/v1" }, wantErr: "backend.base_url must be an absolute URL"},
		{name: "bad health path", mutate: func(c *Config) { c.Backend.HealthPath = "docs" }, wantErr: "must start"},
		{name: "bad grpc health", mutate: func(c *Config) { c.Backend.GRPCHealth = "nope" }, wantErr: "backend.grpc_health must be host:port"},
		{name: "zero request timeout", mutate: func(c *Config) { c.Backend.RequestTimeoutMS = 0 }, wantErr: "backend.request_timeout_ms must be > 0"},
		{name: "zero question timeout", mutate: func(c *Config) { c.Questions.TimeoutMS = 0 }, wantErr: "questions.timeout_ms"},
		{name: "tiny timeslice", mutate: func(c *Config) { c.Media.TimesliceMS = 10 }, wantErr: "media.timeslice_ms must be >= 100"},
		{name: "empty format entry", mutate: func(c *Config) { c.Media.Formats = []string{""} }, wantErr: "media.formats[0]"},
		{name: "too many attempts", mutate: func(c *Config) { c.Transcription.MaxAttempts = 9 }, wantErr: "transcription.max_attempts must be <= 5"},
		{name: "zero attempts", mutate: func(c *Config) { c.Transcription.MaxAttempts = 0 }, wantErr: "transcription.max_attempts must be >= 1"},
		{name: "unknown handoff backend", mutate: func(c *Config) { c.Handoff.Backend = "s3" }, wantErr: "handoff.backend must be one of: file, redis"},
		{name: "redis without addr", mutate: func(c *Config) { c.Handoff.Backend = "redis" }, wantErr: "handoff.redis_addr"},
		{name: "empty handoff key", mutate: func(c *Config) { c.Handoff.Key = "" }, wantErr: "handoff.key"},
		{name: "negative ttl", mutate: func(c *Config) { c.Handoff.TTLSeconds = -1 }, wantErr: "handoff.ttl_seconds"},
		{name: "negative cue timeout", mutate: func(c *Config) { c.Cue.ErrorTimeoutMS = -1 }, wantErr: "cue.error_timeout_ms"},
		{name: "cue without app name", mutate: func(c *Config) { c.Cue.DesktopAppName = "" }, wantErr: "cue.desktop_app_name"},
		{name: "empty clipboard argv", mutate: func(c *Config) { c.Clipboard.Argv = nil }, wantErr: "clipboard_cmd"},
		{name: "bad log level", mutate: func(c *Config) { c.Log.Level = "trace" }, wantErr: "log.level"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)

			_, err := Validate(cfg)
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestValidateWarnsOnUnknownFormatsAndVideo(t *testing.T) {
	cfg := Default()
	cfg.Media.Formats = []string{"audio/wav", "audio/flac"}
	cfg.Media.Video = true

	warnings, err := Validate(cfg)
	require.NoError(t, err)
	require.Len(t, warnings, 2)
	require.Contains(t, warnings[0].Message, "audio/flac")
	require.Contains(t, warnings[1].Message, "audio only")
}

func TestValidateAcceptsRedisHandoff(t *testing.T) {
	cfg := Default()
	cfg.Handoff.Backend = "redis"
	cfg.Handoff.RedisAddr = "127.0.0.1:6379"

	_, err := Validate(cfg)
	require.NoError(t, err)
}

func TestConfigKey(t *testing.T) {
	require.Equal(t, "backend.base_url", configKey("Config.Backend.BaseURL"))
	require.Equal(t, "backend.grpc_health", configKey("Config.Backend.GRPCHealth"))
	require.Equal(t, "backend.request_timeout_ms", configKey("Config.Backend.RequestTimeoutMS"))
	require.Equal(t, "handoff.ttl_seconds", configKey("Config.Handoff.TTLSeconds"))
	require.Equal(t, "handoff.redis_db", configKey("Config.Handoff.RedisDB"))
}
