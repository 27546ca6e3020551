package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calixo/internal/challenge"
)

func validConfig() Config {
	return Config{
		Auth: AuthConfig{JWTSecret: "secret"},
		Challenges: ChallengesConfig{
			DailyLimitFree:    1,
			DailyLimitPremium: 3,
			MaxFocusMinutes:   challenge.MaxFocusMinutes,
		},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"missing secret", func(c *Config) { c.Auth.JWTSecret = "" }, "jwt_secret"},
		{"negative limit", func(c *Config) { c.Challenges.DailyLimitFree = -1 }, "daily limits"},
		{"zero focus bound", func(c *Config) { c.Challenges.MaxFocusMinutes = 0 }, "max_focus_minutes"},
		{"shorter focus bound", func(c *Config) { c.Challenges.MaxFocusMinutes = 60 }, ""},
		{"focus bound above 23h", func(c *Config) { c.Challenges.MaxFocusMinutes = challenge.MaxFocusMinutes + 1 }, "max_focus_minutes"},
		{"focus bound far above 23h", func(c *Config) { c.Challenges.MaxFocusMinutes = 2000 }, "max_focus_minutes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadRejectsOversizedFocusBound(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "secret")
	t.Setenv("CHALLENGES_MAX_FOCUS_MINUTES", "2000")

	_, err := Load(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_focus_minutes")
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "secret")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, challenge.MaxFocusMinutes, cfg.Challenges.MaxFocusMinutes)
	assert.Equal(t, 1, cfg.Challenges.DailyLimitFree)
	assert.Equal(t, 3, cfg.Challenges.DailyLimitPremium)
}
