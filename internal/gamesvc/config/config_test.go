package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "secret")
	t.Setenv("ADMIN_PASSWORD_HASH", "$2a$10$hash")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.VotingThreshold)
	assert.Equal(t, 24*time.Hour, cfg.ClaimWindow)
	assert.Equal(t, RuleGranular, cfg.RoundRule)
	assert.Equal(t, FFABypass, cfg.FFARoundRule)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "high", cfg.TranscodeQuality)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.CORSOrigins)
}

func TestLoadRequiresSecrets(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "")
	t.Setenv("ADMIN_PASSWORD_HASH", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := Config{VotingThreshold: 3, ClaimWindow: time.Hour, RoundRule: RuleGranular, FFARoundRule: FFABypass, RateLimit: 10, MaxUploadMB: 1}
	require.NoError(t, base.Validate())

	bad := base
	bad.VotingThreshold = 0
	assert.Error(t, bad.Validate())

	bad = base
	bad.RoundRule = "coinflip"
	assert.Error(t, bad.Validate())

	bad = base
	bad.FFARoundRule = "sometimes"
	assert.Error(t, bad.Validate())

	bad = base
	bad.ClaimWindow = 0
	assert.Error(t, bad.Validate())
}
