package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func TestLoadConfig_Defaults(t *testing.T) {
	resetViper(t)
	t.Setenv("PORT", "")
	t.Setenv("PLATFORM_FEE_BPS", "")
	t.Setenv("CHECKOUT_TTL_MINUTES", "")
	t.Setenv("STELLAR_NETWORK", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8085", cfg.ServerPort)
	assert.Equal(t, int64(500), cfg.PlatformFeeBps)
	assert.Equal(t, 15*time.Minute, cfg.CheckoutTTL())
	assert.Equal(t, NetworkTestnet, cfg.StellarNetwork)
	assert.Equal(t, "https://stellar.expert/explorer", cfg.ExplorerBaseURL)
	assert.Equal(t, 30*24*time.Hour, cfg.CheckoutRetention())
	assert.Equal(t, "@daily", cfg.CheckoutRetentionSchedule)
}

func TestLoadConfig_PortOverridesServerPort(t *testing.T) {
	resetViper(t)
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("PORT", "7000")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "7000", cfg.ServerPort)
}

func TestLoadConfig_WalletAuthSettings(t *testing.T) {
	resetViper(t)
	t.Setenv("JWKS_URL", "https://auth.example.com/.well-known/jwks.json")
	t.Setenv("WALLET_AUTH_AUDIENCE", "myfans-web")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "https://auth.example.com/.well-known/jwks.json", cfg.JWKSURL)
	assert.Equal(t, "myfans-web", cfg.WalletAuthAudience)
}

func TestLoadConfig_ClampsPlatformFee(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want int64
	}{
		{name: "negative coerced to zero", raw: "-5", want: 0},
		{name: "capped at full amount", raw: "25000", want: 10000},
		{name: "kept when in range", raw: "250", want: 250},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetViper(t)
			t.Setenv("PLATFORM_FEE_BPS", tt.raw)
			t.Setenv("STELLAR_NETWORK", "")

			cfg, err := LoadConfig()
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.PlatformFeeBps)
		})
	}
}

func TestLoadConfig_RejectsUnknownNetwork(t *testing.T) {
	resetViper(t)
	t.Setenv("STELLAR_NETWORK", "futurenet")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STELLAR_NETWORK")
}

func TestLoadConfig_NormalizesExplorerURLAndNetwork(t *testing.T) {
	resetViper(t)
	t.Setenv("STELLAR_NETWORK", " PUBLIC ")
	t.Setenv("EXPLORER_BASE_URL", "https://explorer.example.com/")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, NetworkPublic, cfg.StellarNetwork)
	assert.Equal(t, "https://explorer.example.com", cfg.ExplorerBaseURL)
}
