package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/weather-chat/backend/internal/model/weather"
)

var relayEnvKeys = []string{
	"PORT", "RELAY_CONFIG", "RELAY_DEBUG",
	"LLM_PROVIDER", "LLM_TEMPERATURE", "LLM_MAX_TOKENS",
	"OPENAI_API_KEY", "OPENAI_MODEL", "OPENAI_BASE_URL",
	"ARK_API_KEY", "ARK_ACCESS_KEY", "ARK_SECRET_KEY", "ARK_MODEL", "ARK_BASE_URL", "ARK_REGION",
	"WEATHERAPI_KEY", "WEATHER_BASE_URL", "WEATHER_POLICY", "GEO_BASE_URL",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range relayEnvKeys {
		t.Setenv(key, "")
	}
}

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("WEATHERAPI_KEY", "weather-test")
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	setRequired(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:5000", cfg.Server.Addr)
	assert.True(t, cfg.Debug)
	assert.Equal(t, ProviderOpenAI, cfg.AI.Provider)
	assert.Equal(t, "gpt-3.5-turbo", cfg.AI.Model)
	assert.Equal(t, "sk-test", cfg.AI.APIKey)
	assert.Equal(t, "weather-test", cfg.Weather.APIKey)
	assert.Equal(t, "http://api.weatherapi.com/v1", cfg.Weather.BaseURL)
	assert.Equal(t, weather.KeywordTriggered, cfg.Weather.Policy)
	assert.Equal(t, "https://ipapi.co", cfg.Geo.BaseURL)
}

func TestLoadMissingCredentials(t *testing.T) {
	tests := []struct {
		name    string
		openai  string
		weather string
		missing []string
	}{
		{"missing openai key", "", "weather-test", []string{"OPENAI_API_KEY"}},
		{"missing weather key", "sk-test", "", []string{"WEATHERAPI_KEY"}},
		{"missing both", "", "", []string{"OPENAI_API_KEY", "WEATHERAPI_KEY"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("OPENAI_API_KEY", tc.openai)
			t.Setenv("WEATHERAPI_KEY", tc.weather)

			cfg, err := Load("")
			require.ErrorIs(t, err, ErrMissingCredentials)
			assert.Nil(t, cfg)
			for _, key := range tc.missing {
				assert.Contains(t, err.Error(), key)
			}
		})
	}
}

func TestLoadServerAddr(t *testing.T) {
	tests := []struct {
		name     string
		port     string
		expected string
	}{
		{"bare port binds all interfaces", "8081", "0.0.0.0:8081"},
		{"colon form kept", ":9000", ":9000"},
		{"host and port kept", "127.0.0.1:7000", "127.0.0.1:7000"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			setRequired(t)
			t.Setenv("PORT", tc.port)

			cfg, err := Load("")
			require.NoError(t, err)
			assert.Equal(t, tc.expected, cfg.Server.Addr)
		})
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"port with spaces", "PORT", "80 80"},
		{"unknown policy", "WEATHER_POLICY", "sometimes"},
		{"unknown provider", "LLM_PROVIDER", "mystery"},
		{"bad debug flag", "RELAY_DEBUG", "verbose"},
		{"bad temperature", "LLM_TEMPERATURE", "warm"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			setRequired(t)
			t.Setenv(tc.key, tc.value)

			_, err := Load("")
			assert.Error(t, err)
		})
	}
}

func TestLoadArkProvider(t *testing.T) {
	clearEnv(t)
	t.Setenv("LLM_PROVIDER", "ark")
	t.Setenv("WEATHERAPI_KEY", "weather-test")

	_, err := Load("")
	require.ErrorIs(t, err, ErrMissingCredentials)

	t.Setenv("ARK_ACCESS_KEY", "ak")
	t.Setenv("ARK_SECRET_KEY", "sk")
	t.Setenv("ARK_MODEL", "doubao-pro")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ProviderArk, cfg.AI.Provider)
	assert.Equal(t, "cn-beijing", cfg.AI.Region)
	assert.True(t, cfg.AI.Enabled())
}

func TestLoadFileWithEnvOverride(t *testing.T) {
	clearEnv(t)
	setRequired(t)

	path := filepath.Join(t.TempDir(), "relay.toml")
	content := `
debug = false

[server]
addr = "127.0.0.1:6000"

[ai]
model = "gpt-4o-mini"
temperature = 0.2

[weather]
policy = "always"
base_url = "http://weather.local/v1/"

[geo]
base_url = "http://geo.local"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.Debug)
	assert.Equal(t, "127.0.0.1:6000", cfg.Server.Addr)
	assert.Equal(t, "gpt-4o-mini", cfg.AI.Model)
	require.NotNil(t, cfg.AI.Temperature)
	assert.InDelta(t, 0.2, *cfg.AI.Temperature, 1e-9)
	assert.Equal(t, weather.AlwaysOn, cfg.Weather.Policy)
	assert.Equal(t, "http://weather.local/v1", cfg.Weather.BaseURL)
	assert.Equal(t, "http://geo.local", cfg.Geo.BaseURL)

	t.Setenv("WEATHER_POLICY", "keyword")
	t.Setenv("OPENAI_MODEL", "gpt-3.5-turbo")
	t.Setenv("RELAY_CONFIG", path)

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, weather.KeywordTriggered, cfg.Weather.Policy)
	assert.Equal(t, "gpt-3.5-turbo", cfg.AI.Model)
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	setRequired(t)

	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestGetEnvOrDefault(t *testing.T) {
	t.Setenv("RELAY_TEST_VALUE", "  hello ")
	assert.Equal(t, "hello", getEnvOrDefault("RELAY_TEST_VALUE", "default"))

	t.Setenv("RELAY_TEST_VALUE", "")
	assert.Equal(t, "default", getEnvOrDefault("RELAY_TEST_VALUE", "default"))
}
