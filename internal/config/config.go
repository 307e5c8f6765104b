package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"github.com/zhouzirui/weather-chat/backend/internal/model/weather"
)

// ErrMissingCredentials 表示启动所需的密钥未配置。
var ErrMissingCredentials = errors.New("required credentials are not set")

const (
	ProviderOpenAI = "openai"
	ProviderArk    = "ark"

	defaultModel          = "gpt-3.5-turbo"
	defaultGeoBaseURL     = "https://ipapi.co"
	defaultWeatherBaseURL = "http://api.weatherapi.com/v1"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server  ServerConfig
	AI      AIConfig
	Weather WeatherConfig
	Geo     GeoConfig
	Debug   bool
}

// Load 读取可选的 TOML 配置文件，再用环境变量覆盖。密钥只从环境变量读取。
func Load(path string) (*Config, error) {
	file, err := loadFile(path)
	if err != nil {
		return nil, err
	}

	server, err := loadServerConfig(file.Server)
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig(file.AI)
	if err != nil {
		return nil, err
	}

	weatherCfg, err := loadWeatherConfig(file.Weather)
	if err != nil {
		return nil, err
	}

	debugDefault := true
	if file.Debug != nil {
		debugDefault = *file.Debug
	}
	debug, err := parseBoolEnv("RELAY_DEBUG", debugDefault)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server:  server,
		AI:      ai,
		Weather: weatherCfg,
		Geo:     GeoConfig{BaseURL: strings.TrimRight(getEnvOrDefault("GEO_BASE_URL", orDefault(file.Geo.BaseURL, defaultGeoBaseURL)), "/")},
		Debug:   debug,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var missing []string
	if !c.AI.Enabled() {
		missing = append(missing, c.AI.requiredKeys()...)
	}
	if c.Weather.APIKey == "" {
		missing = append(missing, "WEATHERAPI_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s must be set as environment variables", ErrMissingCredentials, strings.Join(missing, ", "))
	}
	return nil
}

// fileConfig mirrors the optional TOML file. API keys come from the environment only.
type fileConfig struct {
	Debug   *bool       `toml:"debug"`
	Server  fileServer  `toml:"server"`
	AI      fileAI      `toml:"ai"`
	Weather fileWeather `toml:"weather"`
	Geo     fileGeo     `toml:"geo"`
}

type fileServer struct {
	Addr string `toml:"addr"`
}

type fileAI struct {
	Provider    string   `toml:"provider"`
	Model       string   `toml:"model"`
	BaseURL     string   `toml:"base_url"`
	Region      string   `toml:"region"`
	Temperature *float64 `toml:"temperature"`
	MaxTokens   *int     `toml:"max_tokens"`
}

type fileWeather struct {
	Policy  string `toml:"policy"`
	BaseURL string `toml:"base_url"`
}

type fileGeo struct {
	BaseURL string `toml:"base_url"`
}

func loadFile(path string) (fileConfig, error) {
	var file fileConfig
	if path == "" {
		path = strings.TrimSpace(os.Getenv("RELAY_CONFIG"))
	}
	if path == "" {
		return file, nil
	}

	if _, err := toml.DecodeFile(path, &file); err != nil {
		return fileConfig{}, fmt.Errorf("failed to decode config file %s: %w", path, err)
	}
	return file, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

// loadServerConfig 解析服务器监听地址，默认监听所有网卡的 5000 端口。
func loadServerConfig(file fileServer) (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		if file.Addr != "" {
			return ServerConfig{Addr: file.Addr}, nil
		}
		port = "5000"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":5000" 或 "127.0.0.1:5000"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: "0.0.0.0:" + port}, nil
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	Provider    string
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	MaxTokens   *int
}

// Enabled 表示是否提供了当前 provider 必需的密钥。
func (c AIConfig) Enabled() bool {
	switch c.Provider {
	case ProviderArk:
		return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
	default:
		return c.Model != "" && c.APIKey != ""
	}
}

func (c AIConfig) requiredKeys() []string {
	if c.Provider == ProviderArk {
		return []string{"ARK_API_KEY (or ARK_ACCESS_KEY + ARK_SECRET_KEY)", "ARK_MODEL"}
	}
	return []string{"OPENAI_API_KEY"}
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("%w: %s", ErrMissingCredentials, strings.Join(c.requiredKeys(), ", "))
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var maxTokens *int
	if c.MaxTokens != nil {
		val := *c.MaxTokens
		maxTokens = &val
	}

	switch c.Provider {
	case ProviderArk:
		return ark.NewChatModel(ctx, &ark.ChatModelConfig{
			BaseURL:     c.BaseURL,
			Region:      c.Region,
			APIKey:      c.APIKey,
			AccessKey:   c.AccessKey,
			SecretKey:   c.SecretKey,
			Model:       c.Model,
			MaxTokens:   maxTokens,
			Temperature: temperature,
		})
	case ProviderOpenAI:
		return openai.NewChatModel(ctx, &openai.ChatModelConfig{
			APIKey:      c.APIKey,
			BaseURL:     c.BaseURL,
			Model:       c.Model,
			MaxTokens:   maxTokens,
			Temperature: temperature,
		})
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q", c.Provider)
	}
}

func loadAIConfig(file fileAI) (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("LLM_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}
	if temperature == nil {
		temperature = file.Temperature
	}

	maxTokens, err := parseOptionalIntEnv("LLM_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}
	if maxTokens == nil {
		maxTokens = file.MaxTokens
	}

	provider := strings.ToLower(getEnvOrDefault("LLM_PROVIDER", orDefault(file.Provider, ProviderOpenAI)))

	switch provider {
	case ProviderOpenAI:
		return AIConfig{
			Provider:    provider,
			APIKey:      strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
			Model:       getEnvOrDefault("OPENAI_MODEL", orDefault(file.Model, defaultModel)),
			BaseURL:     getEnvOrDefault("OPENAI_BASE_URL", file.BaseURL),
			Temperature: temperature,
			MaxTokens:   maxTokens,
		}, nil
	case ProviderArk:
		return AIConfig{
			Provider:    provider,
			APIKey:      strings.TrimSpace(os.Getenv("ARK_API_KEY")),
			AccessKey:   strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
			SecretKey:   strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
			Model:       getEnvOrDefault("ARK_MODEL", file.Model),
			BaseURL:     getEnvOrDefault("ARK_BASE_URL", orDefault(file.BaseURL, "https://ark.cn-beijing.volces.com/api/v3")),
			Region:      getEnvOrDefault("ARK_REGION", orDefault(file.Region, "cn-beijing")),
			Temperature: temperature,
			MaxTokens:   maxTokens,
		}, nil
	default:
		return AIConfig{}, fmt.Errorf("invalid LLM_PROVIDER value %q", provider)
	}
}

// WeatherConfig 描述天气服务与天气上下文策略。
type WeatherConfig struct {
	APIKey  string
	BaseURL string
	Policy  weather.Policy
}

func loadWeatherConfig(file fileWeather) (WeatherConfig, error) {
	policy, err := weather.ParsePolicy(getEnvOrDefault("WEATHER_POLICY", file.Policy))
	if err != nil {
		return WeatherConfig{}, fmt.Errorf("invalid WEATHER_POLICY: %w", err)
	}

	return WeatherConfig{
		APIKey:  strings.TrimSpace(os.Getenv("WEATHERAPI_KEY")),
		BaseURL: strings.TrimRight(getEnvOrDefault("WEATHER_BASE_URL", orDefault(file.BaseURL, defaultWeatherBaseURL)), "/"),
		Policy:  policy,
	}, nil
}

// GeoConfig 描述 IP 定位服务。
type GeoConfig struct {
	BaseURL string
}

func orDefault(value, defaultValue string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return defaultValue
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
