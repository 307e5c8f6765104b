package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/zhouzirui/weather-chat/backend/internal/config"
	weatherModel "github.com/zhouzirui/weather-chat/backend/internal/model/weather"
)

// ErrMalformedResponse is returned when a 200 response lacks the current conditions.
var ErrMalformedResponse = errors.New("malformed weather response")

// Service fetches current conditions from weatherapi.com.
type Service struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewService 创建天气服务客户端。
func NewService(cfg config.WeatherConfig, logger *zap.Logger) *Service {
	return &Service{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{},
		logger:     logger,
	}
}

type currentPayload struct {
	Current *struct {
		TempC     *float64 `json:"temp_c"`
		Condition *struct {
			Text *string `json:"text"`
		} `json:"condition"`
	} `json:"current"`
}

// Current returns the conditions for city. A non-200 answer yields (nil, nil);
// transport and decoding failures are returned to the caller.
func (s *Service) Current(ctx context.Context, city string) (*weatherModel.Snapshot, error) {
	query := url.Values{}
	query.Set("key", s.apiKey)
	query.Set("q", city)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/current.json?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build weather request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("weather request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.logger.Debug("weather lookup unavailable", zap.String("city", city), zap.Int("status", resp.StatusCode))
		return nil, nil
	}

	var payload currentPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode weather response: %w", err)
	}

	if payload.Current == nil || payload.Current.TempC == nil ||
		payload.Current.Condition == nil || payload.Current.Condition.Text == nil {
		return nil, ErrMalformedResponse
	}

	return &weatherModel.Snapshot{
		TemperatureCelsius: *payload.Current.TempC,
		ConditionText:      *payload.Current.Condition.Text,
	}, nil
}
