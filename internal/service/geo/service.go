package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/zhouzirui/weather-chat/backend/internal/config"
	weatherModel "github.com/zhouzirui/weather-chat/backend/internal/model/weather"
)

const userAgent = "weather-chat/1.0"

// Service resolves IP addresses to a coarse location through an ipapi.co compatible API.
// Every failure degrades to an unknown location; nothing is returned as an error.
type Service struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewService creates a geolocation client.
func NewService(cfg config.GeoConfig, logger *zap.Logger) *Service {
	return &Service{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{},
		logger:     logger,
	}
}

type locationPayload struct {
	City        string `json:"city"`
	Region      string `json:"region"`
	CountryName string `json:"country_name"`
}

// PublicIP asks the service which address the request originates from.
func (s *Service) PublicIP(ctx context.Context) (string, bool) {
	body, err := s.get(ctx, s.baseURL+"/ip/")
	if err != nil {
		s.logger.Debug("public ip lookup failed", zap.Error(err))
		return "", false
	}

	ip := strings.TrimSpace(string(body))
	if ip == "" {
		return "", false
	}
	return ip, true
}

// Resolve maps ip to city, region and country.
func (s *Service) Resolve(ctx context.Context, ip string) (weatherModel.Location, bool) {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return weatherModel.Location{}, false
	}

	body, err := s.get(ctx, fmt.Sprintf("%s/%s/json/", s.baseURL, url.PathEscape(ip)))
	if err != nil {
		s.logger.Debug("geolocation lookup failed", zap.String("ip", ip), zap.Error(err))
		return weatherModel.Location{}, false
	}

	var payload locationPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		s.logger.Debug("geolocation payload malformed", zap.String("ip", ip), zap.Error(err))
		return weatherModel.Location{}, false
	}

	location := weatherModel.Location{
		City:    strings.TrimSpace(payload.City),
		Region:  strings.TrimSpace(payload.Region),
		Country: strings.TrimSpace(payload.CountryName),
	}
	if !location.Known() {
		s.logger.Debug("geolocation payload incomplete", zap.String("ip", ip))
		return weatherModel.Location{}, false
	}

	return location, true
}

func (s *Service) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}
