package relay

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/zhouzirui/weather-chat/backend/internal/model/chat"
	weatherModel "github.com/zhouzirui/weather-chat/backend/internal/model/weather"
	"github.com/zhouzirui/weather-chat/backend/internal/service/ai"
)

const (
	baseSystemPrompt    = "You are a helpful weather assistant."
	alwaysOnPromptIntro = baseSystemPrompt + " User's current location and weather: "
	weatherInfoPrefix   = "Weather info: "
)

// Locator resolves caller addresses to locations.
type Locator interface {
	PublicIP(ctx context.Context) (string, bool)
	Resolve(ctx context.Context, ip string) (weatherModel.Location, bool)
}

// Forecaster fetches current weather for a city. A nil snapshot with a nil
// error means the provider had no data.
type Forecaster interface {
	Current(ctx context.Context, city string) (*weatherModel.Snapshot, error)
}

// Completer produces the assistant reply for an assembled prompt.
type Completer interface {
	GenerateResponse(ctx context.Context, p ai.Prompt) (*schema.Message, error)
}

// Service relays one chat turn to the completion API, attaching weather
// context according to its policy.
type Service struct {
	policy  weatherModel.Policy
	geo     Locator
	weather Forecaster
	ai      Completer
	logger  *zap.Logger
}

// NewService builds a relay. The policy is fixed for the lifetime of the service.
func NewService(policy weatherModel.Policy, geo Locator, weather Forecaster, completer Completer, logger *zap.Logger) *Service {
	return &Service{
		policy:  policy,
		geo:     geo,
		weather: weather,
		ai:      completer,
		logger:  logger,
	}
}

// Policy returns the configured weather policy.
func (s *Service) Policy() weatherModel.Policy {
	return s.policy
}

// Handle assembles the prompt for req, calls the completion API and returns its reply.
func (s *Service) Handle(ctx context.Context, req chat.Request) (chat.Response, error) {
	p := ai.Prompt{
		System:  baseSystemPrompt,
		History: req.History,
		Query:   req.Message,
	}

	switch s.policy {
	case weatherModel.AlwaysOn:
		system, err := s.alwaysOnSystemPrompt(ctx, req.IP())
		if err != nil {
			return chat.Response{}, err
		}
		p.System = system
	default:
		if asksForLocalWeather(req.Message) {
			info, err := s.weatherInfo(ctx, req.IP())
			if err != nil {
				return chat.Response{}, err
			}
			p.Context = append(p.Context, weatherInfoPrefix+info)
		}
	}

	reply, err := s.ai.GenerateResponse(ctx, p)
	if err != nil {
		return chat.Response{}, err
	}
	if reply == nil {
		return chat.Response{}, ai.ErrEmptyCompletion
	}

	return chat.Response{Response: reply.Content}, nil
}

// asksForLocalWeather 判断用户是否在询问所在位置的天气。
func asksForLocalWeather(message string) bool {
	lowered := strings.ToLower(message)
	return strings.Contains(lowered, "weather") && strings.Contains(lowered, "my location")
}

// weatherInfo resolves the caller and renders the keyword-triggered weather note.
func (s *Service) weatherInfo(ctx context.Context, userIP string) (string, error) {
	ip := strings.TrimSpace(userIP)
	if ip == "" {
		if publicIP, ok := s.geo.PublicIP(ctx); ok {
			ip = publicIP
		}
	}

	location, ok := s.geo.Resolve(ctx, ip)
	if !ok {
		s.logger.Debug("location unresolved", zap.String("ip", ip))
		return "Sorry, I couldn't determine your location.", nil
	}

	snapshot, err := s.currentWeather(ctx, location)
	if err != nil {
		return "", err
	}
	if snapshot == nil {
		return "Sorry, I couldn't fetch the weather for your location.", nil
	}

	return fmt.Sprintf("It's %s°C and %s in %s.", snapshot.Temperature(), snapshot.ConditionText, location), nil
}

// alwaysOnSystemPrompt folds the caller's location and weather into the system prompt.
// The caller-supplied IP is trusted as is.
func (s *Service) alwaysOnSystemPrompt(ctx context.Context, userIP string) (string, error) {
	location, ok := s.geo.Resolve(ctx, userIP)
	if !ok {
		return alwaysOnPromptIntro + "Unable to determine your location.", nil
	}

	snapshot, err := s.currentWeather(ctx, location)
	if err != nil {
		return "", err
	}
	if snapshot == nil {
		return fmt.Sprintf("%sLocation detected: %s. Weather data unavailable.", alwaysOnPromptIntro, location), nil
	}

	return fmt.Sprintf("%sCurrent weather in %s: %s°C and %s.", alwaysOnPromptIntro, location, snapshot.Temperature(), snapshot.ConditionText), nil
}

func (s *Service) currentWeather(ctx context.Context, location weatherModel.Location) (*weatherModel.Snapshot, error) {
	snapshot, err := s.weather.Current(ctx, location.City)
	if err != nil {
		return nil, fmt.Errorf("weather lookup for %s: %w", location.City, err)
	}
	return snapshot, nil
}
