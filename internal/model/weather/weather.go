package weather

import (
	"fmt"
	"strconv"
	"strings"
)

// Location 描述通过 IP 解析出的大致位置，三个字段要么全部存在要么视为未知。
type Location struct {
	City    string `json:"city"`
	Region  string `json:"region"`
	Country string `json:"country"`
}

// Known reports whether every component of the location was resolved.
func (l Location) Known() bool {
	return l.City != "" && l.Region != "" && l.Country != ""
}

// String renders "city, region, country".
func (l Location) String() string {
	return fmt.Sprintf("%s, %s, %s", l.City, l.Region, l.Country)
}

// Snapshot 是单次请求内获取的实时天气，不做缓存。
type Snapshot struct {
	TemperatureCelsius float64 `json:"temperatureCelsius"`
	ConditionText      string  `json:"conditionText"`
}

// Temperature formats the reading in its shortest decimal form, e.g. "18" or "18.5".
func (s Snapshot) Temperature() string {
	return strconv.FormatFloat(s.TemperatureCelsius, 'f', -1, 64)
}

// Policy selects when the relay attaches weather context to a conversation.
type Policy string

const (
	// KeywordTriggered looks up weather only when the user asks about the weather in their location.
	KeywordTriggered Policy = "keyword"
	// AlwaysOn folds location and weather into the system prompt of every request.
	AlwaysOn Policy = "always"
)

// ParsePolicy 解析配置中的天气策略，空值回退到 KeywordTriggered。
func ParsePolicy(raw string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "keyword", "keyword-triggered", "keyword_triggered":
		return KeywordTriggered, nil
	case "always", "always-on", "always_on":
		return AlwaysOn, nil
	default:
		return "", fmt.Errorf("unknown weather policy %q", raw)
	}
}
