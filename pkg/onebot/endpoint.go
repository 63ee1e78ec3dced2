package onebot

import (
	"fmt"
	"strings"
)

// Platform identifies which messaging network an endpoint lives on.
type Platform string

const (
	PlatformTelegram Platform = "telegram"
	PlatformQQ       Platform = "qq"
	PlatformWeChat   Platform = "wechat"
)

func ParsePlatform(s string) (Platform, error) {
	switch Platform(s) {
	case PlatformTelegram, PlatformQQ, PlatformWeChat:
		return Platform(s), nil
	default:
		return "", fmt.Errorf("invalid platform %q", s)
	}
}

// Endpoint identifies one remote bot account as platform plus self id.
type Endpoint struct {
	Platform Platform
	ID       string
}

func (e Endpoint) String() string {
	return string(e.Platform) + ":" + e.ID
}

// ParseEndpoint parses the "<platform>:<id>" form produced by String.
func ParseEndpoint(s string) (Endpoint, error) {
	platform, id, ok := strings.Cut(s, ":")
	if !ok {
		return Endpoint{}, fmt.Errorf("invalid endpoint format %q", s)
	}
	parsed, err := ParsePlatform(platform)
	if err != nil {
		return Endpoint{}, fmt.Errorf("invalid endpoint %q: %w", s, err)
	}
	return Endpoint{Platform: parsed, ID: id}, nil
}
