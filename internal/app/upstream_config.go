package app

import (
	"strings"

	"github.com/andcoolsystems/eldraxis/internal/mojang"
)

// ClientConfig converts the upstream section into the identity client configuration.
func (c UpstreamConfig) ClientConfig() mojang.Config {
	return mojang.Config{
		ProfilesURL:     strings.TrimSpace(c.ProfilesURL),
		SessionsURL:     strings.TrimSpace(c.SessionsURL),
		Timeout:         c.Timeout,
		UserAgent:       strings.TrimSpace(c.UserAgent),
		MaxTextureBytes: c.MaxTextureBytes,
	}
}
