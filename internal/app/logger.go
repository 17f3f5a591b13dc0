package app

import (
	"strings"

	"github.com/andcoolsystems/eldraxis/pkg/logger"
)

// ConfigureLogging initialises the global logger from the server section,
// defaulting to info level and JSON output.
func ConfigureLogging(cfg ServerConfig) error {
	level := strings.TrimSpace(cfg.LogLevel)
	if level == "" {
		level = "info"
	}
	format := strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	return logger.Init(level, logger.Options{
		Encoding:    format,
		Development: format == "console",
	})
}
