package app

import (
	"strings"

	"github.com/andcoolsystems/eldraxis/internal/database"
)

// ConnectionConfig converts the database section into database.Config,
// picking the host block that matches the driver.
func (c DatabaseConfig) ConnectionConfig() database.Config {
	cfg := database.Config{
		Driver:          strings.ToLower(strings.TrimSpace(c.Driver)),
		Path:            strings.TrimSpace(c.Path),
		DSN:             strings.TrimSpace(c.DSN),
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
	}

	var auth *DBAuthConfig
	switch cfg.Driver {
	case "", "sqlite":
		cfg.Driver = "sqlite"
	case "postgres", "postgresql":
		cfg.Driver = "postgres"
		auth = &c.Postgres
	case "mysql":
		auth = &c.MySQL
	default:
		// left as-is so Open reports the unsupported driver
	}

	if auth != nil {
		cfg.Host = strings.TrimSpace(auth.Host)
		cfg.Port = auth.Port
		cfg.Name = strings.TrimSpace(auth.Database)
		cfg.User = strings.TrimSpace(auth.Username)
		cfg.Password = auth.Password
	}
	return cfg
}
