package config

import (
	"fmt"
	"strings"
)

type EnvVars struct {
	Port         string `env:"PORT" envDefault:"8080"`
	AppName      string `env:"APP_NAME" envDefault:"Realtime Core"`
	Env          string `env:"ENV" envDefault:"DEV"`
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
	BaseURL      string `env:"BASE_URL" envDefault:"http://localhost:8080"`
	OIDCIssuer   string `env:"OIDC_ISSUER"`
	OIDCClientID string `env:"OIDC_CLIENT_ID"`
	ConfigFile   string `env:"CONFIG_FILE"`
	Origins      string `env:"ALLOWED_ORIGINS" envDefault:"*"`
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetPort() string {
	port := e.Port
	if port == "" {
		port = "8080"
	}
	if !strings.HasPrefix(port, ":") {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (e EnvVars) GetAppName() string {
	return e.AppName
}

func (e EnvVars) GetEnv() string {
	if e.Env == "" {
		return "DEV"
	}
	return e.Env
}

func (e EnvVars) GetLogLevel() string {
	return e.LogLevel
}

// GetBaseURL returns the public origin of the service (e.g., "https://chat.example.com").
// Invite links are built against this origin.
func (e EnvVars) GetBaseURL() string {
	return e.BaseURL
}

func (e EnvVars) GetOIDCIssuer() string {
	return e.OIDCIssuer
}

func (e EnvVars) GetOIDCClientID() string {
	return e.OIDCClientID
}
