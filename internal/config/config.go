package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type Config interface {
	EnvConfig
	CorsConfig
	TokenConfig
	ConnectionConfig
	CallConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetBaseURL() string
	GetOIDCIssuer() string
	GetOIDCClientID() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Cors
	Token
	Connection
	Call
}

// New reads the environment, then the optional CONFIG_FILE overlay, then
// re-applies the environment so explicit variables always win.
func New() (Config, error) {
	c := defaults()
	if err := env.Parse(&c.EnvVars); err != nil {
		return nil, err
	}
	c.Cors.Origins = ParseAllowedOrigins(c.EnvVars.Origins)
	if c.ConfigFile != "" {
		if err := loadFile(c.ConfigFile, &c); err != nil {
			return nil, err
		}
	}
	if err := env.Parse(&c.Token); err != nil {
		return nil, err
	}
	if err := env.Parse(&c.Connection); err != nil {
		return nil, err
	}
	if err := env.Parse(&c.Call); err != nil {
		return nil, err
	}
	if err := c.Token.deriveSecrets(); err != nil {
		return nil, err
	}
	return c, nil
}

// Default returns a configuration populated only with defaults, for tests and
// offline tools.
func Default() Config {
	return defaults()
}

func defaults() mainConfig {
	return mainConfig{
		Cors: Cors{Origins: AllowedOrigins{"*": nullValue{}}},
		Token: Token{
			MaxRequests:      10,
			RateWindow:       time.Minute,
			CredentialTTL:    time.Hour,
			VideoTTL:         24 * time.Hour,
			SafetyMargin:     5 * time.Minute,
			ClockSkew:        time.Minute,
			MinIssueSpacing:  2 * time.Second,
			MaxCacheEntries:  1000,
			VideoTokenIssuer: "stream-video",
		},
		Connection: Connection{
			ConnectTimeout:  15 * time.Second,
			BackoffBase:     2 * time.Second,
			BackoffFactor:   2,
			BackoffMaxRetry: 3,
			BackoffJitter:   0.1,
		},
		Call: Call{
			CallType:      "default",
			RingMode:      true,
			LeaveGrace:    2500 * time.Millisecond,
			LeaveCooldown: 3 * time.Second,
			LeaveAttempts: 3,
			LeaveRetry:    time.Second,
		},
	}
}
