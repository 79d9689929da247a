package config

import "time"

type ConnectionConfig interface {
	GetConnectTimeout() time.Duration
	GetBackoffBase() time.Duration
	GetBackoffFactor() float64
	GetBackoffMaxRetries() int
	GetBackoffJitter() float64
}

type Connection struct {
	ConnectTimeout  time.Duration `env:"CONNECT_TIMEOUT" yaml:"connectTimeout"`
	BackoffBase     time.Duration `env:"BACKOFF_BASE" yaml:"backoffBase"`
	BackoffFactor   float64       `env:"BACKOFF_FACTOR" yaml:"backoffFactor"`
	BackoffMaxRetry int           `env:"BACKOFF_MAX_RETRIES" yaml:"backoffMaxRetries"`
	BackoffJitter   float64       `env:"BACKOFF_JITTER" yaml:"backoffJitter"`
}

var _ ConnectionConfig = Connection{}

func (c Connection) GetConnectTimeout() time.Duration {
	return c.ConnectTimeout
}

func (c Connection) GetBackoffBase() time.Duration {
	return c.BackoffBase
}

func (c Connection) GetBackoffFactor() float64 {
	return c.BackoffFactor
}

func (c Connection) GetBackoffMaxRetries() int {
	return c.BackoffMaxRetry
}

func (c Connection) GetBackoffJitter() float64 {
	return c.BackoffJitter
}
