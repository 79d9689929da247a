package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/hkdf"
)

type TokenConfig interface {
	GetMaxRequests() int
	GetRateWindow() time.Duration
	GetCredentialTTL() time.Duration
	GetVideoTTL() time.Duration
	GetSafetyMargin() time.Duration
	GetClockSkew() time.Duration
	GetMinIssueSpacing() time.Duration
	GetMaxCacheEntries() int
	GetChatSecret() string
	GetVideoSecret() string
	GetVideoTokenIssuer() string
}

type Token struct {
	MaxRequests      int           `env:"TOKEN_MAX_REQUESTS" yaml:"maxRequests"`
	RateWindow       time.Duration `env:"TOKEN_RATE_WINDOW" yaml:"rateWindow"`
	CredentialTTL    time.Duration `env:"TOKEN_TTL" yaml:"credentialTTL"`
	VideoTTL         time.Duration `env:"VIDEO_TOKEN_TTL" yaml:"videoTTL"`
	SafetyMargin     time.Duration `env:"TOKEN_SAFETY_MARGIN" yaml:"safetyMargin"`
	ClockSkew        time.Duration `env:"TOKEN_CLOCK_SKEW" yaml:"clockSkew"`
	MinIssueSpacing  time.Duration `env:"TOKEN_MIN_SPACING" yaml:"minIssueSpacing"`
	MaxCacheEntries  int           `env:"TOKEN_CACHE_ENTRIES" yaml:"maxCacheEntries"`
	VideoTokenIssuer string        `env:"VIDEO_TOKEN_ISSUER" yaml:"videoTokenIssuer"`

	ChatSecret   string `env:"CHAT_API_SECRET" yaml:"-"`
	VideoSecret  string `env:"VIDEO_API_SECRET" yaml:"-"`
	MasterSecret string `env:"MASTER_SECRET" yaml:"-"`
}

var _ TokenConfig = Token{}

func (t Token) GetMaxRequests() int {
	return t.MaxRequests
}

func (t Token) GetRateWindow() time.Duration {
	return t.RateWindow
}

func (t Token) GetCredentialTTL() time.Duration {
	return t.CredentialTTL
}

func (t Token) GetVideoTTL() time.Duration {
	return t.VideoTTL
}

func (t Token) GetSafetyMargin() time.Duration {
	return t.SafetyMargin
}

func (t Token) GetClockSkew() time.Duration {
	return t.ClockSkew
}

func (t Token) GetMinIssueSpacing() time.Duration {
	return t.MinIssueSpacing
}

func (t Token) GetMaxCacheEntries() int {
	return t.MaxCacheEntries
}

func (t Token) GetChatSecret() string {
	return t.ChatSecret
}

func (t Token) GetVideoSecret() string {
	return t.VideoSecret
}

func (t Token) GetVideoTokenIssuer() string {
	return t.VideoTokenIssuer
}


// deriveSecrets fills any missing backend secret from MASTER_SECRET with HKDF-SHA256.
func (t *Token) deriveSecrets() error {
	if t.MasterSecret == "" {
		return nil
	}
	var err error
	if t.ChatSecret == "" {
		if t.ChatSecret, err = DeriveSecret(t.MasterSecret, "chat"); err != nil {
			return err
		}
	}
	if t.VideoSecret == "" {
		if t.VideoSecret, err = DeriveSecret(t.MasterSecret, "video"); err != nil {
			return err
		}
	}
	return nil
}

// DeriveSecret expands master into a 256 bit hex secret bound to info.
func DeriveSecret(master, info string) (string, error) {
	r := hkdf.New(sha256.New, []byte(master), nil, []byte(info))
	key := make([]byte, 32)
	if _, err := io.ReadFull(r, key); err != nil {
		return "", fmt.Errorf("derive %s secret: %w", info, err)
	}
	return hex.EncodeToString(key), nil
}
