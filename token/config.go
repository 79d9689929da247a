package token

import "github.com/jrsteele09/go-realtime-core/internal/config"

// NewChatService builds the chat-audience issuer from configuration.
func NewChatService(cfg config.TokenConfig, opts ...ServiceOption) *Service {
	base := []ServiceOption{
		WithAudience("chat"),
		WithClaims(ChatClaims),
		WithTTL(cfg.GetCredentialTTL()),
	}
	return NewService(NewHMACSigner(cfg.GetChatSecret()), append(append(base, configOptions(cfg)...), opts...)...)
}

// NewVideoService builds the video-audience issuer from configuration.
func NewVideoService(cfg config.TokenConfig, opts ...ServiceOption) *Service {
	base := []ServiceOption{
		WithAudience("video"),
		WithClaims(VideoClaims(cfg.GetVideoTokenIssuer())),
		WithTTL(cfg.GetVideoTTL()),
	}
	return NewService(NewHMACSigner(cfg.GetVideoSecret()), append(append(base, configOptions(cfg)...), opts...)...)
}

func configOptions(cfg config.TokenConfig) []ServiceOption {
	return []ServiceOption{
		WithRateLimit(cfg.GetMaxRequests(), cfg.GetRateWindow()),
		WithExpiry(cfg.GetSafetyMargin(), cfg.GetClockSkew()),
		WithMinSpacing(cfg.GetMinIssueSpacing()),
		WithCache(nil, cfg.GetMaxCacheEntries()),
	}
}
