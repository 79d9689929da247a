package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ClaimsFunc builds the backend specific claims for a credential.
type ClaimsFunc func(identityID string, issuedAt, expiresAt time.Time) jwt.MapClaims

// ChatClaims are the claims the chat backend expects in a user token.
func ChatClaims(identityID string, issuedAt, expiresAt time.Time) jwt.MapClaims {
	return jwt.MapClaims{
		"user_id": identityID,
		"iat":     issuedAt.Unix(),
		"exp":     expiresAt.Unix(),
		"jti":     uuid.New().String(),
	}
}

// VideoClaims returns the claims builder for the video backend.
func VideoClaims(issuer string) ClaimsFunc {
	return func(identityID string, issuedAt, expiresAt time.Time) jwt.MapClaims {
		return jwt.MapClaims{
			"user_id": identityID,
			"iss":     issuer,
			"sub":     "user/" + identityID,
			"iat":     issuedAt.Unix(),
			"exp":     expiresAt.Unix(),
			"jti":     uuid.New().String(),
		}
	}
}
