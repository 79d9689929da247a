package server

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/jrsteele09/go-realtime-core/identity"
	apperrors "github.com/jrsteele09/go-realtime-core/internal/errors"
	"github.com/jrsteele09/go-realtime-core/token"
)

const contentTypeJSON = "application/json; charset=utf-8"

type tokenResponse struct {
	Token string `json:"token"`
}

type videoTokenRequest struct {
	UserID string `json:"userId" validate:"required,max=128"`
}

type videoTokenResponse struct {
	Token     string `json:"token"`
	UserID    string `json:"userId"`
	ExpiresAt string `json:"expiresAt"`
}

type errorResponse struct {
	Error      string `json:"error"`
	RetryAfter int    `json:"retryAfter,omitempty"`
}

// TokenHandler issues a chat credential for the caller's resolved identity.
func (s *Server) TokenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := s.resolver.Resolve(r)
		if err != nil {
			s.log.Debug().Err(err).Msg("Token request without identity")
			writeJSONError(w, http.StatusUnauthorized, "unauthenticated")
			return
		}

		cred, err := s.issuers.Chat.Issue(r.Context(), id.ID)
		setQuotaHeaders(w, s.issuers.Chat.Quota(id.ID))
		if err != nil {
			s.writeIssueError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, tokenResponse{Token: cred.Value})
	}
}

// VideoTokenHandler issues a video credential for the userId in the body.
// An authenticated caller may only request a credential for itself.
func (s *Server) VideoTokenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req videoTokenRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := s.validate.Struct(req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "userId is required")
			return
		}
		if caller, err := s.resolver.Resolve(r); err == nil && !sameIdentity(caller, req.UserID) {
			writeJSONError(w, http.StatusForbidden, "userId does not match the authenticated identity")
			return
		}

		cred, err := s.issuers.Video.Issue(r.Context(), req.UserID)
		setQuotaHeaders(w, s.issuers.Video.Quota(req.UserID))
		if err != nil {
			s.writeIssueError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, videoTokenResponse{
			Token:     cred.Value,
			UserID:    req.UserID,
			ExpiresAt: cred.ExpiresAt.UTC().Format(time.RFC3339),
		})
	}
}

// PreflightHandler answers OPTIONS once CorsMiddleware has set its headers.
func (s *Server) PreflightHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func (s *Server) writeIssueError(w http.ResponseWriter, err error) {
	var limited *apperrors.RateLimitedError
	switch {
	case apperrors.As(err, &limited):
		seconds := int(math.Ceil(limited.RetryAfter.Seconds()))
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
		w.Header().Set("Content-Type", contentTypeJSON)
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(errorResponse{Error: "rate limited", RetryAfter: seconds})
	case apperrors.Is(err, apperrors.ErrMissingIdentity):
		writeJSONError(w, http.StatusUnauthorized, "unauthenticated")
	case apperrors.Is(err, apperrors.ErrValidation):
		writeJSONError(w, http.StatusBadRequest, "invalid request")
	case apperrors.Is(err, apperrors.ErrSigningUnavailable):
		s.log.Error().Err(err).Msg("Signing credentials are not configured")
		writeJSONError(w, http.StatusInternalServerError, "token service unavailable")
	default:
		s.log.Error().Err(err).Msg("Failed to issue credential")
		writeJSONError(w, http.StatusInternalServerError, "failed to issue token")
	}
}

func sameIdentity(caller *identity.Identity, userID string) bool {
	return caller != nil && caller.ID == userID
}

func setQuotaHeaders(w http.ResponseWriter, q token.Quota) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(q.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(q.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(q.Reset.Unix(), 10))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
