package errors

import "errors"

// StatusCode is the coarse outcome exposed to collaborators outside the core.
type StatusCode string

const (
	StatusOK           StatusCode = "ok"
	StatusDisconnected StatusCode = "disconnected"
	StatusCallFailed   StatusCode = "call_failed"
	StatusRateLimited  StatusCode = "rate_limited"
	StatusInvalid      StatusCode = "invalid"
	StatusBusy         StatusCode = "busy"
	StatusInternal     StatusCode = "internal"
)

// Status is what the UI layer receives instead of raw backend errors.
type Status struct {
	Code    StatusCode `json:"code"`
	Message string     `json:"message,omitempty"`
}

// Coarse maps err onto a Status. fallback is used for transport failures so the
// chat channel reports "disconnected" while calls report "call_failed".
func Coarse(err error, fallback StatusCode) Status {
	switch {
	case err == nil:
		return Status{Code: StatusOK}
	case errors.Is(err, ErrConcurrencyConflict):
		return Status{Code: StatusBusy, Message: "another call is in progress"}
	case errors.Is(err, ErrRateLimited):
		return Status{Code: StatusRateLimited, Message: "too many requests, try again shortly"}
	case errors.Is(err, ErrValidation):
		return Status{Code: StatusInvalid, Message: "request could not be validated"}
	case errors.Is(err, ErrSigningUnavailable), errors.Is(err, ErrSigningFailed), errors.Is(err, ErrInternal):
		return Status{Code: StatusInternal, Message: "service unavailable"}
	default:
		if fallback == "" {
			fallback = StatusInternal
		}
		return Status{Code: fallback, Message: "connection lost"}
	}
}
