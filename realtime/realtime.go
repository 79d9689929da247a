// Package realtime describes the chat and video backends the client-side
// managers drive. Implementations live in subpackages.
package realtime

//go:generate mockgen -source=realtime.go -destination=mocks/mock_realtime.go -package=mocks

import (
	"context"

	"github.com/jrsteele09/go-realtime-core/identity"
)

// CredentialProvider returns a currently valid credential for the connected
// identity. Backends call it on connect and whenever they need to refresh.
type CredentialProvider func(ctx context.Context) (string, error)

// Client is a connection to a realtime backend for one identity.
type Client interface {
	ConnectUser(ctx context.Context, id identity.Identity, credentials CredentialProvider) error
	DisconnectUser(ctx context.Context) error
	// On registers h for events of type t and returns a function that removes it.
	On(t EventType, h Handler) func()
}

type ChatBackend interface {
	Client
}

type VideoBackend interface {
	Client
	Call(callType, id string) Call
}

// CreateOptions describe a call created by GetOrCreate.
type CreateOptions struct {
	CreatedBy string
	Members   []string
	Ring      bool
}

// Call is a handle to one backend call. Handles are cheap and do not imply
// the call exists until GetOrCreate or Join succeeds.
type Call interface {
	ID() string
	GetOrCreate(ctx context.Context, opts CreateOptions) error
	Join(ctx context.Context) error
	Leave(ctx context.Context) error
	Reject(ctx context.Context) error
}
