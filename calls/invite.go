package calls

import (
	"net/url"
	"strings"

	apperrors "github.com/jrsteele09/go-realtime-core/internal/errors"
)

const (
	ActionJoin = "join"
	invitePath = "/messages"
)

// Invite is the decoded form of an invite link.
type Invite struct {
	RoomID   string
	Action   string
	UserName string
}

// BuildInviteLink encodes a call as
// <origin>/messages?roomID=<id>&action=join&userName=<name>.
// Names are percent-encoded so spaces and non-ASCII text round trip.
func BuildInviteLink(origin, callID, inviterName string) (string, error) {
	if strings.TrimSpace(callID) == "" {
		return "", apperrors.Wrapf(apperrors.ErrInvalidInvite, "empty call id")
	}
	base, err := url.Parse(strings.TrimSpace(origin))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return "", apperrors.Wrapf(apperrors.ErrInvalidInvite, "origin %q", origin)
	}
	base.Path = strings.TrimRight(base.Path, "/") + invitePath
	base.RawQuery = "roomID=" + escape(callID) +
		"&action=" + ActionJoin +
		"&userName=" + escape(inviterName)
	base.Fragment = ""
	return base.String(), nil
}

// ParseInviteLink is the inverse of BuildInviteLink.
func ParseInviteLink(raw string) (Invite, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return Invite{}, apperrors.Wrapf(apperrors.ErrInvalidInvite, "%v", err)
	}
	q := u.Query()
	inv := Invite{
		RoomID:   q.Get("roomID"),
		Action:   q.Get("action"),
		UserName: q.Get("userName"),
	}
	if inv.RoomID == "" {
		return Invite{}, apperrors.Wrapf(apperrors.ErrInvalidInvite, "missing roomID")
	}
	if inv.Action != ActionJoin {
		return Invite{}, apperrors.Wrapf(apperrors.ErrInvalidInvite, "unsupported action %q", inv.Action)
	}
	return inv, nil
}

// escape percent-encodes s for a query value, using %20 rather than + for
// spaces.
func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
