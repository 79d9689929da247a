package calls_test

import (
	"testing"

	"github.com/jrsteele09/go-realtime-core/calls"
	apperrors "github.com/jrsteele09/go-realtime-core/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestInviteLink_RoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		callID   string
		userName string
	}{
		{"plain", "c1", "Ann"},
		{"space", "c1", "Ann Lee"},
		{"non-ascii", "call-u1-u2-1700000000000-ab12cd34", "Zoë 李小龍"},
		{"reserved characters", "c/1?x", "a&b=c+d %20"},
		{"empty name", "c1", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			link, err := calls.BuildInviteLink("https://app.example", tt.callID, tt.userName)
			require.NoError(t, err)

			inv, err := calls.ParseInviteLink(link)
			require.NoError(t, err)
			require.Equal(t, calls.Invite{RoomID: tt.callID, Action: "join", UserName: tt.userName}, inv)
		})
	}
}

func TestInviteLink_Shape(t *testing.T) {
	link, err := calls.BuildInviteLink("https://app.example/", "c1", "Ann Lee")
	require.NoError(t, err)
	require.Equal(t, "https://app.example/messages?roomID=c1&action=join&userName=Ann%20Lee", link)
}

func TestInviteLink_Invalid(t *testing.T) {
	_, err := calls.BuildInviteLink("not a url", "c1", "Ann")
	require.ErrorIs(t, err, apperrors.ErrInvalidInvite)

	_, err = calls.BuildInviteLink("https://app.example", " ", "Ann")
	require.ErrorIs(t, err, apperrors.ErrInvalidInvite)

	for _, raw := range []string{
		"https://app.example/messages?action=join&userName=Ann",
		"https://app.example/messages?roomID=c1&action=leave",
		"https://app.example/messages?roomID=c1",
		"://bad",
	} {
		_, err := calls.ParseInviteLink(raw)
		require.ErrorIs(t, err, apperrors.ErrInvalidInvite, raw)
		require.ErrorIs(t, err, apperrors.ErrValidation, raw)
	}
}
