package calls_test

import (
	"github.com/jrsteele09/go-realtime-core/identity"
	"github.com/jrsteele09/go-realtime-core/realtime"
)

func participantEvent(joined bool, callID string, who identity.Identity) realtime.Event {
	t := realtime.EventParticipantLeft
	if joined {
		t = realtime.EventParticipantJoined
	}
	return realtime.Event{Type: t, CallID: callID, From: who}
}
