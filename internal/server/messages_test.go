package server

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/npezzotti/speakup/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClientMessage(t *testing.T) {
	tcases := []struct {
		name    string
		raw     string
		event   string
		wantErr bool
	}{
		{
			name:  "join meeting",
			raw:   `{"id":1,"event":"join-meeting","payload":{"meetingCode":"abc123","participantName":"Bob"}}`,
			event: EventJoinMeeting,
		},
		{
			name:  "no payload",
			raw:   `{"event":"leave-queue"}`,
			event: EventLeaveQueue,
		},
		{
			name:    "not json",
			raw:     `join-meeting`,
			wantErr: true,
		},
		{
			name:    "missing event",
			raw:     `{"id":2,"payload":{}}`,
			wantErr: true,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			msg, err := parseClientMessage([]byte(tc.raw))
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.event, msg.Event)
		})
	}
}

func TestClientMessage_decodePayload(t *testing.T) {
	msg, err := parseClientMessage([]byte(`{"event":"join-meeting","payload":{"meetingCode":"ABC123","participantName":"Bob","isFacilitator":true}}`))
	require.NoError(t, err)

	var p JoinMeeting
	require.NoError(t, msg.decodePayload(&p))
	assert.Equal(t, JoinMeeting{MeetingCode: "ABC123", ParticipantName: "Bob", IsFacilitator: true}, p)

	empty := &ClientMessage{Event: EventJoinQueue}
	var q JoinQueue
	require.NoError(t, empty.decodePayload(&q))
	assert.Equal(t, types.QueueType(""), q.Type)

	bad := &ClientMessage{Event: EventJoinMeeting, Payload: json.RawMessage(`{"participantName":42}`)}
	err = bad.decodePayload(&p)
	assertCode(t, err, CodeInvalidMessage)
}

func TestServerEvent_JSON(t *testing.T) {
	ts := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	pos := 1
	ev := &ServerEvent{
		Event: EventParticipantsUpdated,
		Payload: ParticipantsUpdated{Participants: []types.Participant{
			{Id: "c1", Name: "Bob", IsInQueue: true, QueuePosition: &pos, JoinedAt: ts},
			{Id: "c2", Name: "Alice", IsFacilitator: true, JoinedAt: ts},
		}},
		Timestamp: ts,
	}

	b, err := serializeMessage(ev)
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"event": "participants-updated",
		"payload": {"participants": [
			{"id":"c1","name":"Bob","isFacilitator":false,"isInQueue":true,"queuePosition":1,"joinedAt":"2024-05-01T09:00:00Z"},
			{"id":"c2","name":"Alice","isFacilitator":true,"isInQueue":false,"queuePosition":null,"joinedAt":"2024-05-01T09:00:00Z"}
		]},
		"timestamp": "2024-05-01T09:00:00Z"
	}`, string(b))
}

func TestErrorEvent(t *testing.T) {
	ev := ErrorEvent(5, ErrAlreadyInQueue())
	assert.Equal(t, EventError, ev.Event)
	assert.Equal(t, 5, ev.Id)

	b, err := serializeMessage(ev)
	require.NoError(t, err)

	var decoded struct {
		Id      int          `json:"id"`
		Event   string       `json:"event"`
		Payload ErrorPayload `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, ErrorPayload{Message: "Already in queue", Code: CodeAlreadyInQueue}, decoded.Payload)
}
