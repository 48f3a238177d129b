package server

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/npezzotti/speakup/internal/types"
)

// Client -> server events.
const (
	EventJoinMeeting  = "join-meeting"
	EventWatchMeeting = "watch-meeting"
	EventJoinQueue    = "join-queue"
	EventLeaveQueue   = "leave-queue"
	EventLeaveMeeting = "leave-meeting"
	// EventNextSpeaker is both the facilitator's advance request and the
	// broadcast announcing the popped entry.
	EventNextSpeaker = "next-speaker"
)

// Server -> client events.
const (
	EventMeetingJoined        = "meeting-joined"
	EventMeetingWatched       = "meeting-watched"
	EventMeetingLeft          = "meeting-left"
	EventParticipantJoined    = "participant-joined"
	EventParticipantsUpdated  = "participants-updated"
	EventQueueUpdated         = "queue-updated"
	EventParticipantLeftQueue = "participant-left-queue"
	EventSpeakerChanged       = "speaker-changed"
	EventParticipantLeft      = "participant-left"
	EventError                = "error"
)

type ClientMessage struct {
	Id      int             `json:"id,omitempty"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type JoinMeeting struct {
	MeetingCode     string `json:"meetingCode"`
	ParticipantName string `json:"participantName"`
	IsFacilitator   bool   `json:"isFacilitator"`
}

type WatchMeeting struct {
	MeetingCode string `json:"meetingCode"`
}

type JoinQueue struct {
	Type types.QueueType `json:"type"`
}

func parseClientMessage(raw []byte) (*ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, err
	}

	if msg.Event == "" {
		return nil, errors.New("missing event name")
	}

	return &msg, nil
}

// decodePayload unmarshals the message payload into v. An absent payload
// leaves v at its zero value.
func (m *ClientMessage) decodePayload(v any) error {
	if len(m.Payload) == 0 {
		return nil
	}

	if err := json.Unmarshal(m.Payload, v); err != nil {
		return &Error{
			Kind:    KindValidation,
			Code:    CodeInvalidMessage,
			Message: "Invalid payload for " + m.Event,
			Err:     err,
		}
	}

	return nil
}

// Payload is implemented by every server event body.
type Payload interface {
	EventName() string
}

type ServerEvent struct {
	Id        int       `json:"id,omitempty"`
	Event     string    `json:"event"`
	Payload   Payload   `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

func newEvent(p Payload) *ServerEvent {
	return &ServerEvent{
		Event:     p.EventName(),
		Payload:   p,
		Timestamp: Now(),
	}
}

type MeetingJoined struct {
	Meeting      types.MeetingSummary `json:"meeting"`
	Participant  types.Participant    `json:"participant"`
	Queue        []types.QueueEntry   `json:"queue"`
	Participants []types.Participant  `json:"participants"`
}

func (MeetingJoined) EventName() string { return EventMeetingJoined }

type MeetingWatched struct {
	Meeting      types.MeetingSummary `json:"meeting"`
	Queue        []types.QueueEntry   `json:"queue"`
	Participants []types.Participant  `json:"participants"`
}

func (MeetingWatched) EventName() string { return EventMeetingWatched }

type MeetingLeft struct {
	MeetingCode string `json:"meetingCode"`
}

func (MeetingLeft) EventName() string { return EventMeetingLeft }

type ParticipantJoined struct {
	Participant      types.Participant `json:"participant"`
	ParticipantCount int               `json:"participantCount"`
}

func (ParticipantJoined) EventName() string { return EventParticipantJoined }

type ParticipantsUpdated struct {
	Participants []types.Participant `json:"participants"`
}

func (ParticipantsUpdated) EventName() string { return EventParticipantsUpdated }

type QueueUpdated struct {
	Queue []types.QueueEntry `json:"queue"`
}

func (QueueUpdated) EventName() string { return EventQueueUpdated }

type ParticipantLeftQueue struct {
	ParticipantId   string `json:"participantId"`
	ParticipantName string `json:"participantName"`
	QueueLength     int    `json:"queueLength"`
}

func (ParticipantLeftQueue) EventName() string { return EventParticipantLeftQueue }

type NextSpeaker struct {
	types.QueueEntry
}

func (NextSpeaker) EventName() string { return EventNextSpeaker }

type SpeakerChanged struct {
	PreviousSpeaker *types.QueueEntry  `json:"previousSpeaker"`
	CurrentSpeaker  *types.QueueEntry  `json:"currentSpeaker"`
	CurrentQueue    []types.QueueEntry `json:"currentQueue"`
	QueueLength     int                `json:"queueLength"`
}

func (SpeakerChanged) EventName() string { return EventSpeakerChanged }

type ParticipantLeft struct {
	ParticipantId    string `json:"participantId"`
	ParticipantName  string `json:"participantName"`
	ParticipantCount int    `json:"participantCount"`
}

func (ParticipantLeft) EventName() string { return EventParticipantLeft }

type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func (ErrorPayload) EventName() string { return EventError }

// ErrorEvent builds the actor-only error event for a failed request. Internal
// error details are never sent to the client.
func ErrorEvent(id int, err error) *ServerEvent {
	e := AsError(err)
	ev := newEvent(ErrorPayload{Message: e.Message, Code: e.Code})
	ev.Id = id
	return ev
}
