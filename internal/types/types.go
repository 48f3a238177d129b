package types

import (
	"time"
)

type QueueType string

const (
	QueueTypeSpeak          QueueType = "speak"
	QueueTypeDirectResponse QueueType = "direct-response"
	QueueTypePointOfInfo    QueueType = "point-of-info"
	QueueTypeClarification  QueueType = "clarification"
)

func (t QueueType) Valid() bool {
	switch t {
	case QueueTypeSpeak, QueueTypeDirectResponse, QueueTypePointOfInfo, QueueTypeClarification:
		return true
	}
	return false
}

type Participant struct {
	Id            string    `json:"id"`
	Name          string    `json:"name"`
	IsFacilitator bool      `json:"isFacilitator"`
	IsInQueue     bool      `json:"isInQueue"`
	QueuePosition *int      `json:"queuePosition"`
	JoinedAt      time.Time `json:"joinedAt"`
}

type QueueEntry struct {
	Id              string    `json:"id"`
	ParticipantId   string    `json:"participantId"`
	ParticipantName string    `json:"participantName"`
	Type            QueueType `json:"type"`
	Timestamp       time.Time `json:"timestamp"`
	Position        int       `json:"position"`
}

// MeetingSummary is the meeting without its roster and queue.
type MeetingSummary struct {
	Id              string      `json:"id"`
	Code            string      `json:"code"`
	Title           string      `json:"title"`
	FacilitatorName string      `json:"facilitatorName"`
	CurrentSpeaker  *QueueEntry `json:"currentSpeaker"`
	CreatedAt       time.Time   `json:"createdAt"`
	IsActive        bool        `json:"isActive"`
}

// MeetingInfo is the public projection of a meeting. It never carries
// participant identities or queue contents.
type MeetingInfo struct {
	Code             string `json:"code"`
	Title            string `json:"title"`
	Facilitator      string `json:"facilitator"`
	ParticipantCount int    `json:"participantCount"`
	IsActive         bool   `json:"isActive"`
}

type MeetingSnapshot struct {
	Meeting      MeetingSummary `json:"meeting"`
	Queue        []QueueEntry   `json:"queue"`
	Participants []Participant  `json:"participants"`
}
