package database

import (
	"database/sql"
	"time"
)

type Meeting struct {
	Id              string
	Code            string
	Title           string
	FacilitatorName string
	IsActive        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Participant struct {
	Id            string
	MeetingId     string
	Name          string
	IsFacilitator bool
	IsInQueue     bool
	QueuePosition sql.NullInt64
	JoinedAt      time.Time
}

type QueueEntry struct {
	Id              string
	MeetingId       string
	ParticipantId   string
	ParticipantName string
	Type            string
	Position        int
	CreatedAt       time.Time
}

type CreateMeetingParams struct {
	Id              string
	Code            string
	Title           string
	FacilitatorName string
	CreatedAt       time.Time
}
