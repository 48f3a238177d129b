package database

import "context"

type Repository interface {
	Ping() error
	CreateMeeting(params CreateMeetingParams) (Meeting, error)
	FindMeetingByCode(ctx context.Context, code string) (Meeting, error)
	DeactivateMeeting(meetingId string) error
	ClearMeetingSession(meetingId string) error
	UpsertParticipant(meetingId string, p Participant) error
	DeleteParticipant(meetingId, participantId string) error
	InsertQueueEntry(meetingId string, e QueueEntry) error
	DeleteQueueEntry(entryId string) error
	SyncQueue(meetingId string, entries []QueueEntry) error
}
