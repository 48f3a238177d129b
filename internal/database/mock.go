package database

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockRepository) CreateMeeting(params CreateMeetingParams) (Meeting, error) {
	args := m.Called(params)
	return args.Get(0).(Meeting), args.Error(1)
}
func (m *MockRepository) FindMeetingByCode(ctx context.Context, code string) (Meeting, error) {
	args := m.Called(ctx, code)
	return args.Get(0).(Meeting), args.Error(1)
}
func (m *MockRepository) DeactivateMeeting(meetingId string) error {
	args := m.Called(meetingId)
	return args.Error(0)
}
func (m *MockRepository) ClearMeetingSession(meetingId string) error {
	args := m.Called(meetingId)
	return args.Error(0)
}
func (m *MockRepository) UpsertParticipant(meetingId string, p Participant) error {
	args := m.Called(meetingId, p)
	return args.Error(0)
}
func (m *MockRepository) DeleteParticipant(meetingId, participantId string) error {
	args := m.Called(meetingId, participantId)
	return args.Error(0)
}
func (m *MockRepository) InsertQueueEntry(meetingId string, e QueueEntry) error {
	args := m.Called(meetingId, e)
	return args.Error(0)
}
func (m *MockRepository) DeleteQueueEntry(entryId string) error {
	args := m.Called(entryId)
	return args.Error(0)
}
func (m *MockRepository) SyncQueue(meetingId string, entries []QueueEntry) error {
	args := m.Called(meetingId, entries)
	return args.Error(0)
}
