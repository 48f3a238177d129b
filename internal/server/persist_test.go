package server

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/npezzotti/speakup/internal/database"
	"github.com/npezzotti/speakup/internal/testutil"
	"github.com/npezzotti/speakup/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestNewPersister_NilRepo(t *testing.T) {
	p := newPersister(testutil.TestLogger(t), nil)
	assert.Nil(t, p)

	// every operation is a no-op on a nil persister
	p.createMeeting(database.CreateMeetingParams{})
	p.upsertParticipant("m1", types.Participant{})
	p.removeQueueEntry("m1", "e1", nil)
	assert.NoError(t, p.stop(context.Background()))
}

func TestPersister_WritesInOrder(t *testing.T) {
	joined := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	pos := 2

	repo := &database.MockRepository{}
	defer repo.AssertExpectations(t)

	var calls []string

	repo.On("CreateMeeting", database.CreateMeetingParams{Id: "m1", Code: "ABC123"}).
		Return(database.Meeting{}, nil).Once().
		Run(func(mock.Arguments) { calls = append(calls, "CreateMeeting") })
	repo.On("UpsertParticipant", "m1", database.Participant{
		Id:            "c1",
		MeetingId:     "m1",
		Name:          "Bob",
		IsInQueue:     true,
		QueuePosition: sql.NullInt64{Int64: 2, Valid: true},
		JoinedAt:      joined,
	}).Return(nil).Once().
		Run(func(mock.Arguments) { calls = append(calls, "UpsertParticipant") })
	repo.On("InsertQueueEntry", "m1", mock.MatchedBy(func(e database.QueueEntry) bool {
		return e.Id == "e1" && e.Type == "speak" && e.Position == 2
	})).Return(nil).Once().
		Run(func(mock.Arguments) { calls = append(calls, "InsertQueueEntry") })
	repo.On("DeleteQueueEntry", "e1").Return(nil).Once().
		Run(func(mock.Arguments) { calls = append(calls, "DeleteQueueEntry") })
	repo.On("SyncQueue", "m1", mock.MatchedBy(func(rows []database.QueueEntry) bool {
		return len(rows) == 1 && rows[0].Id == "e0" && rows[0].Position == 1
	})).Return(nil).Once().
		Run(func(mock.Arguments) { calls = append(calls, "SyncQueue") })
	repo.On("DeleteParticipant", "m1", "c1").Return(nil).Once().
		Run(func(mock.Arguments) { calls = append(calls, "DeleteParticipant") })
	repo.On("DeactivateMeeting", "m1").Return(nil).Once().
		Run(func(mock.Arguments) { calls = append(calls, "DeactivateMeeting") })

	p := newPersister(testutil.TestLogger(t), repo)
	go p.run()

	p.createMeeting(database.CreateMeetingParams{Id: "m1", Code: "ABC123"})
	p.upsertParticipant("m1", types.Participant{Id: "c1", Name: "Bob", IsInQueue: true, QueuePosition: &pos, JoinedAt: joined})
	p.insertQueueEntry("m1", types.QueueEntry{Id: "e1", ParticipantId: "c1", Type: types.QueueTypeSpeak, Position: 2})
	p.removeQueueEntry("m1", "e1", []types.QueueEntry{{Id: "e0", Position: 1}})
	p.deleteParticipant("m1", "c1")
	p.deactivateMeeting("m1")

	require.NoError(t, p.stop(context.Background()))

	assert.Equal(t, []string{
		"CreateMeeting",
		"UpsertParticipant",
		"InsertQueueEntry",
		"DeleteQueueEntry",
		"SyncQueue",
		"DeleteParticipant",
		"DeactivateMeeting",
	}, calls)
}

func TestPersister_FailuresAreLogged(t *testing.T) {
	repo := &database.MockRepository{}
	repo.On("DeactivateMeeting", "m1").Return(errors.New("connection refused")).Once()
	repo.On("ClearMeetingSession", "m1").Return(nil).Once()
	defer repo.AssertExpectations(t)

	logger, buf := testutil.BufferLogger(t)
	p := newPersister(logger, repo)
	go p.run()

	p.deactivateMeeting("m1")
	p.clearSession("m1")
	require.NoError(t, p.stop(context.Background()))

	assert.Contains(t, buf.String(), "persist DeactivateMeeting: connection refused")

	// writes after stop are discarded
	p.deactivateMeeting("m1")
	assert.NoError(t, p.stop(context.Background()))
}

func TestPersister_DropsWhenFull(t *testing.T) {
	repo := &database.MockRepository{}
	logger, buf := testutil.BufferLogger(t)
	p := newPersister(logger, repo)

	for range persistQueueSize {
		p.enqueue("noop", func(database.Repository) error { return nil })
	}
	p.deactivateMeeting("m1")

	assert.Contains(t, buf.String(), "persist queue full, dropping DeactivateMeeting")
	repo.AssertNotCalled(t, "DeactivateMeeting", "m1")
}
