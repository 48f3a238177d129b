package server

import (
	"context"
	"database/sql"
	"log"

	"github.com/npezzotti/speakup/internal/database"
	"github.com/npezzotti/speakup/internal/types"
)

const persistQueueSize = 512

type persistOp struct {
	name string
	fn   func(repo database.Repository) error
}

// persister writes state changes to the database in the background. The
// in-memory session is authoritative: writes are never awaited by the loop, a
// failed write is logged and dropped, and nothing is rolled back. A nil
// *persister discards everything.
type persister struct {
	log     *log.Logger
	repo    database.Repository
	ops     chan persistOp
	done    chan struct{}
	stopped bool
}

func newPersister(logger *log.Logger, repo database.Repository) *persister {
	if repo == nil {
		return nil
	}

	return &persister{
		log:  logger,
		repo: repo,
		ops:  make(chan persistOp, persistQueueSize),
		done: make(chan struct{}),
	}
}

func (p *persister) run() {
	defer close(p.done)

	for op := range p.ops {
		if err := op.fn(p.repo); err != nil {
			p.log.Printf("persist %s: %v", op.name, err)
		}
	}
}

// stop closes the op channel and waits for pending writes to drain.
func (p *persister) stop(ctx context.Context) error {
	if p == nil || p.stopped {
		return nil
	}

	p.stopped = true
	close(p.ops)

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *persister) enqueue(name string, fn func(repo database.Repository) error) {
	if p == nil || p.stopped {
		return
	}

	select {
	case p.ops <- persistOp{name: name, fn: fn}:
	default:
		p.log.Printf("persist queue full, dropping %s", name)
	}
}

func (p *persister) createMeeting(params database.CreateMeetingParams) {
	p.enqueue("CreateMeeting", func(repo database.Repository) error {
		_, err := repo.CreateMeeting(params)
		return err
	})
}

func (p *persister) deactivateMeeting(meetingId string) {
	p.enqueue("DeactivateMeeting", func(repo database.Repository) error {
		return repo.DeactivateMeeting(meetingId)
	})
}

func (p *persister) clearSession(meetingId string) {
	p.enqueue("ClearMeetingSession", func(repo database.Repository) error {
		return repo.ClearMeetingSession(meetingId)
	})
}

func (p *persister) upsertParticipant(meetingId string, participant types.Participant) {
	row := toDBParticipant(meetingId, participant)
	p.enqueue("UpsertParticipant", func(repo database.Repository) error {
		return repo.UpsertParticipant(meetingId, row)
	})
}

func (p *persister) deleteParticipant(meetingId, participantId string) {
	p.enqueue("DeleteParticipant", func(repo database.Repository) error {
		return repo.DeleteParticipant(meetingId, participantId)
	})
}

func (p *persister) insertQueueEntry(meetingId string, entry types.QueueEntry) {
	row := toDBQueueEntry(meetingId, entry)
	p.enqueue("InsertQueueEntry", func(repo database.Repository) error {
		return repo.InsertQueueEntry(meetingId, row)
	})
}

// removeQueueEntry deletes the entry and renumbers the remaining rows.
func (p *persister) removeQueueEntry(meetingId, entryId string, remaining []types.QueueEntry) {
	p.enqueue("DeleteQueueEntry", func(repo database.Repository) error {
		return repo.DeleteQueueEntry(entryId)
	})
	p.syncQueue(meetingId, remaining)
}

func (p *persister) syncQueue(meetingId string, entries []types.QueueEntry) {
	if len(entries) == 0 {
		return
	}

	rows := make([]database.QueueEntry, len(entries))
	for i, e := range entries {
		rows[i] = toDBQueueEntry(meetingId, e)
	}

	p.enqueue("SyncQueue", func(repo database.Repository) error {
		return repo.SyncQueue(meetingId, rows)
	})
}

func toDBParticipant(meetingId string, p types.Participant) database.Participant {
	row := database.Participant{
		Id:            p.Id,
		MeetingId:     meetingId,
		Name:          p.Name,
		IsFacilitator: p.IsFacilitator,
		IsInQueue:     p.IsInQueue,
		JoinedAt:      p.JoinedAt,
	}
	if p.QueuePosition != nil {
		row.QueuePosition = sql.NullInt64{Int64: int64(*p.QueuePosition), Valid: true}
	}
	return row
}

func toDBQueueEntry(meetingId string, e types.QueueEntry) database.QueueEntry {
	return database.QueueEntry{
		Id:              e.Id,
		MeetingId:       meetingId,
		ParticipantId:   e.ParticipantId,
		ParticipantName: e.ParticipantName,
		Type:            string(e.Type),
		Position:        e.Position,
		CreatedAt:       e.Timestamp,
	}
}
