package database

import (
	"context"
	"time"
)

func (db *PgRepository) CreateMeeting(params CreateMeetingParams) (Meeting, error) {
	res := db.conn.QueryRow(
		"INSERT INTO meetings (id, code, title, facilitator_name, is_active, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, TRUE, $5, $5) "+
			"RETURNING id, code, title, facilitator_name, is_active, created_at, updated_at",
		params.Id,
		params.Code,
		params.Title,
		params.FacilitatorName,
		params.CreatedAt,
	)

	var m Meeting
	err := res.Scan(
		&m.Id,
		&m.Code,
		&m.Title,
		&m.FacilitatorName,
		&m.IsActive,
		&m.CreatedAt,
		&m.UpdatedAt,
	)

	return m, err
}

// FindMeetingByCode returns the active meeting holding code, or sql.ErrNoRows.
func (db *PgRepository) FindMeetingByCode(ctx context.Context, code string) (Meeting, error) {
	row := db.conn.QueryRowContext(
		ctx,
		"SELECT id, code, title, facilitator_name, is_active, created_at, updated_at FROM meetings "+
			"WHERE code = $1 AND is_active LIMIT 1",
		code,
	)

	var m Meeting
	err := row.Scan(
		&m.Id,
		&m.Code,
		&m.Title,
		&m.FacilitatorName,
		&m.IsActive,
		&m.CreatedAt,
		&m.UpdatedAt,
	)

	return m, err
}

func (db *PgRepository) DeactivateMeeting(meetingId string) error {
	_, err := db.conn.Exec(
		"UPDATE meetings SET is_active = FALSE, updated_at = $2 WHERE id = $1",
		meetingId,
		time.Now().UTC(),
	)

	return err
}

// ClearMeetingSession drops every participant and queue row of a meeting.
func (db *PgRepository) ClearMeetingSession(meetingId string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	_, err = tx.Exec("DELETE FROM queue_entries WHERE meeting_id = $1", meetingId)
	if err != nil {
		return err
	}

	_, err = tx.Exec("DELETE FROM participants WHERE meeting_id = $1", meetingId)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (db *PgRepository) UpsertParticipant(meetingId string, p Participant) error {
	_, err := db.conn.Exec(
		"INSERT INTO participants (id, meeting_id, name, is_facilitator, is_in_queue, queue_position, joined_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7) "+
			"ON CONFLICT (meeting_id, name, is_facilitator) DO UPDATE "+
			"SET id = EXCLUDED.id, is_in_queue = EXCLUDED.is_in_queue, "+
			"queue_position = EXCLUDED.queue_position, joined_at = EXCLUDED.joined_at",
		p.Id,
		meetingId,
		p.Name,
		p.IsFacilitator,
		p.IsInQueue,
		p.QueuePosition,
		p.JoinedAt,
	)

	return err
}

func (db *PgRepository) DeleteParticipant(meetingId, participantId string) error {
	_, err := db.conn.Exec(
		"DELETE FROM participants WHERE meeting_id = $1 AND id = $2",
		meetingId,
		participantId,
	)

	return err
}

func (db *PgRepository) InsertQueueEntry(meetingId string, e QueueEntry) error {
	_, err := db.conn.Exec(
		"INSERT INTO queue_entries (id, meeting_id, participant_id, participant_name, type, position, created_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7)",
		e.Id,
		meetingId,
		e.ParticipantId,
		e.ParticipantName,
		e.Type,
		e.Position,
		e.CreatedAt,
	)

	return err
}

func (db *PgRepository) DeleteQueueEntry(entryId string) error {
	_, err := db.conn.Exec("DELETE FROM queue_entries WHERE id = $1", entryId)

	return err
}

// SyncQueue rewrites position and participant_id of every given entry so the
// stored queue matches the in-memory one after renumbering or a rejoin.
func (db *PgRepository) SyncQueue(meetingId string, entries []QueueEntry) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	for _, e := range entries {
		_, err = tx.Exec(
			"UPDATE queue_entries SET position = $1, participant_id = $2 WHERE id = $3 AND meeting_id = $4",
			e.Position,
			e.ParticipantId,
			e.Id,
			meetingId,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}
