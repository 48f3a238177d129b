package server

import (
	"slices"
	"time"

	"github.com/npezzotti/speakup/internal/types"
)

// Meeting is one live session. Its roster and queue are only mutated by the
// methods in this file, and only from the server's event loop.
type Meeting struct {
	Id              string
	Code            string
	Title           string
	FacilitatorName string
	CreatedAt       time.Time
	IsActive        bool
	CurrentSpeaker  *types.QueueEntry

	participants []types.Participant
	queue        []types.QueueEntry
	// onEmpty is called once the last participant leaves the roster
	onEmpty func(m *Meeting)
}

func newMeeting(id, code, title, facilitatorName string, createdAt time.Time) *Meeting {
	return &Meeting{
		Id:              id,
		Code:            code,
		Title:           title,
		FacilitatorName: facilitatorName,
		CreatedAt:       createdAt,
		IsActive:        true,
		participants:    make([]types.Participant, 0),
		queue:           make([]types.QueueEntry, 0),
	}
}

// AddParticipant appends p to the roster. If a participant with the same name
// and role already exists, its id and join time are overwritten instead and the
// merged record is returned with rejoined set. A queue entry held under the old
// id follows the participant to the new one.
func (m *Meeting) AddParticipant(p types.Participant) (merged types.Participant, rejoined bool) {
	for i := range m.participants {
		existing := &m.participants[i]
		if existing.Name != p.Name || existing.IsFacilitator != p.IsFacilitator {
			continue
		}

		oldId := existing.Id
		existing.Id = p.Id
		existing.JoinedAt = p.JoinedAt
		for j := range m.queue {
			if m.queue[j].ParticipantId == oldId {
				m.queue[j].ParticipantId = p.Id
			}
		}

		return *existing, true
	}

	m.participants = append(m.participants, p)
	return p, false
}

// RemoveParticipant drops the participant from the roster only; the caller is
// responsible for clearing its queue entry. Emptying the roster deactivates the
// meeting.
func (m *Meeting) RemoveParticipant(participantId string) *types.Participant {
	i := m.participantIndex(participantId)
	if i < 0 {
		return nil
	}

	removed := m.participants[i]
	m.participants = slices.Delete(m.participants, i, i+1)

	if len(m.participants) == 0 {
		m.IsActive = false
		if m.onEmpty != nil {
			m.onEmpty(m)
		}
	}

	return &removed
}

// Enqueue appends entry at the tail. It returns nil if the participant already
// holds an entry.
func (m *Meeting) Enqueue(entry types.QueueEntry) *types.QueueEntry {
	if m.queueIndex(entry.ParticipantId) >= 0 {
		return nil
	}

	m.queue = append(m.queue, entry)
	m.queue[len(m.queue)-1].Position = len(m.queue)

	added := m.queue[len(m.queue)-1]
	return &added
}

func (m *Meeting) DequeueByParticipant(participantId string) *types.QueueEntry {
	i := m.queueIndex(participantId)
	if i < 0 {
		return nil
	}

	return m.removeQueueAt(i)
}

// PopNext removes the head of the queue. All request types share one FIFO lane.
func (m *Meeting) PopNext() *types.QueueEntry {
	if len(m.queue) == 0 {
		return nil
	}

	return m.removeQueueAt(0)
}

func (m *Meeting) UpdateParticipantQueueStatus(participantId string, isInQueue bool, position *int) bool {
	i := m.participantIndex(participantId)
	if i < 0 {
		return false
	}

	m.participants[i].IsInQueue = isInQueue
	if position != nil {
		pos := *position
		m.participants[i].QueuePosition = &pos
	} else {
		m.participants[i].QueuePosition = nil
	}

	return true
}

// syncQueueStatus refreshes the cached queue fields of every participant from
// the current queue and returns the participants whose fields changed.
func (m *Meeting) syncQueueStatus() []types.Participant {
	var changed []types.Participant
	for i := range m.participants {
		p := &m.participants[i]

		inQueue, position := false, (*int)(nil)
		if j := m.queueIndex(p.Id); j >= 0 {
			inQueue, position = true, &m.queue[j].Position
		}

		if p.IsInQueue == inQueue && samePosition(p.QueuePosition, position) {
			continue
		}

		m.UpdateParticipantQueueStatus(p.Id, inQueue, position)
		changed = append(changed, *p)
	}

	return changed
}

func samePosition(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (m *Meeting) removeQueueAt(i int) *types.QueueEntry {
	removed := m.queue[i]
	m.queue = slices.Delete(m.queue, i, i+1)

	for j := range m.queue {
		m.queue[j].Position = j + 1
	}

	return &removed
}

func (m *Meeting) participantIndex(id string) int {
	return slices.IndexFunc(m.participants, func(p types.Participant) bool {
		return p.Id == id
	})
}

func (m *Meeting) queueIndex(participantId string) int {
	return slices.IndexFunc(m.queue, func(e types.QueueEntry) bool {
		return e.ParticipantId == participantId
	})
}

func (m *Meeting) Participant(id string) (types.Participant, bool) {
	i := m.participantIndex(id)
	if i < 0 {
		return types.Participant{}, false
	}
	return m.participants[i], true
}

func (m *Meeting) ParticipantCount() int {
	return len(m.participants)
}

func (m *Meeting) QueueLen() int {
	return len(m.queue)
}

// Participants returns a copy of the roster in join order.
func (m *Meeting) Participants() []types.Participant {
	return slices.Clone(m.participants)
}

// Queue returns a copy of the queue in speaking order.
func (m *Meeting) Queue() []types.QueueEntry {
	return slices.Clone(m.queue)
}

func (m *Meeting) Summary() types.MeetingSummary {
	s := types.MeetingSummary{
		Id:              m.Id,
		Code:            m.Code,
		Title:           m.Title,
		FacilitatorName: m.FacilitatorName,
		CreatedAt:       m.CreatedAt,
		IsActive:        m.IsActive,
	}
	if m.CurrentSpeaker != nil {
		cur := *m.CurrentSpeaker
		s.CurrentSpeaker = &cur
	}
	return s
}

func (m *Meeting) Info() types.MeetingInfo {
	return types.MeetingInfo{
		Code:             m.Code,
		Title:            m.Title,
		Facilitator:      m.FacilitatorName,
		ParticipantCount: len(m.participants),
		IsActive:         m.IsActive,
	}
}

// Snapshot copies the whole meeting state so it can be handed to client
// goroutines while the loop keeps mutating the meeting.
func (m *Meeting) Snapshot() types.MeetingSnapshot {
	return types.MeetingSnapshot{
		Meeting:      m.Summary(),
		Queue:        m.Queue(),
		Participants: m.Participants(),
	}
}
