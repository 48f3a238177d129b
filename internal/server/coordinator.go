package server

import (
	"log"

	"github.com/google/uuid"
	"github.com/npezzotti/speakup/internal/types"
)

type Role int

const (
	RoleParticipant Role = iota
	RoleFacilitator
	RoleWatcher
)

func (r Role) String() string {
	switch r {
	case RoleFacilitator:
		return "facilitator"
	case RoleWatcher:
		return "watcher"
	default:
		return "participant"
	}
}

// session maps one connection to its meeting. Watchers have no participant.
type session struct {
	meetingCode   string
	participantId string
	role          Role
}

type JoinOutcome struct {
	Code        string
	Participant types.Participant
	Snapshot    types.MeetingSnapshot
	// Repeat is set when the connection had already joined; nothing changed.
	Repeat bool
	// Rejoined is set when an existing roster entry was taken over.
	Rejoined bool
	// Replaced lists the connections that lost their session to the rejoin.
	Replaced []string
}

type WatchOutcome struct {
	Code     string
	Snapshot types.MeetingSnapshot
	Repeat   bool
}

type EnqueueOutcome struct {
	Code     string
	Entry    types.QueueEntry
	Snapshot types.MeetingSnapshot
}

type LeaveQueueOutcome struct {
	Code string
	// Entry is nil when the participant was not queued.
	Entry    *types.QueueEntry
	Snapshot types.MeetingSnapshot
}

type AdvanceOutcome struct {
	Code     string
	Popped   types.QueueEntry
	Previous *types.QueueEntry
	Snapshot types.MeetingSnapshot
}

type DisconnectOutcome struct {
	Code    string
	Watcher bool
	// Participant is nil when nothing was removed from the roster.
	Participant *types.Participant
	Entry       *types.QueueEntry
	Snapshot    types.MeetingSnapshot
	Ended       bool
}

// SessionCoordinator tracks which meeting and participant each connection
// belongs to and turns client requests into queue operations. Like the
// registry, it is owned by the server loop.
type SessionCoordinator struct {
	log        *log.Logger
	registry   *MeetingRegistry
	persist    *persister
	sessions   map[string]*session
	newEntryId func() string
}

func NewSessionCoordinator(logger *log.Logger, registry *MeetingRegistry, p *persister) *SessionCoordinator {
	return &SessionCoordinator{
		log:        logger,
		registry:   registry,
		persist:    p,
		sessions:   make(map[string]*session),
		newEntryId: uuid.NewString,
	}
}

func (c *SessionCoordinator) Join(actorId, meetingCode, name string, wantsFacilitator bool) (*JoinOutcome, error) {
	code, err := validateMeetingCode(meetingCode)
	if err != nil {
		return nil, err
	}

	name, err = sanitizeParticipantName(name)
	if err != nil {
		return nil, err
	}

	m := c.registry.GetMeeting(code)
	if m == nil {
		return nil, ErrMeetingNotFound()
	}

	if wantsFacilitator && name != m.FacilitatorName {
		return nil, ErrUnauthorizedFacilitator()
	}

	if out := c.repeatJoin(actorId); out != nil {
		return out, nil
	}

	p, rejoined := m.AddParticipant(types.Participant{
		Id:            actorId,
		Name:          name,
		IsFacilitator: wantsFacilitator,
		JoinedAt:      Now(),
	})

	var replaced []string
	if rejoined {
		replaced = c.dropStaleSessions(m)
		c.persist.syncQueue(m.Id, m.queue)
	}
	c.persist.upsertParticipant(m.Id, p)

	role := RoleParticipant
	if p.IsFacilitator {
		role = RoleFacilitator
	}
	c.sessions[actorId] = &session{meetingCode: m.Code, participantId: p.Id, role: role}

	c.log.Printf("%s %q joined meeting %q as %s", actorId, p.Name, m.Code, role)

	return &JoinOutcome{
		Code:        m.Code,
		Participant: p,
		Snapshot:    m.Snapshot(),
		Rejoined:    rejoined,
		Replaced:    replaced,
	}, nil
}

// repeatJoin returns the current state for a connection that has already
// joined a meeting, or nil if it should join normally.
func (c *SessionCoordinator) repeatJoin(actorId string) *JoinOutcome {
	s, ok := c.sessions[actorId]
	if !ok {
		return nil
	}

	if s.role == RoleWatcher {
		// a watcher may become a participant
		delete(c.sessions, actorId)
		return nil
	}

	m := c.registry.GetMeeting(s.meetingCode)
	if m == nil {
		delete(c.sessions, actorId)
		return nil
	}

	p, ok := m.Participant(s.participantId)
	if !ok {
		delete(c.sessions, actorId)
		return nil
	}

	return &JoinOutcome{
		Code:        m.Code,
		Participant: p,
		Snapshot:    m.Snapshot(),
		Repeat:      true,
	}
}

// dropStaleSessions forgets connections whose participant was taken over by
// a rejoin from another connection and returns their ids.
func (c *SessionCoordinator) dropStaleSessions(m *Meeting) []string {
	var dropped []string
	for actorId, s := range c.sessions {
		if s.meetingCode != m.Code || s.role == RoleWatcher {
			continue
		}
		if _, ok := m.Participant(s.participantId); !ok {
			c.log.Printf("%s replaced by a rejoin in meeting %q", actorId, m.Code)
			delete(c.sessions, actorId)
			dropped = append(dropped, actorId)
		}
	}

	return dropped
}

// Watch attaches a read-only connection to a meeting.
func (c *SessionCoordinator) Watch(actorId, meetingCode string) (*WatchOutcome, error) {
	code, err := validateMeetingCode(meetingCode)
	if err != nil {
		return nil, err
	}

	m := c.registry.GetMeeting(code)
	if m == nil {
		return nil, ErrMeetingNotFound()
	}

	if s, ok := c.sessions[actorId]; ok {
		if cur := c.registry.GetMeeting(s.meetingCode); cur != nil {
			return &WatchOutcome{Code: cur.Code, Snapshot: cur.Snapshot(), Repeat: true}, nil
		}
		delete(c.sessions, actorId)
	}

	c.sessions[actorId] = &session{meetingCode: m.Code, role: RoleWatcher}
	c.log.Printf("%s watching meeting %q", actorId, m.Code)

	return &WatchOutcome{Code: m.Code, Snapshot: m.Snapshot()}, nil
}

func (c *SessionCoordinator) RequestQueue(actorId string, queueType types.QueueType) (*EnqueueOutcome, error) {
	m, p, err := c.participantSession(actorId)
	if err != nil {
		return nil, err
	}

	if !queueType.Valid() {
		return nil, ErrValidation(CodeInvalidQueueType, "Invalid queue type")
	}

	added := m.Enqueue(types.QueueEntry{
		Id:              c.newEntryId(),
		ParticipantId:   p.Id,
		ParticipantName: p.Name,
		Type:            queueType,
		Timestamp:       Now(),
	})
	if added == nil {
		return nil, ErrAlreadyInQueue()
	}

	m.UpdateParticipantQueueStatus(p.Id, true, &added.Position)

	c.persist.insertQueueEntry(m.Id, *added)
	if updated, ok := m.Participant(p.Id); ok {
		c.persist.upsertParticipant(m.Id, updated)
	}

	return &EnqueueOutcome{Code: m.Code, Entry: *added, Snapshot: m.Snapshot()}, nil
}

// LeaveQueue removes the caller's entry. Leaving while not queued succeeds
// with a nil Entry.
func (c *SessionCoordinator) LeaveQueue(actorId string) (*LeaveQueueOutcome, error) {
	m, p, err := c.participantSession(actorId)
	if err != nil {
		return nil, err
	}

	removed := m.DequeueByParticipant(p.Id)
	if removed != nil {
		changed := m.syncQueueStatus()
		c.persist.removeQueueEntry(m.Id, removed.Id, m.queue)
		c.persistParticipants(m, changed)
	}

	return &LeaveQueueOutcome{Code: m.Code, Entry: removed, Snapshot: m.Snapshot()}, nil
}

// AdvanceQueue pops the head of the queue. Only the facilitator may call it.
func (c *SessionCoordinator) AdvanceQueue(actorId string) (*AdvanceOutcome, error) {
	m, p, err := c.participantSession(actorId)
	if err != nil {
		return nil, err
	}

	if !p.IsFacilitator {
		return nil, ErrUnauthorizedAction("Only the facilitator can advance the queue")
	}

	popped := m.PopNext()
	if popped == nil {
		return nil, ErrQueueEmpty()
	}

	changed := m.syncQueueStatus()

	previous := m.CurrentSpeaker
	m.CurrentSpeaker = popped

	c.persist.removeQueueEntry(m.Id, popped.Id, m.queue)
	c.persistParticipants(m, changed)

	c.log.Printf("meeting %q: next speaker %q (%s)", m.Code, popped.ParticipantName, popped.Type)

	return &AdvanceOutcome{
		Code:     m.Code,
		Popped:   *popped,
		Previous: previous,
		Snapshot: m.Snapshot(),
	}, nil
}

// Disconnect removes the connection's participant from both the roster and
// the queue and forgets the connection. It returns nil if the connection had
// not joined anything.
func (c *SessionCoordinator) Disconnect(actorId string) *DisconnectOutcome {
	s, ok := c.sessions[actorId]
	if !ok {
		return nil
	}
	delete(c.sessions, actorId)

	out := &DisconnectOutcome{Code: s.meetingCode, Watcher: s.role == RoleWatcher}
	if out.Watcher {
		return out
	}

	m := c.registry.GetMeeting(s.meetingCode)
	if m == nil {
		return out
	}

	out.Entry = m.DequeueByParticipant(s.participantId)
	if out.Entry != nil {
		c.persist.removeQueueEntry(m.Id, out.Entry.Id, m.queue)
	}

	out.Participant = m.RemoveParticipant(s.participantId)
	if out.Participant != nil {
		c.persist.deleteParticipant(m.Id, out.Participant.Id)
		c.log.Printf("%s %q left meeting %q", actorId, out.Participant.Name, m.Code)
	}

	c.persistParticipants(m, m.syncQueueStatus())
	out.Snapshot = m.Snapshot()
	out.Ended = !m.IsActive

	return out
}

// LeaveMeeting is the client-initiated form of Disconnect.
func (c *SessionCoordinator) LeaveMeeting(actorId string) (*DisconnectOutcome, error) {
	if _, ok := c.sessions[actorId]; !ok {
		return nil, ErrNotInMeeting()
	}

	return c.Disconnect(actorId), nil
}

func (c *SessionCoordinator) persistParticipants(m *Meeting, ps []types.Participant) {
	for _, p := range ps {
		c.persist.upsertParticipant(m.Id, p)
	}
}

// participantSession resolves the meeting and participant behind a
// connection for a queue operation.
func (c *SessionCoordinator) participantSession(actorId string) (*Meeting, types.Participant, error) {
	s, ok := c.sessions[actorId]
	if !ok {
		return nil, types.Participant{}, ErrNotInMeeting()
	}

	if s.role == RoleWatcher {
		return nil, types.Participant{}, ErrUnauthorizedAction("Watchers cannot change the queue")
	}

	m := c.registry.GetMeeting(s.meetingCode)
	if m == nil {
		delete(c.sessions, actorId)
		return nil, types.Participant{}, ErrNotInMeeting()
	}

	p, ok := m.Participant(s.participantId)
	if !ok {
		delete(c.sessions, actorId)
		return nil, types.Participant{}, ErrNotInMeeting()
	}

	return m, p, nil
}

// Session reports the meeting code and role of a connection.
func (c *SessionCoordinator) Session(actorId string) (code string, role Role, ok bool) {
	s, ok := c.sessions[actorId]
	if !ok {
		return "", 0, false
	}
	return s.meetingCode, s.role, true
}
