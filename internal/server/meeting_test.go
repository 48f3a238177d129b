package server

import (
	"testing"
	"time"

	"github.com/npezzotti/speakup/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMeeting() *Meeting {
	return newMeeting("m1", "ABC123", "Standup", "Alice", time.Now())
}

func participant(id, name string, facilitator bool) types.Participant {
	return types.Participant{Id: id, Name: name, IsFacilitator: facilitator, JoinedAt: Now()}
}

func entry(id, participantId string, qt types.QueueType) types.QueueEntry {
	return types.QueueEntry{Id: id, ParticipantId: participantId, ParticipantName: participantId, Type: qt, Timestamp: Now()}
}

func assertContiguous(t *testing.T, q []types.QueueEntry) {
	t.Helper()
	for i, e := range q {
		assert.Equal(t, i+1, e.Position, "queue positions must be 1..n")
	}
}

func TestMeeting_AddParticipant(t *testing.T) {
	m := testMeeting()

	p, rejoined := m.AddParticipant(participant("c1", "Bob", false))
	assert.False(t, rejoined)
	assert.Equal(t, "c1", p.Id)

	_, rejoined = m.AddParticipant(participant("c2", "Carol", false))
	assert.False(t, rejoined)
	assert.Equal(t, 2, m.ParticipantCount())

	t.Run("same name and role merges", func(t *testing.T) {
		m.Enqueue(entry("e1", "c1", types.QueueTypeSpeak))

		merged, rejoined := m.AddParticipant(participant("c3", "Bob", false))
		assert.True(t, rejoined)
		assert.Equal(t, "c3", merged.Id)
		assert.Equal(t, 2, m.ParticipantCount())

		_, ok := m.Participant("c1")
		assert.False(t, ok, "old id should be gone")

		q := m.Queue()
		require.Len(t, q, 1)
		assert.Equal(t, "c3", q[0].ParticipantId, "queue entry should follow the rejoin")
	})

	t.Run("same name different role is a new participant", func(t *testing.T) {
		_, rejoined := m.AddParticipant(participant("c4", "Bob", true))
		assert.False(t, rejoined)
		assert.Equal(t, 3, m.ParticipantCount())
	})
}

func TestMeeting_RemoveParticipant(t *testing.T) {
	m := testMeeting()
	var emptied *Meeting
	m.onEmpty = func(em *Meeting) { emptied = em }

	m.AddParticipant(participant("c1", "Alice", true))
	m.AddParticipant(participant("c2", "Bob", false))
	m.Enqueue(entry("e1", "c2", types.QueueTypeSpeak))

	assert.Nil(t, m.RemoveParticipant("unknown"))

	removed := m.RemoveParticipant("c2")
	require.NotNil(t, removed)
	assert.Equal(t, "Bob", removed.Name)
	assert.Equal(t, 1, m.QueueLen(), "queue is left to the caller")
	assert.True(t, m.IsActive)
	assert.Nil(t, emptied)

	m.RemoveParticipant("c1")
	assert.False(t, m.IsActive)
	assert.Same(t, m, emptied)
}

func TestMeeting_Enqueue(t *testing.T) {
	m := testMeeting()
	m.AddParticipant(participant("c1", "Bob", false))
	m.AddParticipant(participant("c2", "Carol", false))

	first := m.Enqueue(entry("e1", "c1", types.QueueTypeSpeak))
	require.NotNil(t, first)
	assert.Equal(t, 1, first.Position)

	second := m.Enqueue(entry("e2", "c2", types.QueueTypeClarification))
	require.NotNil(t, second)
	assert.Equal(t, 2, second.Position)

	assert.Nil(t, m.Enqueue(entry("e3", "c1", types.QueueTypePointOfInfo)), "one entry per participant")
	assert.Equal(t, 2, m.QueueLen())
	assertContiguous(t, m.Queue())
}

func TestMeeting_DequeueByParticipant(t *testing.T) {
	m := testMeeting()
	for _, id := range []string{"a", "b", "c", "d"} {
		m.AddParticipant(participant(id, id, false))
		m.Enqueue(entry("e-"+id, id, types.QueueTypeSpeak))
	}

	removed := m.DequeueByParticipant("b")
	require.NotNil(t, removed)
	assert.Equal(t, "e-b", removed.Id)
	assert.Equal(t, 2, removed.Position)

	q := m.Queue()
	require.Len(t, q, 3)
	assert.Equal(t, []string{"a", "c", "d"}, []string{q[0].ParticipantId, q[1].ParticipantId, q[2].ParticipantId})
	assertContiguous(t, q)

	assert.Nil(t, m.DequeueByParticipant("b"))
}

func TestMeeting_PopNext(t *testing.T) {
	m := testMeeting()
	assert.Nil(t, m.PopNext())

	kinds := []types.QueueType{types.QueueTypeClarification, types.QueueTypeSpeak, types.QueueTypeDirectResponse}
	for i, id := range []string{"a", "b", "c"} {
		m.AddParticipant(participant(id, id, false))
		m.Enqueue(entry("e-"+id, id, kinds[i]))
	}

	var order []string
	for m.QueueLen() > 0 {
		popped := m.PopNext()
		require.NotNil(t, popped)
		order = append(order, popped.ParticipantId)
		assertContiguous(t, m.Queue())
	}

	assert.Equal(t, []string{"a", "b", "c"}, order, "all types share one FIFO lane")
}

func TestMeeting_syncQueueStatus(t *testing.T) {
	m := testMeeting()
	for _, id := range []string{"a", "b", "c"} {
		m.AddParticipant(participant(id, id, false))
		e := m.Enqueue(entry("e-"+id, id, types.QueueTypeSpeak))
		m.UpdateParticipantQueueStatus(id, true, &e.Position)
	}

	m.PopNext()
	m.UpdateParticipantQueueStatus("a", false, nil)
	changed := m.syncQueueStatus()

	var ids []string
	for _, p := range changed {
		ids = append(ids, p.Id)
	}
	assert.Equal(t, []string{"b", "c"}, ids, "only renumbered participants are reported")
	assert.Empty(t, m.syncQueueStatus())

	a, _ := m.Participant("a")
	assert.False(t, a.IsInQueue)
	assert.Nil(t, a.QueuePosition)

	for id, want := range map[string]int{"b": 1, "c": 2} {
		p, _ := m.Participant(id)
		assert.True(t, p.IsInQueue)
		require.NotNil(t, p.QueuePosition)
		assert.Equal(t, want, *p.QueuePosition)
	}

	assert.False(t, m.UpdateParticipantQueueStatus("missing", true, nil))
}

func TestMeeting_SnapshotIsCopy(t *testing.T) {
	m := testMeeting()
	m.AddParticipant(participant("a", "a", false))
	m.Enqueue(entry("e-a", "a", types.QueueTypeSpeak))
	popped := m.PopNext()
	m.CurrentSpeaker = popped

	snap := m.Snapshot()
	snap.Participants[0].Name = "changed"
	snap.Meeting.CurrentSpeaker.ParticipantName = "changed"

	p, _ := m.Participant("a")
	assert.Equal(t, "a", p.Name)
	assert.Equal(t, "a", m.CurrentSpeaker.ParticipantName)

	info := m.Info()
	assert.Equal(t, types.MeetingInfo{
		Code:             "ABC123",
		Title:            "Standup",
		Facilitator:      "Alice",
		ParticipantCount: 1,
		IsActive:         true,
	}, info)
}
