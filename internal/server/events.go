package server

type Audience int

const (
	// AudienceActor is the requesting connection only.
	AudienceActor Audience = iota
	// AudienceRoom is every connection in the meeting's room, actor included.
	AudienceRoom
	// AudienceOthers is the room without the actor.
	AudienceOthers
	// AudienceConnection is the single connection named by Delivery.Target.
	AudienceConnection
)

func (a Audience) String() string {
	switch a {
	case AudienceRoom:
		return "room"
	case AudienceOthers:
		return "others"
	case AudienceConnection:
		return "connection"
	default:
		return "actor"
	}
}

type Delivery struct {
	Audience Audience
	// Target is the connection id for AudienceConnection.
	Target string
	Event  *ServerEvent
}

func toActor(id int, p Payload) Delivery {
	ev := newEvent(p)
	ev.Id = id
	return Delivery{Audience: AudienceActor, Event: ev}
}

func toRoom(p Payload) Delivery {
	return Delivery{Audience: AudienceRoom, Event: newEvent(p)}
}

func toOthers(p Payload) Delivery {
	return Delivery{Audience: AudienceOthers, Event: newEvent(p)}
}

// JoinEvents acknowledges a join to the actor and, unless the join was a
// repeat from the same connection, announces it to the room. Connections
// replaced by the join are told they lost their session.
func JoinEvents(id int, o *JoinOutcome) []Delivery {
	ds := []Delivery{
		toActor(id, MeetingJoined{
			Meeting:      o.Snapshot.Meeting,
			Participant:  o.Participant,
			Queue:        o.Snapshot.Queue,
			Participants: o.Snapshot.Participants,
		}),
	}

	if o.Repeat {
		return ds
	}

	ds = append(ds,
		toOthers(ParticipantJoined{
			Participant:      o.Participant,
			ParticipantCount: len(o.Snapshot.Participants),
		}),
		toRoom(ParticipantsUpdated{Participants: o.Snapshot.Participants}),
	)

	for _, id := range o.Replaced {
		ds = append(ds, Delivery{
			Audience: AudienceConnection,
			Target:   id,
			Event:    ErrorEvent(0, ErrSessionReplaced()),
		})
	}

	return ds
}

func WatchEvents(id int, o *WatchOutcome) []Delivery {
	return []Delivery{
		toActor(id, MeetingWatched{
			Meeting:      o.Snapshot.Meeting,
			Queue:        o.Snapshot.Queue,
			Participants: o.Snapshot.Participants,
		}),
	}
}

// EnqueueEvents also refreshes the roster, whose queue flags changed.
func EnqueueEvents(o *EnqueueOutcome) []Delivery {
	return []Delivery{
		toRoom(QueueUpdated{Queue: o.Snapshot.Queue}),
		toRoom(ParticipantsUpdated{Participants: o.Snapshot.Participants}),
	}
}

// LeaveQueueEvents is empty when nothing was removed.
func LeaveQueueEvents(o *LeaveQueueOutcome) []Delivery {
	if o.Entry == nil {
		return nil
	}

	return []Delivery{
		toRoom(QueueUpdated{Queue: o.Snapshot.Queue}),
		toRoom(ParticipantLeftQueue{
			ParticipantId:   o.Entry.ParticipantId,
			ParticipantName: o.Entry.ParticipantName,
			QueueLength:     len(o.Snapshot.Queue),
		}),
		toRoom(ParticipantsUpdated{Participants: o.Snapshot.Participants}),
	}
}

func AdvanceEvents(o *AdvanceOutcome) []Delivery {
	current := o.Popped
	return []Delivery{
		toRoom(NextSpeaker{QueueEntry: o.Popped}),
		toRoom(QueueUpdated{Queue: o.Snapshot.Queue}),
		toRoom(ParticipantsUpdated{Participants: o.Snapshot.Participants}),
		toRoom(SpeakerChanged{
			PreviousSpeaker: o.Previous,
			CurrentSpeaker:  &current,
			CurrentQueue:    o.Snapshot.Queue,
			QueueLength:     len(o.Snapshot.Queue),
		}),
	}
}

// DisconnectEvents goes to the connections left in the room. Watchers and
// connections replaced by a rejoin produce nothing.
func DisconnectEvents(o *DisconnectOutcome) []Delivery {
	if o == nil || o.Participant == nil {
		return nil
	}

	return []Delivery{
		toRoom(ParticipantLeft{
			ParticipantId:    o.Participant.Id,
			ParticipantName:  o.Participant.Name,
			ParticipantCount: len(o.Snapshot.Participants),
		}),
		toRoom(QueueUpdated{Queue: o.Snapshot.Queue}),
		toRoom(ParticipantsUpdated{Participants: o.Snapshot.Participants}),
	}
}

// LeaveMeetingEvents acknowledges a client-initiated leave to the actor and
// announces it to the connections left in the room.
func LeaveMeetingEvents(id int, o *DisconnectOutcome) []Delivery {
	ds := []Delivery{toActor(id, MeetingLeft{MeetingCode: o.Code})}
	return append(ds, DisconnectEvents(o)...)
}

func ErrorEvents(id int, err error) []Delivery {
	return []Delivery{{Audience: AudienceActor, Event: ErrorEvent(id, err)}}
}
