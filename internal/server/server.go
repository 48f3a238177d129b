package server

import (
	"context"
	"errors"
	"log"

	"github.com/npezzotti/speakup/internal/database"
	"github.com/npezzotti/speakup/internal/stats"
	"github.com/npezzotti/speakup/internal/types"
	"golang.org/x/time/rate"
)

const (
	statActiveClients  = "NumActiveClients"
	statQueuedRequests = "NumQueuedRequests"
	statSpeakersCalled = "NumSpeakersCalled"

	requestQueueSize = 256
)

// Actor is one connected client as seen by the server loop.
type Actor interface {
	ID() string
	// Send queues ev for delivery and reports whether it was accepted.
	Send(ev *ServerEvent) bool
	Close()
}

type clientRequest struct {
	actor Actor
	msg   *ClientMessage
	// lookedUp is set once the meeting code of the request went through a
	// cold lookup
	lookedUp bool
}

type stopRequest struct {
	ctx  context.Context
	done chan error
}

// QueueServer owns every meeting. All requests are processed one at a time by
// Run, so a mutation and the events it produces are never interleaved with
// another request.
type QueueServer struct {
	log         *log.Logger
	stats       stats.StatsProvider
	persist     *persister
	registry    *MeetingRegistry
	coordinator *SessionCoordinator
	actors      map[string]Actor
	// rooms maps a meeting code to the connections receiving its broadcasts
	rooms      map[string]map[string]Actor
	actorRooms map[string]string

	repo    database.Repository
	limiter *rate.Limiter
	// pending holds the callbacks waiting on the cold lookup of a code
	pending map[string][]func()
	// held holds, per connection, the requests queued behind a request
	// waiting on a cold lookup
	held map[string][]*clientRequest

	registerChan   chan Actor
	deregisterChan chan Actor
	requestChan    chan *clientRequest
	calls          chan func()
	lookupChan     chan lookupResult
	stop           chan stopRequest
	done           chan struct{}
}

func NewQueueServer(logger *log.Logger, repo database.Repository, su stats.StatsProvider) (*QueueServer, error) {
	for _, name := range []string{statActiveMeetings, statActiveClients, statQueuedRequests, statSpeakersCalled} {
		su.RegisterMetric(name)
	}

	p := newPersister(logger, repo)
	registry := NewMeetingRegistry(logger, repo, p, su)

	return &QueueServer{
		log:            logger,
		stats:          su,
		persist:        p,
		registry:       registry,
		coordinator:    NewSessionCoordinator(logger, registry, p),
		actors:         make(map[string]Actor),
		rooms:          make(map[string]map[string]Actor),
		actorRooms:     make(map[string]string),
		repo:           repo,
		limiter:        rate.NewLimiter(lookupRate, lookupBurst),
		pending:        make(map[string][]func()),
		held:           make(map[string][]*clientRequest),
		registerChan:   make(chan Actor),
		deregisterChan: make(chan Actor),
		requestChan:    make(chan *clientRequest, requestQueueSize),
		calls:          make(chan func()),
		lookupChan:     make(chan lookupResult),
		stop:           make(chan stopRequest),
		done:           make(chan struct{}),
	}, nil
}

func (s *QueueServer) Run() {
	if s.persist != nil {
		go s.persist.run()
	}

	for {
		select {
		case a := <-s.registerChan:
			s.addActor(a)
		case a := <-s.deregisterChan:
			s.removeActor(a)
		case req := <-s.requestChan:
			s.handleRequest(req)
		case fn := <-s.calls:
			fn()
		case res := <-s.lookupChan:
			s.handleLookup(res)
		case req := <-s.stop:
			err := s.handleStop(req.ctx)
			close(s.done)
			req.done <- err
			return
		}
	}
}

func (s *QueueServer) handleStop(ctx context.Context) error {
	s.log.Printf("stopping %d connections", len(s.actors))
	for _, a := range s.actors {
		a.Close()
	}

	return s.persist.stop(ctx)
}

func (s *QueueServer) addActor(a Actor) {
	s.actors[a.ID()] = a
	s.stats.Incr(statActiveClients)
	s.log.Printf("connection %s registered", a.ID())
}

func (s *QueueServer) removeActor(a Actor) {
	if _, ok := s.actors[a.ID()]; !ok {
		return
	}

	delete(s.actors, a.ID())
	delete(s.held, a.ID())
	s.stats.Decr(statActiveClients)

	out := s.coordinator.Disconnect(a.ID())
	s.leaveRoom(a)
	if out != nil {
		if out.Entry != nil {
			s.stats.Decr(statQueuedRequests)
		}
		s.dispatch(a, out.Code, DisconnectEvents(out))
	}

	s.log.Printf("connection %s deregistered", a.ID())
}

// handleRequest processes req unless an earlier request of the same
// connection is waiting on a cold lookup, in which case req waits behind it.
func (s *QueueServer) handleRequest(req *clientRequest) {
	id := req.actor.ID()
	if backlog, ok := s.held[id]; ok {
		s.held[id] = append(backlog, req)
		return
	}

	s.process(req)
}

func (s *QueueServer) process(req *clientRequest) {
	a, msg := req.actor, req.msg

	var (
		code string
		ds   []Delivery
		err  error
	)

	switch msg.Event {
	case EventJoinMeeting:
		var p JoinMeeting
		if err = msg.decodePayload(&p); err != nil {
			break
		}
		if !req.lookedUp && s.deferRequest(req, p.MeetingCode) {
			return
		}

		var out *JoinOutcome
		if out, err = s.coordinator.Join(a.ID(), p.MeetingCode, p.ParticipantName, p.IsFacilitator); err != nil {
			break
		}
		for _, id := range out.Replaced {
			s.leaveRoomById(id)
		}
		code, ds = out.Code, JoinEvents(msg.Id, out)
		s.joinRoom(a, code)
	case EventWatchMeeting:
		var p WatchMeeting
		if err = msg.decodePayload(&p); err != nil {
			break
		}
		if !req.lookedUp && s.deferRequest(req, p.MeetingCode) {
			return
		}

		var out *WatchOutcome
		if out, err = s.coordinator.Watch(a.ID(), p.MeetingCode); err != nil {
			break
		}
		code, ds = out.Code, WatchEvents(msg.Id, out)
		s.joinRoom(a, code)
	case EventJoinQueue:
		var p JoinQueue
		if err = msg.decodePayload(&p); err != nil {
			break
		}

		var out *EnqueueOutcome
		if out, err = s.coordinator.RequestQueue(a.ID(), p.Type); err != nil {
			break
		}
		s.stats.Incr(statQueuedRequests)
		code, ds = out.Code, EnqueueEvents(out)
	case EventLeaveQueue:
		var out *LeaveQueueOutcome
		if out, err = s.coordinator.LeaveQueue(a.ID()); err != nil {
			break
		}
		if out.Entry != nil {
			s.stats.Decr(statQueuedRequests)
		}
		code, ds = out.Code, LeaveQueueEvents(out)
	case EventNextSpeaker:
		var out *AdvanceOutcome
		if out, err = s.coordinator.AdvanceQueue(a.ID()); err != nil {
			break
		}
		s.stats.Decr(statQueuedRequests)
		s.stats.Incr(statSpeakersCalled)
		code, ds = out.Code, AdvanceEvents(out)
	case EventLeaveMeeting:
		var out *DisconnectOutcome
		if out, err = s.coordinator.LeaveMeeting(a.ID()); err != nil {
			break
		}
		if out.Entry != nil {
			s.stats.Decr(statQueuedRequests)
		}
		s.leaveRoom(a)
		code, ds = out.Code, LeaveMeetingEvents(msg.Id, out)
	default:
		err = ErrValidation(CodeInvalidMessage, "Unknown event "+msg.Event)
	}

	if err != nil {
		if e := AsError(err); e.Kind == KindInternal {
			s.log.Printf("%s %s: %v", a.ID(), msg.Event, err)
		}
		s.dispatch(a, "", ErrorEvents(msg.Id, err))
		return
	}

	s.dispatch(a, code, ds)
}

// joinRoom subscribes a to the broadcasts of code. A connection belongs to
// at most one room.
func (s *QueueServer) joinRoom(a Actor, code string) {
	if cur, ok := s.actorRooms[a.ID()]; ok {
		if cur == code {
			return
		}
		s.leaveRoom(a)
	}

	if s.rooms[code] == nil {
		s.rooms[code] = make(map[string]Actor)
	}
	s.rooms[code][a.ID()] = a
	s.actorRooms[a.ID()] = code
}

func (s *QueueServer) leaveRoom(a Actor) {
	s.leaveRoomById(a.ID())
}

func (s *QueueServer) leaveRoomById(id string) {
	code, ok := s.actorRooms[id]
	if !ok {
		return
	}

	delete(s.actorRooms, id)
	if room, ok := s.rooms[code]; ok {
		delete(room, id)
		if len(room) == 0 {
			delete(s.rooms, code)
		}
	}
}

func (s *QueueServer) dispatch(actor Actor, code string, ds []Delivery) {
	for _, d := range ds {
		switch d.Audience {
		case AudienceActor:
			actor.Send(d.Event)
		case AudienceRoom, AudienceOthers:
			for id, a := range s.rooms[code] {
				if d.Audience == AudienceOthers && id == actor.ID() {
					continue
				}
				if !a.Send(d.Event) {
					s.log.Printf("dropped %s for %s", d.Event.Event, id)
				}
			}
		case AudienceConnection:
			if a, ok := s.actors[d.Target]; ok && !a.Send(d.Event) {
				s.log.Printf("dropped %s for %s", d.Event.Event, d.Target)
			}
		}
	}
}

func (s *QueueServer) RegisterClient(a Actor) {
	select {
	case s.registerChan <- a:
	case <-s.done:
		a.Close()
	}
}

func (s *QueueServer) DeregisterClient(a Actor) {
	select {
	case s.deregisterChan <- a:
	case <-s.done:
	}
}

// Submit hands a client message to the loop without blocking. It returns
// false if the loop is saturated or stopped.
func (s *QueueServer) Submit(a Actor, msg *ClientMessage) bool {
	select {
	case <-s.done:
		return false
	default:
	}

	select {
	case s.requestChan <- &clientRequest{actor: a, msg: msg}:
		return true
	default:
		return false
	}
}

// CreateMeeting registers a new meeting under a code that is neither live in
// memory nor held by an active row in the database. The database check runs
// outside the loop while the code is reserved.
func (s *QueueServer) CreateMeeting(ctx context.Context, facilitatorName, title string) (types.MeetingSummary, error) {
	for range maxCodeAttempts {
		var (
			m      *Meeting
			resErr error
		)
		if err := s.exec(ctx, func() { m, resErr = s.registry.Reserve(facilitatorName, title) }); err != nil {
			return types.MeetingSummary{}, err
		}
		if resErr != nil {
			return types.MeetingSummary{}, resErr
		}

		if s.codeInUse(ctx, m.Code) {
			if err := s.exec(context.WithoutCancel(ctx), func() { s.registry.Release(m.Code) }); err != nil {
				return types.MeetingSummary{}, err
			}
			if err := ctx.Err(); err != nil {
				return types.MeetingSummary{}, err
			}
			continue
		}

		var summary types.MeetingSummary
		err := s.exec(context.WithoutCancel(ctx), func() {
			s.registry.Commit(m)
			summary = m.Summary()
		})
		return summary, err
	}

	return types.MeetingSummary{}, ErrInternal(errors.New("no free meeting code"))
}

// MeetingInfo returns the public info of an active meeting, or nil. A code
// unknown to memory is looked up in the database first.
func (s *QueueServer) MeetingInfo(ctx context.Context, code string) (*types.MeetingInfo, error) {
	reply := make(chan *types.MeetingInfo, 1)
	answer := func() { reply <- s.registry.GetMeetingInfo(code) }

	err := s.exec(ctx, func() {
		if !s.awaitLookup(code, answer) {
			answer()
		}
	})
	if err != nil {
		return nil, err
	}

	select {
	case info := <-reply:
		return info, nil
	case <-s.done:
		return nil, ErrServiceUnavailable()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// exec runs fn on the loop and waits for it to return. fn must not block.
func (s *QueueServer) exec(ctx context.Context, fn func()) error {
	ran := make(chan struct{})
	call := func() {
		fn()
		close(ran)
	}

	select {
	case s.calls <- call:
	case <-s.done:
		return ErrServiceUnavailable()
	case <-ctx.Done():
		return ctx.Err()
	}

	<-ran
	return nil
}

// Shutdown closes every connection, flushes pending database writes and stops
// the loop.
func (s *QueueServer) Shutdown(ctx context.Context) error {
	s.log.Println("received shutdown signal")

	req := stopRequest{ctx: ctx, done: make(chan error, 1)}
	select {
	case s.stop <- req:
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
