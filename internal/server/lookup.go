package server

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/npezzotti/speakup/internal/database"
	"golang.org/x/time/rate"
)

const (
	lookupTimeout = 5 * time.Second
	lookupRate    = rate.Limit(50)
	lookupBurst   = 10
)

type lookupResult struct {
	code string
	row  database.Meeting
	err  error
}

// awaitLookup schedules fn to run on the loop once a database lookup of code
// has completed. It returns false, without running fn, when code needs no
// lookup.
func (s *QueueServer) awaitLookup(code string, fn func()) bool {
	if !s.registry.NeedsLookup(code) {
		return false
	}

	code = normalizeCode(code)
	if _, inFlight := s.pending[code]; !inFlight {
		go s.coldLookup(code)
	}
	s.pending[code] = append(s.pending[code], fn)
	return true
}

// coldLookup reads the row of code outside the loop and posts it back.
func (s *QueueServer) coldLookup(code string) {
	ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
	defer cancel()

	res := lookupResult{code: code}
	if res.err = s.limiter.Wait(ctx); res.err == nil {
		res.row, res.err = s.repo.FindMeetingByCode(ctx, code)
	}

	select {
	case s.lookupChan <- res:
	case <-s.done:
	}
}

func (s *QueueServer) handleLookup(res lookupResult) {
	s.registry.Resolve(res.code, res.row, res.err)

	waiting := s.pending[res.code]
	delete(s.pending, res.code)
	for _, fn := range waiting {
		fn()
	}
}

// deferRequest holds req, and every later request of its connection, until
// the lookup of code completes. It returns false when code needs no lookup.
func (s *QueueServer) deferRequest(req *clientRequest, code string) bool {
	if !s.awaitLookup(code, func() { s.resume(req) }) {
		return false
	}

	s.held[req.actor.ID()] = nil
	return true
}

func (s *QueueServer) resume(req *clientRequest) {
	id := req.actor.ID()
	backlog, ok := s.held[id]
	if !ok {
		// the connection went away while waiting
		return
	}
	delete(s.held, id)

	req.lookedUp = true
	s.process(req)

	for i, next := range backlog {
		if _, waiting := s.held[id]; waiting {
			s.held[id] = append(s.held[id], backlog[i:]...)
			return
		}
		s.process(next)
	}
}

// codeInUse reports whether an active database row holds code. It runs on
// the caller's goroutine. Lookup failures count as free since a code clash
// is then caught by the unique index on insert.
func (s *QueueServer) codeInUse(ctx context.Context, code string) bool {
	if s.repo == nil {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	row, err := s.repo.FindMeetingByCode(ctx, code)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false
	case err != nil:
		s.log.Printf("FindMeetingByCode %q: %v", code, err)
		return false
	}

	return row.IsActive
}
