package server

import "time"

// codeSet remembers meeting codes for a limited time and holds at most max of
// them. Like the registry it is only used from the server loop.
type codeSet struct {
	ttl     time.Duration
	max     int
	entries map[string]time.Time
	now     func() time.Time
}

func newCodeSet(ttl time.Duration, max int) *codeSet {
	return &codeSet{
		ttl:     ttl,
		max:     max,
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

func (s *codeSet) add(code string) {
	if _, ok := s.entries[code]; !ok && len(s.entries) >= s.max {
		s.purge()
		if len(s.entries) >= s.max {
			s.dropOldest()
		}
	}

	s.entries[code] = s.now().Add(s.ttl)
}

func (s *codeSet) has(code string) bool {
	exp, ok := s.entries[code]
	if !ok {
		return false
	}

	if s.now().After(exp) {
		delete(s.entries, code)
		return false
	}

	return true
}

func (s *codeSet) remove(code string) {
	delete(s.entries, code)
}

func (s *codeSet) len() int {
	return len(s.entries)
}

func (s *codeSet) purge() {
	now := s.now()
	for code, exp := range s.entries {
		if now.After(exp) {
			delete(s.entries, code)
		}
	}
}

func (s *codeSet) dropOldest() {
	var (
		oldest string
		at     time.Time
	)
	for code, exp := range s.entries {
		if oldest == "" || exp.Before(at) {
			oldest, at = code, exp
		}
	}
	delete(s.entries, oldest)
}
