package server

import (
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strings"
	"time"

	"github.com/npezzotti/speakup/internal/database"
	"github.com/npezzotti/speakup/internal/stats"
	"github.com/npezzotti/speakup/internal/types"
	"github.com/teris-io/shortid"
)

const (
	codeAlphabet    = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	maxCodeAttempts = 100

	// endedTTL covers the time the deactivation write needs to reach the database.
	endedTTL = 10 * time.Minute
	missTTL  = 30 * time.Second
	maxCodes = 4096

	statActiveMeetings = "NumActiveMeetings"
)

// MeetingRegistry maps meeting codes to live sessions. It is owned by the
// server loop, is not safe for concurrent use and never touches the database
// synchronously: rows are read by the server off the loop and handed to Resolve.
type MeetingRegistry struct {
	log      *log.Logger
	repo     database.Repository
	persist  *persister
	stats    stats.StatsProvider
	meetings map[string]*Meeting
	// reserved holds codes handed out by Reserve but not yet committed
	reserved map[string]struct{}
	// ended holds codes evicted by this process so a stale database row is
	// not loaded back into memory
	ended *codeSet
	// misses holds codes recently looked up without finding an active row
	misses  *codeSet
	newCode func() (string, error)
	newId   func() (string, error)
}

func NewMeetingRegistry(logger *log.Logger, repo database.Repository, p *persister, su stats.StatsProvider) *MeetingRegistry {
	return &MeetingRegistry{
		log:      logger,
		repo:     repo,
		persist:  p,
		stats:    su,
		meetings: make(map[string]*Meeting),
		reserved: make(map[string]struct{}),
		ended:    newCodeSet(endedTTL, maxCodes),
		misses:   newCodeSet(missTTL, maxCodes),
		newCode:  generateMeetingCode,
		newId:    shortid.Generate,
	}
}

func generateMeetingCode() (string, error) {
	var sb strings.Builder
	max := big.NewInt(int64(len(codeAlphabet)))
	for range MeetingCodeLength {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		sb.WriteByte(codeAlphabet[n.Int64()])
	}
	return sb.String(), nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// CreateMeeting reserves and commits a meeting in one step. It only checks
// codes against memory; QueueServer.CreateMeeting also checks the database.
func (r *MeetingRegistry) CreateMeeting(facilitatorName, title string) (*Meeting, error) {
	m, err := r.Reserve(facilitatorName, title)
	if err != nil {
		return nil, err
	}

	r.Commit(m)
	return m, nil
}

// Reserve validates the input and builds a meeting under a code that no live
// or reserved meeting holds. The meeting is not reachable until Commit.
func (r *MeetingRegistry) Reserve(facilitatorName, title string) (*Meeting, error) {
	facilitatorName, err := validateFacilitatorName(facilitatorName)
	if err != nil {
		return nil, err
	}

	title, err = validateMeetingTitle(title)
	if err != nil {
		return nil, err
	}

	code, err := r.uniqueCode()
	if err != nil {
		return nil, ErrInternal(err)
	}

	id, err := r.newId()
	if err != nil {
		return nil, ErrInternal(fmt.Errorf("generate meeting id: %w", err))
	}

	r.reserved[code] = struct{}{}
	return newMeeting(id, code, title, facilitatorName, Now()), nil
}

func (r *MeetingRegistry) Commit(m *Meeting) {
	delete(r.reserved, m.Code)
	r.add(m)

	r.persist.createMeeting(database.CreateMeetingParams{
		Id:              m.Id,
		Code:            m.Code,
		Title:           m.Title,
		FacilitatorName: m.FacilitatorName,
		CreatedAt:       m.CreatedAt,
	})

	r.log.Printf("created meeting %q (%s)", m.Code, m.Id)
}

// Release gives up a reservation whose code turned out to be taken.
func (r *MeetingRegistry) Release(code string) {
	delete(r.reserved, code)
}

func (r *MeetingRegistry) uniqueCode() (string, error) {
	for range maxCodeAttempts {
		code, err := r.newCode()
		if err != nil {
			return "", fmt.Errorf("generate meeting code: %w", err)
		}

		if _, taken := r.meetings[code]; taken {
			continue
		}
		if _, taken := r.reserved[code]; taken {
			continue
		}
		return code, nil
	}

	return "", errors.New("no free meeting code")
}

func (r *MeetingRegistry) add(m *Meeting) {
	m.onEmpty = r.evict
	r.meetings[m.Code] = m
	r.ended.remove(m.Code)
	r.misses.remove(m.Code)
	r.stats.Incr(statActiveMeetings)
}

// GetMeeting looks up an active meeting in memory by code, case-insensitively.
func (r *MeetingRegistry) GetMeeting(code string) *Meeting {
	m, ok := r.meetings[normalizeCode(code)]
	if !ok || !m.IsActive {
		return nil
	}
	return m
}

// NeedsLookup reports whether code may belong to a meeting stored in the
// database that this process has not loaded.
func (r *MeetingRegistry) NeedsLookup(code string) bool {
	code = normalizeCode(code)
	if r.repo == nil || !ValidMeetingCodeFormat(code) {
		return false
	}

	if _, ok := r.meetings[code]; ok {
		return false
	}

	return !r.ended.has(code) && !r.misses.has(code)
}

// Resolve applies the result of a database lookup of code. An active row is
// hydrated into a fresh session with an empty roster and queue.
func (r *MeetingRegistry) Resolve(code string, row database.Meeting, err error) *Meeting {
	code = normalizeCode(code)
	if m, ok := r.meetings[code]; ok {
		return m
	}

	switch {
	case errors.Is(err, sql.ErrNoRows):
		r.misses.add(code)
		return nil
	case err != nil:
		r.log.Printf("FindMeetingByCode %q: %v", code, err)
		return nil
	case !row.IsActive:
		r.misses.add(code)
		return nil
	}

	if r.ended.has(code) {
		return nil
	}

	m := newMeeting(row.Id, code, row.Title, row.FacilitatorName, row.CreatedAt)
	r.add(m)

	// participants and queue rows belong to connections of a previous process
	r.persist.clearSession(m.Id)

	r.log.Printf("loaded meeting %q from database", m.Code)
	return m
}

func (r *MeetingRegistry) GetMeetingInfo(code string) *types.MeetingInfo {
	m := r.GetMeeting(code)
	if m == nil {
		return nil
	}

	info := m.Info()
	return &info
}

func (r *MeetingRegistry) evict(m *Meeting) {
	if cur, ok := r.meetings[m.Code]; !ok || cur != m {
		return
	}

	delete(r.meetings, m.Code)
	if r.repo != nil {
		r.ended.add(m.Code)
	}
	r.stats.Decr(statActiveMeetings)
	r.persist.deactivateMeeting(m.Id)

	r.log.Printf("meeting %q ended, %d meetings active", m.Code, len(r.meetings))
}

func (r *MeetingRegistry) Len() int {
	return len(r.meetings)
}

// Now returns the current UTC time rounded to milliseconds.
func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
