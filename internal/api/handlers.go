package api

import (
	"encoding/json"
	"net/http"
	"slices"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/speakup/internal/server"
)

// CreateMeetingRequest keeps the raw fields so a non-string value can be
// reported against the field it was sent in.
type CreateMeetingRequest struct {
	FacilitatorName json.RawMessage `json:"facilitatorName"`
	MeetingTitle    json.RawMessage `json:"meetingTitle"`
}

type CreateMeetingResponse struct {
	MeetingCode string `json:"meetingCode"`
	MeetingId   string `json:"meetingId"`
	ShareUrl    string `json:"shareUrl"`
}

func (s *QueueApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

func (s *QueueApp) writeError(w http.ResponseWriter, errResp *ApiError) {
	if errResp.StatusCode >= http.StatusInternalServerError {
		s.log.Println(errResp.Error())
	}
	s.writeJson(w, errResp.StatusCode, errResp)
}

func (s *QueueApp) healthCheck(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.Ping(); err != nil {
			s.writeError(w, NewInternalServerError(err))
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *QueueApp) createMeeting(w http.ResponseWriter, r *http.Request) {
	var req CreateMeetingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, NewBadRequestError(server.CodeMissingRequiredField, "Facilitator name and meeting title are required"))
		return
	}

	facilitatorName, ok := stringField(req.FacilitatorName)
	if !ok {
		s.writeError(w, NewBadRequestError(server.CodeInvalidParticipantName, "Facilitator name must be a string"))
		return
	}

	title, ok := stringField(req.MeetingTitle)
	if !ok {
		s.writeError(w, NewBadRequestError(server.CodeMissingRequiredField, "Meeting title must be a string"))
		return
	}

	m, err := s.qs.CreateMeeting(r.Context(), facilitatorName, title)
	if err != nil {
		s.writeError(w, fromServerError(err))
		return
	}

	s.writeJson(w, http.StatusCreated, CreateMeetingResponse{
		MeetingCode: m.Code,
		MeetingId:   m.Id,
		ShareUrl:    s.shareURL(m.Code),
	})
}

// stringField decodes a JSON string. An absent or null field is the empty
// string and is left to the required-field checks.
func stringField(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", true
	}

	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", false
	}
	return v, true
}

func (s *QueueApp) shareURL(code string) string {
	return s.baseURL + "/meeting/" + code
}

func (s *QueueApp) getMeeting(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	if !server.ValidMeetingCodeFormat(code) {
		s.writeError(w, NewBadRequestError(server.CodeInvalidMeetingCode, "Meeting code must be 6 characters"))
		return
	}

	info, err := s.qs.MeetingInfo(r.Context(), code)
	if err != nil {
		s.writeError(w, fromServerError(err))
		return
	}

	if info == nil {
		s.writeError(w, NewNotFoundError(server.CodeMeetingNotFound, "Meeting not found"))
		return
	}

	s.writeJson(w, http.StatusOK, info)
}

func (s *QueueApp) serveWs(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	client := server.NewClient(conn, s.qs, s.log)

	s.qs.RegisterClient(client)
	go client.Write()
	go client.Read()
}
