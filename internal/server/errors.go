package server

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindAuthorization
	KindConflict
	KindNotInMeeting
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not found"
	case KindAuthorization:
		return "authorization"
	case KindConflict:
		return "conflict"
	case KindNotInMeeting:
		return "not in meeting"
	default:
		return "internal"
	}
}

const (
	CodeInvalidParticipantName  = "INVALID_PARTICIPANT_NAME"
	CodeInvalidMeetingCode      = "INVALID_MEETING_CODE"
	CodeMissingRequiredField    = "MISSING_REQUIRED_FIELD"
	CodeInvalidQueueType        = "INVALID_QUEUE_TYPE"
	CodeInvalidMessage          = "INVALID_MESSAGE"
	CodeMeetingNotFound         = "MEETING_NOT_FOUND"
	CodeUnauthorizedFacilitator = "UNAUTHORIZED_FACILITATOR"
	CodeUnauthorizedAction      = "UNAUTHORIZED_ACTION"
	CodeAlreadyInQueue          = "ALREADY_IN_QUEUE"
	CodeQueueEmpty              = "QUEUE_EMPTY"
	CodeNotInMeeting            = "NOT_IN_MEETING"
	CodeServiceUnavailable      = "SERVICE_UNAVAILABLE"
	CodeInternalError           = "INTERNAL_ERROR"
)

// Error is returned for every rejected request. It is delivered to the acting
// client only and never causes a room broadcast.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Err.Error())
	}

	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether the same request may succeed once state changes.
func (e *Error) Retryable() bool {
	return e.Kind == KindConflict
}

func newError(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

func ErrValidation(code, msg string) *Error {
	return newError(KindValidation, code, msg)
}

func ErrMeetingNotFound() *Error {
	return newError(KindNotFound, CodeMeetingNotFound, "Meeting not found")
}

func ErrUnauthorizedFacilitator() *Error {
	return newError(KindAuthorization, CodeUnauthorizedFacilitator, "Only the meeting creator can join as facilitator")
}

func ErrUnauthorizedAction(msg string) *Error {
	return newError(KindAuthorization, CodeUnauthorizedAction, msg)
}

func ErrAlreadyInQueue() *Error {
	return newError(KindConflict, CodeAlreadyInQueue, "Already in queue")
}

func ErrQueueEmpty() *Error {
	return newError(KindConflict, CodeQueueEmpty, "Queue is empty")
}

func ErrNotInMeeting() *Error {
	return newError(KindNotInMeeting, CodeNotInMeeting, "Not in a meeting")
}

// ErrSessionReplaced tells a connection that its participant rejoined from
// another connection.
func ErrSessionReplaced() *Error {
	return newError(KindNotInMeeting, CodeNotInMeeting, "Joined from another connection")
}

func ErrServiceUnavailable() *Error {
	return newError(KindInternal, CodeServiceUnavailable, "Service unavailable")
}

func ErrInternal(err error) *Error {
	return &Error{Kind: KindInternal, Code: CodeInternalError, Message: "Internal server error", Err: err}
}

// AsError converts any error into an *Error, treating unknown errors as internal.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return ErrInternal(err)
}
