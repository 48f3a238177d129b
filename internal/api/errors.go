package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/npezzotti/speakup/internal/server"
)

const codeInternalError = server.CodeInternalError

type ApiError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"error"`
	Code       string `json:"code,omitempty"`
	Err        error  `json:"-"`
}

func (e *ApiError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Err.Error())
	}

	return e.Message
}

func (e *ApiError) Unwrap() error {
	return e.Err
}

func lower(s string) string {
	return strings.ToLower(s)
}

func NewBadRequestError(code, msg string) *ApiError {
	return &ApiError{
		StatusCode: http.StatusBadRequest,
		Message:    msg,
		Code:       code,
	}
}

func NewNotFoundError(code, msg string) *ApiError {
	return &ApiError{
		StatusCode: http.StatusNotFound,
		Message:    msg,
		Code:       code,
	}
}

func NewInternalServerError(err error) *ApiError {
	return &ApiError{
		StatusCode: http.StatusInternalServerError,
		Message:    lower(http.StatusText(http.StatusInternalServerError)),
		Code:       codeInternalError,
		Err:        err,
	}
}

func NewServiceUnavailableError(err error) *ApiError {
	return &ApiError{
		StatusCode: http.StatusServiceUnavailable,
		Message:    lower(http.StatusText(http.StatusServiceUnavailable)),
		Code:       server.CodeServiceUnavailable,
		Err:        err,
	}
}

// fromServerError maps a rejected meeting operation onto an HTTP error.
func fromServerError(err error) *ApiError {
	var e *server.Error
	if !errors.As(err, &e) {
		return NewInternalServerError(err)
	}

	status := http.StatusInternalServerError
	switch e.Kind {
	case server.KindValidation:
		status = http.StatusBadRequest
	case server.KindNotFound:
		status = http.StatusNotFound
	case server.KindAuthorization:
		status = http.StatusForbidden
	case server.KindConflict:
		status = http.StatusConflict
	case server.KindNotInMeeting:
		status = http.StatusConflict
	default:
		if e.Code == server.CodeServiceUnavailable {
			return NewServiceUnavailableError(e)
		}
		return NewInternalServerError(e)
	}

	return &ApiError{
		StatusCode: status,
		Message:    e.Message,
		Code:       e.Code,
		Err:        e.Err,
	}
}
