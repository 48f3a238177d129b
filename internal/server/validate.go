package server

import (
	"strings"
	"unicode/utf8"
)

const (
	MaxParticipantNameLength = 50
	MaxMeetingTitleLength    = 100
	MeetingCodeLength        = 6
)

func validateFacilitatorName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrValidation(CodeMissingRequiredField, "Facilitator name is required")
	}
	if utf8.RuneCountInString(name) > MaxParticipantNameLength {
		return "", ErrValidation(CodeInvalidParticipantName, "Name must be 50 characters or less")
	}
	return name, nil
}

func validateMeetingTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", ErrValidation(CodeMissingRequiredField, "Meeting title is required")
	}
	if utf8.RuneCountInString(title) > MaxMeetingTitleLength {
		return "", ErrValidation(CodeMissingRequiredField, "Meeting title must be 100 characters or less")
	}
	return title, nil
}

// sanitizeParticipantName trims name and truncates it to the maximum length.
func sanitizeParticipantName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrValidation(CodeInvalidParticipantName, "Participant name is required")
	}
	if utf8.RuneCountInString(name) > MaxParticipantNameLength {
		name = strings.TrimSpace(string([]rune(name)[:MaxParticipantNameLength]))
	}
	return name, nil
}

func validateMeetingCode(code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", ErrValidation(CodeInvalidMeetingCode, "Meeting code is required")
	}
	return strings.ToUpper(code), nil
}

// ValidMeetingCodeFormat reports whether code is exactly six characters long.
func ValidMeetingCodeFormat(code string) bool {
	return utf8.RuneCountInString(code) == MeetingCodeLength
}
