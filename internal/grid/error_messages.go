package grid

// # Error Codes Reference
//
// Errors surfaced by the engine and its data sources map to user-facing
// messages with codes support staff can look up.
//
//	GRID001 - Unsupported operation: the data source cannot do this
//	GRID002 - Row not found: the row no longer exists
//	GRID003 - Column not editable
//	GRID004 - Commit in progress: a save for this row is already running
//	GRID005 - Invalid pagination
//	GRID006 - Unknown grid
//	SRC001  - Data source unavailable (connection refused/reset)
//	SRC002  - Request timed out
//	SRC003  - Request cancelled
//	SRC004  - Duplicate record
//	SRC005  - Backend rejected the request (HTTP 4xx/5xx)
//	VAL001  - Invalid date
//	VAL002  - Invalid number
//	VAL003  - Required field is empty
//	VAL004  - Value not in the allowed list
//	VAL005  - Unknown column
//	VAL000  - Other validation failure
//	ERR000  - Unknown error
//
// Typed errors are matched first with errors.Is/As. Everything else is
// matched case-insensitively against the pattern table; first match wins.

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var (
	msgUnsupported = UserMessage{
		Message: "This operation is not supported by the data source",
		Action:  "Check the grid's capabilities before retrying",
		Code:    "GRID001",
	}
	msgRowNotFound = UserMessage{
		Message: "Row not found",
		Action:  "Refresh the grid, the row may have been deleted",
		Code:    "GRID002",
	}
	msgNotEditable = UserMessage{
		Message: "This column cannot be edited",
		Action:  "Only editable columns accept changes",
		Code:    "GRID003",
	}
	msgCommitInProgress = UserMessage{
		Message: "A save for this row is already running",
		Action:  "Wait for the current save to finish",
		Code:    "GRID004",
	}
	msgInvalidPagination = UserMessage{
		Message: "Invalid page or page size",
		Action:  "Use a page of 1 or more and a positive page size",
		Code:    "GRID005",
	}
	msgUnknownGrid = UserMessage{
		Message: "Unknown grid",
		Action:  "Verify the grid name is correct",
		Code:    "GRID006",
	}
	msgValidation = UserMessage{
		Message: "Some values are invalid",
		Action:  "Fix the highlighted fields and try again",
		Code:    "VAL000",
	}
)

var errorPatterns = []errorPattern{
	// Source connectivity
	{pattern: "connection refused", msg: UserMessage{
		Message: "Unable to reach the data source",
		Action:  "Please try again in a few moments",
		Code:    "SRC001",
	}},
	{pattern: "connection reset", msg: UserMessage{
		Message: "Connection to the data source was interrupted",
		Action:  "Please try again",
		Code:    "SRC001",
	}},
	{pattern: "context deadline exceeded", msg: UserMessage{
		Message: "Request timed out",
		Action:  "Narrow your filters or try again later",
		Code:    "SRC002",
	}},
	{pattern: "timeout", msg: UserMessage{
		Message: "Request timed out",
		Action:  "Narrow your filters or try again later",
		Code:    "SRC002",
	}},
	{pattern: "context canceled", msg: UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "SRC003",
	}},
	{pattern: "duplicate key", msg: UserMessage{
		Message: "A record with this ID already exists",
		Action:  "Use a different ID",
		Code:    "SRC004",
	}},
	{pattern: "already exists", msg: UserMessage{
		Message: "A record with this ID already exists",
		Action:  "Use a different ID",
		Code:    "SRC004",
	}},
	{pattern: "unexpected status", msg: UserMessage{
		Message: "The data source rejected the request",
		Action:  "Please try again or contact support",
		Code:    "SRC005",
	}},

	// Validation
	{pattern: "invalid date", msg: UserMessage{
		Message: "Invalid date format detected",
		Action:  "Use YYYY-MM-DD, MM/DD/YYYY, or Jan 15, 2024",
		Code:    "VAL001",
	}},
	{pattern: "invalid number", msg: UserMessage{
		Message: "Invalid number format detected",
		Action:  "Use a plain decimal number",
		Code:    "VAL002",
	}},
	{pattern: "required field", msg: UserMessage{
		Message: "Required field is empty",
		Action:  "Fill in every required column",
		Code:    "VAL003",
	}},
	{pattern: "must be one of", msg: UserMessage{
		Message: "Value is not in the allowed list",
		Action:  "Check the allowed values for this field",
		Code:    "VAL004",
	}},
	{pattern: "unknown column", msg: UserMessage{
		Message: "Unknown column",
		Action:  "Verify the column keys against the grid schema",
		Code:    "VAL005",
	}},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	switch {
	case errors.Is(err, ErrUnsupportedOperation):
		return msgUnsupported
	case errors.Is(err, ErrRowNotFound):
		return msgRowNotFound
	case errors.Is(err, ErrColumnNotEditable):
		return msgNotEditable
	case errors.Is(err, ErrCommitInProgress):
		return msgCommitInProgress
	case errors.Is(err, ErrInvalidPagination):
		return msgInvalidPagination
	case errors.Is(err, ErrUnknownGrid):
		return msgUnknownGrid
	}

	var verrs ValidationErrors
	if errors.As(err, &verrs) {
		if len(verrs) == 1 {
			if msg, ok := matchPattern(verrs[0].Message); ok {
				return msg
			}
		}
		return msgValidation
	}

	if msg, ok := matchPattern(err.Error()); ok {
		return msg
	}
	return defaultMessage
}

func matchPattern(s string) (UserMessage, bool) {
	s = strings.ToLower(s)
	for _, ep := range errorPatterns {
		if strings.Contains(s, ep.pattern) {
			return ep.msg, true
		}
	}
	return UserMessage{}, false
}

// FormatUserError renders "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to something other than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
