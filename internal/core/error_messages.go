// Package core provides the demographic merge and derivation engine.
//
// # Error Codes Reference
//
// This file maps technical errors to short messages with codes, so a failed
// run can be diagnosed from its status record without reading the logs.
//
// # Key and Source Errors (KEY, SRC)
//
//	KEY001 - Malformed key: population code shorter than three characters
//	         Patterns: "malformed population key"
//
//	SRC001 - Missing source: a source descriptor matched no file or several
//	         Action: Fix SOURCES_FILE or run "lifetable fetch"
//	         Patterns: "missing or ambiguous source"
//
//	SRC002 - Unsupported file: sample file is neither CSV nor XLSX
//	         Patterns: "unsupported file type"
//
//	SRC003 - Unreadable source: file could not be opened or parsed
//	         Patterns: "no such file", "read source"
//
// # Validation Errors (VAL, CFG)
//
//	VAL004 - Missing column: required column absent from a source header
//	         Patterns: "missing required column"
//
//	CFG001 - Invalid age range: LT_MIN_AGE/LT_MAX_AGE inconsistent
//	         Patterns: "invalid age range"
//
// # Run Errors (RUN)
//
//	RUN001 - System busy: too many runs in progress
//	         Patterns: "too many concurrent runs"
//
//	RUN002 - Run not found
//	         Patterns: "run not found"
//
//	RUN003 - Run timeout or cancellation
//	         Patterns: "context deadline exceeded", "context canceled"
//
//	RUN004 - Artifact not found: the run wrote no file of that name
//	         Patterns: "artifact not found"
//
//	RUN005 - Shutting down: the server no longer accepts runs
//	         Patterns: "shutting down"
//
// # Database Errors (DB)
//
//	DB004 - Connection refused
//	DB005 - Connection reset
//	DB006 - Timeout
//
// # Download Errors (NET)
//
//	NET001 - Login failed at a data provider
//	         Patterns: "login failed", "anti-forgery token"
//
// # Default Error (ERR000)
//
// Fallback when no pattern matches. Patterns are matched case-insensitively
// with strings.Contains; the first match wins, so specific patterns come first.
package core

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	{
		pattern: "malformed population key",
		msg: UserMessage{
			Message: "A population code is too short to hold a base code",
			Action:  "Check the source's population code column",
			Code:    "KEY001",
		},
	},
	{
		pattern: "missing or ambiguous source",
		msg: UserMessage{
			Message: "A source file could not be located unambiguously",
			Action:  "Fix the source descriptor or run \"lifetable fetch\"",
			Code:    "SRC001",
		},
	},
	{
		pattern: "unsupported file type",
		msg: UserMessage{
			Message: "Population sample files must be CSV or XLSX",
			Action:  "Convert the file or remove it from the source descriptor",
			Code:    "SRC002",
		},
	},
	{
		pattern: "no such file",
		msg: UserMessage{
			Message: "A source file could not be opened",
			Action:  "Check DOWNLOAD_DIR and the source descriptor",
			Code:    "SRC003",
		},
	},
	{
		pattern: "read source",
		msg: UserMessage{
			Message: "A source file could not be parsed",
			Action:  "Check that the file matches the provider's published layout",
			Code:    "SRC003",
		},
	},
	{
		pattern: "missing required column",
		msg: UserMessage{
			Message: "A required column is missing from a source",
			Action:  "Check that the source file has the expected header",
			Code:    "VAL004",
		},
	},
	{
		pattern: "invalid age range",
		msg: UserMessage{
			Message: "The configured age range is invalid",
			Action:  "Set 0 <= LT_MIN_AGE <= LT_MAX_AGE",
			Code:    "CFG001",
		},
	},
	{
		pattern: "too many concurrent runs",
		msg: UserMessage{
			Message: "Too many runs in progress",
			Action:  "Wait for the current run to finish and try again",
			Code:    "RUN001",
		},
	},
	{
		pattern: "run not found",
		msg: UserMessage{
			Message: "Run not found",
			Action:  "Runs are kept in memory only until the server restarts",
			Code:    "RUN002",
		},
	},
	{
		pattern: "artifact not found",
		msg: UserMessage{
			Message: "The run has no artifact of that name",
			Action:  "List the run's artifacts with GET /api/runs/{id}",
			Code:    "RUN004",
		},
	},
	{
		pattern: "shutting down",
		msg: UserMessage{
			Message: "The server is shutting down",
			Action:  "Start the run again once the server is back",
			Code:    "RUN005",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "The run timed out",
			Action:  "Raise RUN_TIMEOUT or narrow the age range",
			Code:    "RUN003",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "The run was cancelled",
			Action:  "Start a new run when ready",
			Code:    "RUN003",
		},
	},
	{
		pattern: "login failed",
		msg: UserMessage{
			Message: "Login to a data provider failed",
			Action:  "Check HMD_EMAIL and HMD_PASSWORD",
			Code:    "NET001",
		},
	},
	{
		pattern: "anti-forgery token",
		msg: UserMessage{
			Message: "The provider's login page could not be read",
			Action:  "Try again later; the login page layout may have changed",
			Code:    "NET001",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Please try again later",
			Code:    "DB006",
		},
	},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Check the run log for details",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// Returns an empty UserMessage if err is nil.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its mapped message.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
