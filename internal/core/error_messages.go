package core

// error_messages.go maps import errors to operator-facing messages with
// support codes. Typed errors from this package are matched first; anything
// else falls back to case-insensitive substring patterns.
//
// Codes:
//
//	REF001 - reference column left empty (MissingNameError)
//	REF002 - reference not found for this user (NotFoundError)
//	REF003 - reference name matches several records (AmbiguousError)
//	REF004 - reference store query failed (LookupError)
//	SET001 - export file unreadable or too large
//	SET002 - credentials missing or invalid
//	BAT001 - batch commit failed; earlier batches are persisted
//	DB004-DB006 - database connectivity
//	IMP001 - too many concurrent imports
//	ERR000 - unknown error

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

var (
	msgMissingName = UserMessage{
		Message: "A track, tyre or engine name is missing",
		Action:  "Fill in the Circuit, Tyres and Engine columns",
		Code:    "REF001",
	}
	msgNotFound = UserMessage{
		Message: "Referenced track, tyre or engine does not exist",
		Action:  "Create it in the app first or fix the spelling in the export",
		Code:    "REF002",
	}
	msgAmbiguous = UserMessage{
		Message: "More than one track, tyre or engine has this name",
		Action:  "Rename the duplicates so each name is unique",
		Code:    "REF003",
	}
	msgLookup = UserMessage{
		Message: "Reference lookup failed",
		Action:  "Check database connectivity and re-import the skipped rows",
		Code:    "REF004",
	}
	msgCommit = UserMessage{
		Message: "Saving a batch of sessions failed",
		Action:  "Earlier batches were saved; remove them from the export before retrying",
		Code:    "BAT001",
	}
)

// errorPatterns is consulted in order; the first match wins.
var errorPatterns = []errorPattern{
	{
		pattern: "credentials",
		msg: UserMessage{
			Message: "Service credentials are missing or invalid",
			Action:  "Place a valid credentials file next to the importer",
			Code:    "SET002",
		},
	},
	{
		pattern: "read export",
		msg: UserMessage{
			Message: "The export file could not be read",
			Action:  "Check the file path and that it is below the size limit",
			Code:    "SET001",
		},
	},
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "The export file is too large",
			Action:  "Split the export into smaller files",
			Code:    "SET001",
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
			Action:  "Try again later",
			Code:    "DB006",
		},
	},
	{
		pattern: "too many concurrent imports",
		msg: UserMessage{
			Message: "Another import is already running",
			Action:  "Please wait a moment and try again",
			Code:    "IMP001",
		},
	},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Check the importer logs for details",
	Code:    "ERR000",
}

// MapError converts an error to a user-friendly message.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var (
		nf     *NotFoundError
		amb    *AmbiguousError
		lookup *LookupError
		commit *BatchCommitError
	)
	switch {
	case errors.Is(err, ErrMissingName):
		return msgMissingName
	case errors.As(err, &nf):
		return msgNotFound
	case errors.As(err, &amb):
		return msgAmbiguous
	case errors.As(err, &lookup):
		return msgLookup
	case errors.As(err, &commit):
		return msgCommit
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
