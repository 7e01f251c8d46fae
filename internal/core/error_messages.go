// Package core provides the business logic for CSV import sessions.
//
// # Error Codes Reference
//
// This file defines user-friendly error messages with codes for support
// reference. Codes are grouped by category:
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large: File exceeds the maximum upload size
//	          Patterns: "file too large", "request body too large"
//	FILE002 - Empty file: The uploaded file is empty
//	          Patterns: "empty file"
//	FILE003 - No file: No file was selected
//	          Patterns: "no file provided"
//	FILE004 - Too many files: More files than one request accepts
//	          Patterns: "too many files"
//
// # Request Errors (REQ001-REQ099)
//
//	REQ001 - Malformed request: The request could not be read
//	         Patterns: "invalid request body"
//
// # Encoding Errors (ENC001-ENC099)
//
//	ENC001 - Unsupported encoding: The chosen encoding is not available
//	         Patterns: "unsupported encoding"
//
// # Parse Errors (PARSE001-PARSE099)
//
//	PARSE001 - Invalid options: The delimiter or header settings are not usable
//	           Patterns: "invalid parse options"
//
// # Mapping Errors (MAP001-MAP099)
//
//	MAP001 - Required fields unmapped
//	         Patterns: "required fields are not mapped"
//	MAP002 - Unknown field
//	         Patterns: "unknown field"
//	MAP003 - Unknown column
//	         Patterns: "unknown column"
//	MAP004 - Unknown target
//	         Patterns: "unknown import target"
//
// # Session Errors (SES001-SES099)
//
//	SES001 - Session expired: Import session not found
//	         Patterns: "import session not found"
//	SES002 - System busy: Too many imports in progress
//	         Patterns: "too many concurrent imports"
//	SES003 - Request cancelled
//	         Patterns: "context canceled"
//	SES004 - Request timeout
//	         Patterns: "context deadline exceeded"
//
// # Template Errors (TPL001-TPL099)
//
//	TPL001 - Template not found
//	         Patterns: "template not found"
//	TPL002 - Template exists
//	         Patterns: "template already exists"
//	TPL003 - Template name missing
//	         Patterns: "template name is required"
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Connection refused: Unable to reach template storage
//	        Patterns: "connection refused"
//	DB002 - Timeout: Template storage timed out
//	        Patterns: "timeout"
//
// # Rate Limiting (RATE001-RATE099)
//
//	RATE001 - Rate limited: Too many requests
//	          Patterns: "rate limit"
//
// # Default Error (ERR000)
//
// Fallback when no specific pattern matches. Check the application logs
// for the original technical error.
//
// # Pattern Matching
//
// Error patterns are matched case-insensitively using strings.Contains.
// The first matching pattern wins, so more specific patterns are listed
// before general ones.
package core

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error text (lowercase) to user messages.
// Order matters: the first match wins.
var errorPatterns = []errorPattern{
	// File errors
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum upload size",
			Action:  "Split the file into smaller parts",
			Code:    "FILE001",
		},
	},
	{
		pattern: "request body too large",
		msg: UserMessage{
			Message: "File exceeds the maximum upload size",
			Action:  "Split the file into smaller parts",
			Code:    "FILE001",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The uploaded file is empty",
			Action:  "Please choose a CSV file that contains data",
			Code:    "FILE002",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a CSV file to import",
			Code:    "FILE003",
		},
	},
	{
		pattern: "too many files",
		msg: UserMessage{
			Message: "Too many files in one request",
			Action:  "Analyze fewer files at a time",
			Code:    "FILE004",
		},
	},

	// Request errors
	{
		pattern: "invalid request body",
		msg: UserMessage{
			Message: "The request could not be read",
			Action:  "Refresh the page and try again",
			Code:    "REQ001",
		},
	},

	// Encoding errors
	{
		pattern: "unsupported encoding",
		msg: UserMessage{
			Message: "The selected character encoding is not supported",
			Action:  "Choose one of the listed encodings",
			Code:    "ENC001",
		},
	},

	// Parse errors
	{
		pattern: "invalid parse options",
		msg: UserMessage{
			Message: "These parse settings cannot be used",
			Action:  "Pick one of the listed delimiters",
			Code:    "PARSE001",
		},
	},

	// Mapping errors
	{
		pattern: "required fields are not mapped",
		msg: UserMessage{
			Message: "Some required fields have no column",
			Action:  "Map every required field to a column before importing",
			Code:    "MAP001",
		},
	},
	{
		pattern: "unknown field",
		msg: UserMessage{
			Message: "That field does not exist for this import",
			Action:  "Refresh the page and try again",
			Code:    "MAP002",
		},
	},
	{
		pattern: "unknown column",
		msg: UserMessage{
			Message: "That column is not in the file",
			Action:  "Check the header setting and delimiter, then choose again",
			Code:    "MAP003",
		},
	},
	{
		pattern: "unknown import target",
		msg: UserMessage{
			Message: "This import type is not configured",
			Action:  "Choose one of the available import types",
			Code:    "MAP004",
		},
	},

	// Session errors
	{
		pattern: "import session not found",
		msg: UserMessage{
			Message: "Import session not found",
			Action:  "The session may have expired. Please open the file again",
			Code:    "SES001",
		},
	},
	{
		pattern: "too many concurrent imports",
		msg: UserMessage{
			Message: "Too many imports in progress",
			Action:  "Please wait a moment and try again",
			Code:    "SES002",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "SES003",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try a smaller file or check your connection",
			Code:    "SES004",
		},
	},

	// Template errors
	{
		pattern: "template not found",
		msg: UserMessage{
			Message: "Template not found",
			Action:  "It may have been deleted. Refresh the template list",
			Code:    "TPL001",
		},
	},
	{
		pattern: "template already exists",
		msg: UserMessage{
			Message: "A template with this name already exists",
			Action:  "Choose a different name",
			Code:    "TPL002",
		},
	},
	{
		pattern: "template name is required",
		msg: UserMessage{
			Message: "Template name is required",
			Action:  "Enter a name for the template",
			Code:    "TPL003",
		},
	},

	// Storage errors
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to reach template storage",
			Action:  "Please try again in a few moments",
			Code:    "DB001",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Template storage timed out",
			Action:  "Please try again later",
			Code:    "DB002",
		},
	},

	// Rate limiting
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// It returns the first pattern that matches, case-insensitively, or the
// ERR000 fallback.
//
// Example:
//
//	msg := MapError(fmt.Errorf("open: %w", ErrEmptyFile))
//	// msg.Code == "FILE002"
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

// IsUserFacing reports whether err matches a known pattern rather than the
// ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError wraps a technical error with a user-friendly message.
// The original error is preserved for logging.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
