package core

// error_messages.go maps technical errors to user messages with stable codes.
//
// Codes by category:
//
//	DB001-DB099    storage (constraints, connectivity, timeouts, locks)
//	FILE001-FILE099 upload form and file name problems
//	UPL001-UPL099  upload process (limiter, cancellation, deadlines)
//	REP001-REP099  report parameters
//	RATE001        request throttling
//	ERR000         fallback, check the server log for the original error
//
// Patterns are matched case-insensitively with strings.Contains and the first
// match wins, so specific patterns come before general ones.

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// Storage constraints
	{"duplicate key", UserMessage{"A student with this name was stored concurrently", "Please retry the upload", "DB001"}},
	{"violates foreign key", UserMessage{"A grade references a student that does not exist", "Please retry the upload", "DB003"}},
	{"violates check constraint", UserMessage{"A value was rejected by the database", "Check grades are between 1 and 5", "DB008"}},

	// Storage connectivity
	{"connection refused", UserMessage{"Unable to connect to database", "Please try again in a few moments", "DB004"}},
	{"connection reset", UserMessage{"Database connection was interrupted", "Please try again", "DB005"}},
	{"timeout", UserMessage{"Operation timed out", "Try uploading a smaller file or try again later", "DB006"}},
	{"deadlock", UserMessage{"Database was busy with conflicting operations", "Please try again", "DB007"}},
	{"database is locked", UserMessage{"Database was busy with another upload", "Please try again", "DB007"}},

	// File and form
	{"request body too large", UserMessage{"File exceeds maximum size limit", "Split the file into smaller chunks", "FILE001"}},
	{"file too large", UserMessage{"File exceeds maximum size limit", "Split the file into smaller chunks", "FILE001"}},
	{"no file provided", UserMessage{"No file was selected", "Send the CSV in the multipart field \"file\"", "FILE004"}},
	{"only .csv files", UserMessage{"Only .csv files are allowed", "Rename or export the file as .csv", "FILE006"}},

	// Upload process
	{"too many concurrent uploads", UserMessage{"System is busy processing other uploads", "Please wait a moment and try again", "UPL002"}},
	{"context canceled", UserMessage{"Request was cancelled", "Please try again", "UPL004"}},
	{"context deadline exceeded", UserMessage{"Request timed out", "Try uploading a smaller file or check your connection", "UPL005"}},

	// Reports
	{"invalid threshold", UserMessage{"Threshold must be a non-negative integer", "Pass n as a whole number, e.g. ?n=3", "REP001"}},

	{"rate limit", UserMessage{"Too many requests", "Please wait a moment before trying again", "RATE001"}},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message. Unknown
// errors map to ERR000; nil maps to the zero UserMessage.
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

// FormatUserError renders "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matched a known pattern rather than the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
