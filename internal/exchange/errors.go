package exchange

// errors.go turns technical errors into user-facing messages with a code
// that users can quote to support.
//
// Codes by category:
//
//	MAP001-MAP099   column mapping (a required role is unmapped or missing)
//	CELL001-CELL099 cell values (empty or outside an enumeration)
//	DOC001-DOC099   document structure, see DocumentError
//	NAME001-NAME099 template name collisions
//	FILE001-FILE099 uploaded file handling
//	TRN001-TRN099   catalog transport
//	UPL001-UPL099   wizard and import sessions
//	REQ001-REQ099   malformed API requests
//	RATE001         request throttling
//	ERR000          fallback
//
// Patterns are matched case-insensitively with strings.Contains, first
// match wins, so specific patterns come before general ones.

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

var errorPatterns = []errorPattern{
	// Mapping
	{
		pattern: "column is required",
		msg: UserMessage{
			Message: "A required column is not mapped",
			Action:  "Map the Section Name and Question columns before importing",
			Code:    "MAP001",
		},
	},
	{
		pattern: "was not found in the file",
		msg: UserMessage{
			Message: "A mapped column is missing from the file",
			Action:  "Choose a column that exists in the uploaded file",
			Code:    "MAP002",
		},
	},
	{
		pattern: "unknown role",
		msg: UserMessage{
			Message: "Unknown column role",
			Action:  "Use one of the documented column roles",
			Code:    "MAP003",
		},
	},

	// Cell values
	{
		pattern: "has an empty value at row number",
		msg: UserMessage{
			Message: "A mapped column has an empty cell",
			Action:  "Fill in the cell at the reported row and column",
			Code:    "CELL001",
		},
	},
	{
		pattern: "has an invalid value",
		msg: UserMessage{
			Message: "A cell holds a value that is not allowed",
			Action:  "Use one of the allowed values listed in the message",
			Code:    "CELL002",
		},
	},

	// Names
	{
		pattern: "template name already exists",
		msg: UserMessage{
			Message: "A template with this name already exists",
			Action:  "Choose a different template name",
			Code:    "NAME001",
		},
	},
	{
		pattern: "duplicate template name",
		msg: UserMessage{
			Message: "The same template name is used twice in this file",
			Action:  "Give every template in the file a distinct name",
			Code:    "NAME002",
		},
	},

	// Files
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum size limit",
			Action:  "Split the file into smaller files",
			Code:    "FILE001",
		},
	},
	{
		pattern: "invalid csv",
		msg: UserMessage{
			Message: "File is not a valid CSV",
			Action:  "Ensure file is comma-separated with consistent columns",
			Code:    "FILE002",
		},
	},
	{
		pattern: "invalid xlsx",
		msg: UserMessage{
			Message: "File is not a valid Excel workbook",
			Action:  "Save the file as .xlsx or export it as CSV",
			Code:    "FILE003",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a CSV or XLSX file to upload",
			Code:    "FILE004",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The uploaded file is empty",
			Action:  "Please upload a file with a header row",
			Code:    "FILE005",
		},
	},
	{
		pattern: "unsupported file format",
		msg: UserMessage{
			Message: "File format is not supported",
			Action:  "Upload a .csv or .xlsx file",
			Code:    "FILE006",
		},
	},

	// Transport
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to reach the template catalog",
			Action:  "Please try again in a few moments",
			Code:    "TRN001",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Connection to the template catalog was interrupted",
			Action:  "Please try again",
			Code:    "TRN002",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Please try again later",
			Code:    "TRN003",
		},
	},
	{
		pattern: "template not found",
		msg: UserMessage{
			Message: "Template not found",
			Action:  "The template may have been removed. Refresh the list",
			Code:    "TRN004",
		},
	},

	// Sessions
	{
		pattern: "import is blocked",
		msg: UserMessage{
			Message: "The import cannot start yet",
			Action:  "Resolve the highlighted column and name problems first",
			Code:    "UPL001",
		},
	},
	{
		pattern: "too many requests in flight",
		msg: UserMessage{
			Message: "System is busy processing other requests",
			Action:  "Please wait a moment and try again",
			Code:    "UPL002",
		},
	},
	{
		pattern: "session not found",
		msg: UserMessage{
			Message: "Import session not found",
			Action:  "The session may have expired. Please upload the file again",
			Code:    "UPL003",
		},
	},
	{
		pattern: "import already running",
		msg: UserMessage{
			Message: "An import is already running for this file",
			Action:  "Wait for the current import to finish",
			Code:    "UPL004",
		},
	},
	{
		pattern: "session closed",
		msg: UserMessage{
			Message: "Import session was closed",
			Action:  "Upload the file again to start a new import",
			Code:    "UPL007",
		},
	},
	{
		pattern: "entry not found",
		msg: UserMessage{
			Message: "Template entry not found",
			Action:  "Refresh the wizard; the template name column may have changed",
			Code:    "UPL008",
		},
	},
	{
		pattern: "import not started",
		msg: UserMessage{
			Message: "No import has been started for this file",
			Action:  "Start the import before following its progress",
			Code:    "UPL009",
		},
	},
	{
		pattern: "unsupported export format",
		msg: UserMessage{
			Message: "Export format is not supported",
			Action:  "Choose csv or xlsx",
			Code:    "FILE007",
		},
	},
	{
		pattern: "invalid request",
		msg: UserMessage{
			Message: "The request is invalid",
			Action:  "Check the request fields and try again",
			Code:    "REQ001",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "UPL005",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Please try again later",
			Code:    "UPL006",
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

// defaultMessage is returned when no pattern matches. Check the logs for
// the technical error when users report ERR000.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// Document errors keep their own message and code.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var de *DocumentError
	if errors.As(err, &de) {
		return UserMessage{
			Message: de.Message,
			Action:  "Fix the template structure in the source file and upload it again",
			Code:    de.Code,
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// FormatUserError creates a formatted error string for display:
// "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error, kept for logging, with its mapped
// message.
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

// NewUserError maps err. It returns nil when err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{Technical: err, User: MapError(err)}
}
