package model

import "errors"

type ErrorKind string

const (
	ErrNoFileSelected    ErrorKind = "no_file_selected"
	ErrBackendRejected   ErrorKind = "backend_rejected"
	ErrMalformedResponse ErrorKind = "malformed_response"
	ErrTransportFailure  ErrorKind = "transport_failure"
	ErrJobFailed         ErrorKind = "job_failed"
)

const (
	MessageNoFileSelected    = "Please select a CSV file first"
	MessageMalformedResponse = "Unexpected response from server"
	MessageJobFailed         = "Processing failed"
	MessageUnknown           = "An unknown error occurred"
)

// Error is the failure type surfaced by the submit and poll paths.
// Message is what the user sees; Err keeps the underlying cause.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func NewError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return MessageUnknown
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a *Error anywhere in err's chain, or "" if none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// UserMessage is the text shown in the error banner for err.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Error()
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return MessageUnknown
}
