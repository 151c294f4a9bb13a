package generator

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures surfaced to the workflow.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	// KindValidation: bad local input, rejected without a state change.
	KindValidation
	// KindService: network/auth/quota failure talking to the model.
	KindService
	// KindParse: the model answered, but not with a usable structured response.
	KindParse
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "ValidationError"
	case KindService:
		return "ServiceError"
	case KindParse:
		return "ParseError"
	default:
		return "UnknownError"
	}
}

// Error is the typed error returned by the generator and workflow packages.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (%s): %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func NewValidationError(message string) error {
	return &Error{Kind: KindValidation, Message: message}
}

func NewServiceError(message string, err error) error {
	return &Error{Kind: KindService, Message: message, Err: err}
}

func NewParseError(message string, err error) error {
	return &Error{Kind: KindParse, Message: message, Err: err}
}

// IsKind reports whether err (or anything it wraps) is an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// UserMessage returns the text shown to the user for err. Parse errors read like
// service errors.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return err.Error()
}
