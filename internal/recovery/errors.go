package recovery

import (
	"errors"
	"fmt"
)

// Reason classifies a terminal recovery failure.
type Reason string

const (
	// ReasonBoundaryNotFound means the normalized text had no structural delimiter at all.
	ReasonBoundaryNotFound Reason = "boundary_not_found"
	// ReasonPrimaryParse means the repaired text failed to parse and no rescue candidate existed.
	ReasonPrimaryParse Reason = "parse_error_after_repair"
	// ReasonRescueParse means the narrowed rescue candidate failed to parse as well.
	ReasonRescueParse Reason = "parse_error_after_rescue"
)

// Sentinel errors matched by *Error through errors.Is.
var (
	ErrBoundaryNotFound = errors.New("no JSON-like boundary found")
	ErrPrimaryParse     = errors.New("parse error after repair")
	ErrRescueParse      = errors.New("parse error after rescue")
)

func (r Reason) sentinel() error {
	switch r {
	case ReasonBoundaryNotFound:
		return ErrBoundaryNotFound
	case ReasonPrimaryParse:
		return ErrPrimaryParse
	case ReasonRescueParse:
		return ErrRescueParse
	default:
		return nil
	}
}

// String returns the string representation of the Reason.
func (r Reason) String() string {
	return string(r)
}

// Error is the terminal failure of one recovery attempt.
// Raw always holds the caller's input unmodified so it can be archived verbatim.
type Error struct {
	Reason Reason
	Raw    string
	Cause  error
}

func (e *Error) Error() string {
	msg := string(e.Reason)
	if s := e.Reason.sentinel(); s != nil {
		msg = s.Error()
	}
	if e.Cause != nil {
		return fmt.Sprintf("recovery failed: %s: %v", msg, e.Cause)
	}
	return fmt.Sprintf("recovery failed: %s", msg)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is the sentinel for e's Reason.
func (e *Error) Is(target error) bool {
	s := e.Reason.sentinel()
	return s != nil && target == s
}

// ParseError represents a strict JSON parse failure of one candidate text.
type ParseError struct {
	Message string
	Cause   error
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("parse error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("parse error: %s", e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}
