package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrBusy        = ConflictError{Reason: "there is already a motion running, stop it before starting a new one"}
	ErrNotHomed    = ConflictError{Reason: "homing must be performed before moving"}
	ErrBladeTooLow = ConflictError{Reason: "scraping blade too low to start a drum motion"}
	ErrStopped     = ConflictError{Reason: "motion was stopped before its procedure completed"}
)

// ValidationError reports a command parameter outside of its legal range.
type ValidationError struct {
	Field    string
	Min, Max float64
	Unit     string
	Reason   string
}

func (err ValidationError) Error() string {
	if len(err.Reason) > 0 {
		return fmt.Sprintf("wrong %s value: %s", err.Field, err.Reason)
	}
	if len(err.Unit) == 0 {
		err.Unit = "mm"
	}

	switch err.Field {
	case "speed":
		return fmt.Sprintf("wrong speed value, must be above %g and below %g %s", err.Min, err.Max, err.Unit)
	case "mode":
		return "wrong motion mode"
	}

	return fmt.Sprintf("wrong %s value, must be between %g and %g %s", err.Field, err.Min, err.Max, err.Unit)
}

// ConflictError is returned when the request cannot be served in the current hardware state.
type ConflictError struct {
	Reason string
}

func (err ConflictError) Error() string {
	return "conflict: " + err.Reason
}

type InternalKind int

const (
	KindTransport InternalKind = iota
	KindTimeout
	KindInvalidState
	KindUnrecoverable
)

func (k InternalKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindTimeout:
		return "timeout"
	case KindInvalidState:
		return "invalid state"
	case KindUnrecoverable:
		return "unrecoverable state"
	}
	return "UNKNOWN"
}

// InternalError is an opaque failure of the hardware path.
type InternalError struct {
	Kind InternalKind
	Msg  string
	Err  error
}

func (err *InternalError) Error() string {
	if err.Err != nil {
		return fmt.Sprintf("internal error (%s): %s: %v", err.Kind, err.Msg, err.Err)
	}
	return fmt.Sprintf("internal error (%s): %s", err.Kind, err.Msg)
}

func (err *InternalError) Unwrap() error {
	return err.Err
}

func Transport(err error, format string, args ...interface{}) error {
	return &InternalError{Kind: KindTransport, Msg: fmt.Sprintf(format, args...), Err: err}
}

func Timeout(format string, args ...interface{}) error {
	return &InternalError{Kind: KindTimeout, Msg: fmt.Sprintf(format, args...)}
}

func InvalidState(format string, args ...interface{}) error {
	return &InternalError{Kind: KindInvalidState, Msg: fmt.Sprintf(format, args...)}
}

func Unrecoverable(format string, args ...interface{}) error {
	return &InternalError{Kind: KindUnrecoverable, Msg: fmt.Sprintf(format, args...)}
}

// IsKind reports whether err carries an InternalError of the given kind.
func IsKind(err error, kind InternalKind) bool {
	var ie *InternalError
	return errors.As(err, &ie) && ie.Kind == kind
}

type NotFoundError struct {
	Kind string
	Name string
}

func (err NotFoundError) Error() string {
	if len(err.Kind) == 0 {
		err.Kind = "axis"
	}

	return fmt.Sprintf("no such %s %s", err.Kind, err.Name)
}

// StatusCode maps an error to the HTTP status served by the API.
func StatusCode(err error) int {
	var (
		ve ValidationError
		ce ConflictError
		nf NotFoundError
	)

	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.As(err, &ce):
		return http.StatusConflict
	case errors.As(err, &nf):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
