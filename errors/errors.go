package errors

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	// UnknownCode is used when an error carries no code of its own.
	UnknownCode = 500

	UnknownReason = ""
)

type Status struct {
	Code     int32
	Reason   string
	Message  string
	Metadata map[string]string
}

type Error struct {
	Status
	cause error
}

func New(code int32, reason, message string) *Error {
	return &Error{
		Status: Status{
			Code:    code,
			Reason:  reason,
			Message: message,
		},
	}
}

func (e *Error) Error() string {
	return fmt.Sprintf("error: code = %d reason = %s message = %s metadata = %v cause = %v", e.Code, e.Reason, e.Message, e.Metadata, e.cause)
}

// Internal reports whether the error was raised by a server-side defect
// rather than by the caller.
func (e *Error) Internal() bool {
	return e.Code >= UnknownCode
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches errors by code and reason so sentinel values survive WithCause
// and WithMetadata copies.
func (e *Error) Is(err error) bool {
	if se := new(Error); errors.As(err, &se) {
		return se.Code == e.Code && se.Reason == e.Reason
	}
	return false
}

func (e *Error) WithCause(cause error) *Error {
	err := clone(e)
	err.cause = cause
	return err
}

func (e *Error) WithMetadata(md map[string]string) *Error {
	err := clone(e)
	err.Metadata = md
	return err
}

func (e *Error) GRPCStatus() *status.Status {
	return status.New(toGRPCCode(e.Code), e.Message)
}

func clone(e *Error) *Error {
	if e == nil {
		return nil
	}
	metadata := make(map[string]string, len(e.Metadata))
	for k, v := range e.Metadata {
		metadata[k] = v
	}
	return &Error{
		cause: e.cause,
		Status: Status{
			Code:     e.Code,
			Reason:   e.Reason,
			Message:  e.Message,
			Metadata: metadata,
		},
	}
}

func Code(err error) int {
	if err == nil {
		return 200
	}
	return int(FromError(err).Code)
}

func Reason(err error) string {
	if err == nil {
		return UnknownReason
	}
	return FromError(err).Reason
}

func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	if se := new(Error); errors.As(err, &se) {
		return se
	}
	gs, ok := status.FromError(err)
	if !ok {
		return New(UnknownCode, UnknownReason, err.Error())
	}

	return New(fromGRPCCode(gs.Code()), UnknownReason, gs.Message())
}

func toGRPCCode(code int32) codes.Code {
	switch code {
	case 200:
		return codes.OK
	case 400:
		return codes.InvalidArgument
	case 404:
		return codes.NotFound
	case 429:
		return codes.ResourceExhausted
	case 503:
		return codes.Unavailable
	case 504:
		return codes.DeadlineExceeded
	}
	return codes.Unknown
}

func fromGRPCCode(code codes.Code) int32 {
	switch code {
	case codes.OK:
		return 200
	case codes.InvalidArgument:
		return 400
	case codes.NotFound:
		return 404
	case codes.ResourceExhausted:
		return 429
	case codes.Unavailable:
		return 503
	case codes.DeadlineExceeded:
		return 504
	}
	return UnknownCode
}
