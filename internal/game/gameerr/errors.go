// Package gameerr defines the typed errors returned by the rules engine.
//
// Every error carries a machine-readable Code. Errors compare equal under
// errors.Is when their codes match, so callers test against the sentinels
// (gameerr.Occupied, gameerr.NotPlayable, ...) regardless of the message.
package gameerr

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Code is a machine-readable error code.
type Code string

const (
	CodeIllegalAction         Code = "ILLEGAL_ACTION"
	CodeInvalidArgument       Code = "INVALID_ARGUMENT"
	CodeOccupied              Code = "OCCUPIED"
	CodeAdjacency             Code = "ADJACENCY"
	CodeSameLocation          Code = "SAME_LOCATION"
	CodeInsufficientResource  Code = "INSUFFICIENT_RESOURCE"
	CodeEmptyPile             Code = "EMPTY_PILE"
	CodeNotPlayable           Code = "NOT_PLAYABLE"
	CodeNegotiationInProgress Code = "NEGOTIATION_IN_PROGRESS"
	CodeNothingToUndo         Code = "NOTHING_TO_UNDO"
	CodeNothingToRedo         Code = "NOTHING_TO_REDO"
	CodeInvariantViolation    Code = "INVARIANT_VIOLATION"
	CodeGameAborted           Code = "GAME_ABORTED"
)

var grpcCodes = map[Code]codes.Code{
	CodeIllegalAction:         codes.FailedPrecondition,
	CodeInvalidArgument:       codes.InvalidArgument,
	CodeOccupied:              codes.AlreadyExists,
	CodeAdjacency:             codes.FailedPrecondition,
	CodeSameLocation:          codes.InvalidArgument,
	CodeInsufficientResource:  codes.ResourceExhausted,
	CodeEmptyPile:             codes.ResourceExhausted,
	CodeNotPlayable:           codes.FailedPrecondition,
	CodeNegotiationInProgress: codes.Aborted,
	CodeNothingToUndo:         codes.OutOfRange,
	CodeNothingToRedo:         codes.OutOfRange,
	CodeInvariantViolation:    codes.Internal,
	CodeGameAborted:           codes.Unavailable,
}

// GRPCCode maps the error code to the closest gRPC status code.
func (c Code) GRPCCode() codes.Code {
	if code, ok := grpcCodes[c]; ok {
		return code
	}
	return codes.Unknown
}

// Sentinels for errors.Is comparisons.
var (
	IllegalAction         = &Error{Code: CodeIllegalAction, Message: "illegal action"}
	InvalidArgument       = &Error{Code: CodeInvalidArgument, Message: "invalid argument"}
	Occupied              = &Error{Code: CodeOccupied, Message: "site is occupied"}
	Adjacency             = &Error{Code: CodeAdjacency, Message: "adjacency rule violated"}
	SameLocation          = &Error{Code: CodeSameLocation, Message: "robber is already there"}
	InsufficientResource  = &Error{Code: CodeInsufficientResource, Message: "insufficient resources"}
	EmptyPile             = &Error{Code: CodeEmptyPile, Message: "development pile is empty"}
	NotPlayable           = &Error{Code: CodeNotPlayable, Message: "card is not playable"}
	NegotiationInProgress = &Error{Code: CodeNegotiationInProgress, Message: "a negotiation is already pending"}
	NothingToUndo         = &Error{Code: CodeNothingToUndo, Message: "nothing to undo"}
	NothingToRedo         = &Error{Code: CodeNothingToRedo, Message: "nothing to redo"}
	InvariantViolation    = &Error{Code: CodeInvariantViolation, Message: "invariant violated"}
	GameAborted           = &Error{Code: CodeGameAborted, Message: "game session aborted"}
)

// Error is the engine error type with structured metadata.
type Error struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// GRPCStatus lets status.FromError classify engine errors.
func (e *Error) GRPCStatus() *status.Status {
	return status.New(e.Code.GRPCCode(), e.Error())
}

// New creates an error with a code and a formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithMetadata creates an error carrying key/value context.
func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return &Error{Code: code, Message: message, Metadata: metadata}
}

// Wrap creates an error with a code that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Illegal is shorthand for an IllegalAction error.
func Illegal(format string, args ...any) *Error {
	return New(CodeIllegalAction, format, args...)
}

// Invalid is shorthand for an InvalidArgument error.
func Invalid(format string, args ...any) *Error {
	return New(CodeInvalidArgument, format, args...)
}

// CodeOf extracts the code of the first *Error in err's chain.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Recoverable reports whether the caller may retry after err. Invariant
// violations and aborted sessions are fatal.
func Recoverable(err error) bool {
	if err == nil {
		return true
	}
	switch CodeOf(err) {
	case CodeInvariantViolation, CodeGameAborted:
		return false
	}
	return true
}
