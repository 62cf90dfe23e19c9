// Package apperr defines the closed set of error kinds the sync client acts on.
//
// The gateway builds Validation, Auth, NotFound, Network and Server errors by
// inspecting the HTTP status and body of a response. The cache and queue build
// Storage errors. Callers branch on the kind with KindOf or the Is helpers and
// never on message text.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindAuth
	KindNotFound
	KindNetwork
	KindServer
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindNotFound:
		return "not_found"
	case KindNetwork:
		return "network_unavailable"
	case KindServer:
		return "server"
	case KindStorage:
		return "storage"
	default:
		return "unknown"
	}
}

// Error is a classified failure. Message is the user-facing text (the server's
// "error" field when it sent one).
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, status int, message string) *Error {
	return &Error{Kind: kind, Status: status, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Network marks err as "network unavailable".
func Network(err error) *Error {
	return &Error{Kind: KindNetwork, Message: "network unavailable", Err: err}
}

// Storage marks err as a local persistence failure.
func Storage(op string, err error) *Error {
	return &Error{Kind: KindStorage, Message: "cannot save locally (" + op + ")", Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func IsNetwork(err error) bool    { return KindOf(err) == KindNetwork }
func IsNotFound(err error) bool   { return KindOf(err) == KindNotFound }
func IsAuth(err error) bool       { return KindOf(err) == KindAuth }
func IsValidation(err error) bool { return KindOf(err) == KindValidation }
func IsStorage(err error) bool    { return KindOf(err) == KindStorage }

// Message returns the user-facing message for err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
