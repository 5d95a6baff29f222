package main

import "fmt"

// ErrorKind tags every recoverable game error so callers can pattern-match
// instead of string-comparing messages.
type ErrorKind int

const (
	ErrInvalidToken ErrorKind = iota
	ErrInvalidSession
	ErrInvalidUser
	ErrInvalidModerator
	ErrInvalidAdministrator
	ErrInvalidList
	ErrInvalidLocation
	ErrInvalidItem
)

func (k ErrorKind) String() string {
	switch k {
	case ErrInvalidToken:
		return "invalid token"
	case ErrInvalidSession:
		return "invalid session"
	case ErrInvalidUser:
		return "invalid user"
	case ErrInvalidModerator:
		return "invalid moderator"
	case ErrInvalidAdministrator:
		return "invalid administrator"
	case ErrInvalidList:
		return "invalid list"
	case ErrInvalidLocation:
		return "invalid location"
	case ErrInvalidItem:
		return "invalid item"
	}
	return "unknown error"
}

// GameError is the tagged failure result returned by every fallible
// operation. No panic or untagged error crosses the gateway boundary.
type GameError struct {
	Kind    ErrorKind
	Message string
}

func (e *GameError) Error() string {
	return e.Kind.String() + ": " + e.Message
}

func errf(kind ErrorKind, format string, args ...interface{}) *GameError {
	return &GameError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
