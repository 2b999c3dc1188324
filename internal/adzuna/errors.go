package adzuna

import (
	"errors"
	"fmt"

	"github.com/navada/insightlab/internal/models"
)

// Kind classifies an adapter failure.
type Kind string

const (
	KindTimeout      Kind = "timeout"
	KindRateLimited  Kind = "rate_limited"
	KindMalformed    Kind = "malformed"
	KindEmpty        Kind = "empty"
	KindUnauthorized Kind = "unauthorized"
	KindNetwork      Kind = "network"
)

// Sentinels for errors.Is checks against an *Error of the matching kind.
var (
	ErrTimeout      = errors.New("adzuna: timeout")
	ErrRateLimited  = errors.New("adzuna: rate limited")
	ErrMalformed    = errors.New("adzuna: malformed response")
	ErrEmpty        = errors.New("adzuna: empty result")
	ErrUnauthorized = errors.New("adzuna: unauthorized")
	ErrNetwork      = errors.New("adzuna: network failure")
)

var kindSentinels = map[Kind]error{
	KindTimeout:      ErrTimeout,
	KindRateLimited:  ErrRateLimited,
	KindMalformed:    ErrMalformed,
	KindEmpty:        ErrEmpty,
	KindUnauthorized: ErrUnauthorized,
	KindNetwork:      ErrNetwork,
}

// Error is returned by every Client call that does not produce data.
type Error struct {
	Endpoint models.Endpoint
	Kind     Kind
	Status   int
	Cause    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("adzuna %s: %s", e.Endpoint, e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.Status)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches the sentinel for e.Kind.
func (e *Error) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

// Fatal reports whether the failure must abort the run rather than fall back.
func (e *Error) Fatal() bool {
	return e.Kind == KindUnauthorized
}

// KindOf extracts the failure kind from err, or "" when err is not an adapter error.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

// IsFatal reports whether err carries an adapter failure that must abort the run.
func IsFatal(err error) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Fatal()
}
