// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package model

import (
	"errors"
	"fmt"
)

// ErrorKind is the closed set of failures the adapters report to callers.
// Provider specific error names are translated to one of these exactly once,
// at the adapter boundary.
type ErrorKind int

const (
	KindUpstream ErrorKind = iota
	KindValidation
	KindUnauthorized
	KindNotFound
	KindConflict
	KindWeakCredential
	KindInvalidCode
	KindExpiredCode
	KindInvalidCredentials
	KindNotVerified
	KindInvalidToken
	KindRateLimited
)

var kindNames = map[ErrorKind]string{
	KindUpstream:           "Upstream",
	KindValidation:         "Validation",
	KindUnauthorized:       "Unauthorized",
	KindNotFound:           "NotFound",
	KindConflict:           "Conflict",
	KindWeakCredential:     "WeakCredential",
	KindInvalidCode:        "InvalidCode",
	KindExpiredCode:        "ExpiredCode",
	KindInvalidCredentials: "InvalidCredentials",
	KindNotVerified:        "NotVerified",
	KindInvalidToken:       "InvalidToken",
	KindRateLimited:        "RateLimited",
}

func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Error is a domain error. Message is safe to show to a client; Err is the
// underlying cause and is only ever logged.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a domain error without a cause.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates a domain error around a cause.
func Wrap(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf reports the kind of the first domain error in err's chain. Errors that
// carry no kind are treated as upstream failures.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUpstream
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// MessageOf returns the client safe message of err, or fallback when err does
// not carry one.
func MessageOf(err error, fallback string) string {
	var de *Error
	if errors.As(err, &de) && len(de.Message) > 0 {
		return de.Message
	}
	return fallback
}
