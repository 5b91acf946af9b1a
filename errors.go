// Copyright 2022 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package zonerpc

import "fmt"

// Code is one of the distinct error codes from spec §7. OK is the zero
// value and is never itself returned as an error (nil is returned instead).
type Code int

const (
	OK Code = iota
	ObjectNotFound
	InterfaceNotSupported
	MethodNotFound
	InvalidEncoding
	ProxyDeserializationError
	StubDeserializationError
	ReferenceCountError
	TransportError
	Timeout
	ZoneUnreachable
	ProtocolMismatch
	InternalError
)

var codeNames = map[Code]string{
	OK:                        "OK",
	ObjectNotFound:            "OBJECT_NOT_FOUND",
	InterfaceNotSupported:     "INTERFACE_NOT_SUPPORTED",
	MethodNotFound:            "METHOD_NOT_FOUND",
	InvalidEncoding:           "INVALID_ENCODING",
	ProxyDeserializationError: "PROXY_DESERIALISATION_ERROR",
	StubDeserializationError:  "STUB_DESERIALISATION_ERROR",
	ReferenceCountError:       "REFERENCE_COUNT_ERROR",
	TransportError:            "TRANSPORT_ERROR",
	Timeout:                   "TIMEOUT",
	ZoneUnreachable:           "ZONE_UNREACHABLE",
	ProtocolMismatch:          "PROTOCOL_MISMATCH",
	InternalError:             "INTERNAL_ERROR",
}

func (c Code) String() string {
	if n, ok := codeNames[c]; ok {
		return n
	}
	return fmt.Sprintf("CODE(%d)", int(c))
}

// Error is the error type returned by every RPC operation in this package.
// Callers distinguish error kinds with errors.Is against the Err* sentinel
// values below, or by inspecting Code directly.
type Error struct {
	Code    Code
	Zone    Zone   // zone that observed the error, if known
	Object  Object // object the error pertains to, if any
	Wrapped error  // underlying cause, if any (e.g. a transport error)
}

func (e *Error) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("%s (object %s): %v", e.Code, e.Object, e.Wrapped)
	}
	return fmt.Sprintf("%s (object %s)", e.Code, e.Object)
}

func (e *Error) Unwrap() error { return e.Wrapped }

// Is makes errors.Is(err, ErrObjectNotFound) etc. work by comparing codes.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func newError(code Code, object Object, wrapped error) *Error {
	return &Error{Code: code, Object: object, Wrapped: wrapped}
}

// Sentinel errors for use with errors.Is. Only Code is compared, so these
// can be constructed with any Object/Wrapped value.
var (
	ErrObjectNotFound            = &Error{Code: ObjectNotFound}
	ErrInterfaceNotSupported     = &Error{Code: InterfaceNotSupported}
	ErrMethodNotFound            = &Error{Code: MethodNotFound}
	ErrInvalidEncoding           = &Error{Code: InvalidEncoding}
	ErrProxyDeserializationError = &Error{Code: ProxyDeserializationError}
	ErrStubDeserializationError  = &Error{Code: StubDeserializationError}
	ErrReferenceCountError       = &Error{Code: ReferenceCountError}
	ErrTransportError            = &Error{Code: TransportError}
	ErrTimeout                   = &Error{Code: Timeout}
	ErrZoneUnreachable           = &Error{Code: ZoneUnreachable}
	ErrProtocolMismatch          = &Error{Code: ProtocolMismatch}
	ErrInternalError             = &Error{Code: InternalError}
)
