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

import (
	"context"
	"time"
)

// Encoding identifies the wire format used to marshal method arguments and
// results. See package encoding for the concrete codecs.
type Encoding int

const (
	// EncodingUnspecified means "let the transport pick a default" -- a
	// ServiceProxy must never emit it on the wire.
	EncodingUnspecified Encoding = iota
	EncodingYASJSON
	EncodingYASBinary
	EncodingYASCompressedBinary
	EncodingProtocolBuffers
)

func (e Encoding) String() string {
	switch e {
	case EncodingYASJSON:
		return "yas_json"
	case EncodingYASBinary:
		return "yas_binary"
	case EncodingYASCompressedBinary:
		return "yas_compressed_binary"
	case EncodingProtocolBuffers:
		return "protocol_buffers"
	default:
		return "unspecified"
	}
}

// ProtocolVersion is negotiated once per ServiceProxy and then attached to
// every frame; a mismatch is reported as ErrProtocolMismatch.
type ProtocolVersion uint32

// CurrentProtocolVersion is the version this runtime speaks.
const CurrentProtocolVersion ProtocolVersion = 1

// Envelope carries the fields common to every Transport operation: the
// protocol/encoding negotiated for the hop, and any back-channel refcount
// deltas piggybacked on this frame (spec §4.2/§4.3).
type Envelope struct {
	ProtocolVersion ProtocolVersion
	Encoding        Encoding
	BackChannel     BackChannel
}

// Transport is the transport-agnostic operation set a ServiceProxy drives.
// A concrete Transport might be an in-process call, a socket, a pipe, or
// anything else that can move bytes between two zones; it knows nothing
// about objects, interfaces, or refcounts beyond what is in the Envelope.
//
// Every method blocks until the operation (or, for Post, its enqueuing)
// completes, and honors ctx cancellation/deadlines, returning an *Error
// with code Timeout or ZoneUnreachable as appropriate.
type Transport interface {
	// Send invokes method on object and waits for a reply. args and the
	// returned reply are already-encoded payloads in env.Encoding. dest
	// names the zone the call is ultimately bound for, which the peer
	// honors locally or forwards, per spec §4.2 "Routing".
	Send(ctx context.Context, env Envelope, dest DestinationZone, object Object, method Method, args []byte) (reply []byte, _ Envelope, err error)

	// TryCast asks dest whether object supports iface, returning an
	// equivalent InterfaceDescriptor (possibly for a different Object
	// implementing iface) or ErrInterfaceNotSupported.
	TryCast(ctx context.Context, env Envelope, dest DestinationZone, object Object, iface InterfaceOrdinal) (InterfaceDescriptor, Envelope, error)

	// AddRef increments dest's refcount for (object, caller). It must be
	// called, and succeed, before a descriptor naming object is handed
	// to user code on the caller's side. If opts.BuildOutParamChannel is
	// set, dest is asked to allocate a reverse service_proxy back to
	// caller's zone so it can later call back into it.
	AddRef(ctx context.Context, env Envelope, dest DestinationZone, object Object, caller CallerZone, known KnownDirectionZone, opts AddRefOptions) (Envelope, error)

	// Release decrements dest's refcount for (object, caller). Releasing
	// an (object, caller) pair with no outstanding count is reported as
	// ErrReferenceCountError.
	Release(ctx context.Context, env Envelope, dest DestinationZone, object Object, caller CallerZone, opts ReleaseOptions) (Envelope, error)

	// Post is a fire-and-forget variant of Send: it returns as soon as
	// the call is durably enqueued for delivery, without waiting for the
	// destination to run the method or for any reply.
	Post(ctx context.Context, env Envelope, dest DestinationZone, object Object, method Method, args []byte) error
}

// AddRefOptions configures an add_ref call. A zero value is the common
// case: no extra behavior.
type AddRefOptions struct {
	// Timeout, if nonzero, bounds how long the caller waits before the
	// add_ref is abandoned and a compensating release is scheduled.
	Timeout time.Duration

	// BuildOutParamChannel requests that the owner prepare to accept
	// callbacks from the caller's zone, allocating a reverse
	// service_proxy if none exists yet (spec §4.3 Options,
	// add_ref_options::build_out_param_channel).
	BuildOutParamChannel bool
}

// ReleaseOptions configures a release call.
type ReleaseOptions struct {
	// Count is the number of references being released at once; zero
	// means one.
	Count uint32

	// LastOnPath hints that this is the last outstanding reference the
	// caller holds through this particular routing path, letting the
	// owner collapse any routing state (e.g. a cached service_proxy) it
	// keeps for that path instead of waiting to discover it is idle
	// (spec §4.3 Options, release_options).
	LastOnPath bool
}
