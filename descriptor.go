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

// InterfaceDescriptor is the wire form of any cross-zone object reference.
// Every IDL-declared interface parameter marshals to one of these; the
// receiving side resolves it to a concrete typed proxy or stub.
type InterfaceDescriptor struct {
	DestinationZone DestinationZone
	Object          Object
}

// IsZero reports whether d is the zero descriptor (no object referenced).
func (d InterfaceDescriptor) IsZero() bool {
	return d.DestinationZone == 0 && d.Object == 0
}

func (d InterfaceDescriptor) String() string {
	return fmt.Sprintf("%s/%s", d.DestinationZone, d.Object)
}

// BackChannelOp identifies the kind of action a BackChannelEntry piggybacks
// on an otherwise unrelated frame.
type BackChannelOp int

const (
	// BackChannelAddRef requests that the owner increment its per-caller
	// count for (Object, Caller).
	BackChannelAddRef BackChannelOp = iota
	// BackChannelRelease requests that the owner decrement its per-caller
	// count for (Object, Caller).
	BackChannelRelease
)

func (op BackChannelOp) String() string {
	switch op {
	case BackChannelAddRef:
		return "add_ref"
	case BackChannelRelease:
		return "release"
	default:
		return fmt.Sprintf("backchannel(%d)", int(op))
	}
}

// BackChannelEntry is a refcount delta that a routing zone piggybacks on the
// frame of an unrelated RPC operation, per spec §4.2/§4.3. This is the
// mechanism that keeps refcounts consistent without a dedicated round trip
// per hop.
type BackChannelEntry struct {
	Op                 BackChannelOp
	DestinationZone    DestinationZone
	Object             Object
	CallerZone         CallerZone
	KnownDirectionZone KnownDirectionZone
}

// BackChannel is the trailer of refcount deltas carried by every Transport
// operation.
type BackChannel []BackChannelEntry
