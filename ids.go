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

// Package zonerpc implements an inter-zone remote procedure call runtime.
//
// # Overview
//
// A zone is an isolation domain -- a process, an enclave, a socket peer --
// with its own [Service] and its own [Object] id space. A caller in one zone
// invokes a method on what looks like a local value; the runtime marshals
// the call to the zone that actually hosts the implementation, routes
// results (including further object references) back, and keeps
// cross-zone reference counts so that an object is destroyed exactly when
// the last holder anywhere in the topology releases it.
//
// The moving pieces are, roughly:
//
//	caller -> InterfaceProxy -> ObjectProxy -> ServiceProxy -> Transport -> Service -> Stub -> impl
//
// A [Service] hosts local objects behind [Stub]s and owns one [ServiceProxy]
// per reachable destination zone. A [ServiceProxy] exposes the five RPC
// operations (send, try_cast, add_ref, release, post) and forwards them to a
// [Transport]. An [ObjectProxy] is the client-side handle for one remote
// object; casting it to an interface yields an InterfaceProxy, which a
// code generator (see package idlgen) fills in with per-method marshaling.
package zonerpc

import "fmt"

// Zone identifies a [Service] -- unique within a topology.
type Zone uint64

func (z Zone) String() string { return fmt.Sprintf("zone:%d", uint64(z)) }

// DestinationZone identifies the zone that owns an object being referenced.
type DestinationZone uint64

func (z DestinationZone) String() string { return fmt.Sprintf("dest:%d", uint64(z)) }

// CallerZone identifies the zone from which a reference is held. It is the
// key (together with an Object) into a stub's per-caller refcount table.
type CallerZone uint64

func (z CallerZone) String() string { return fmt.Sprintf("caller:%d", uint64(z)) }

// KnownDirectionZone is an opaque routing hint attached to the frame that
// introduced a descriptor. Forwarders preserve it verbatim; see the
// known_direction_zone open question in DESIGN.md.
type KnownDirectionZone uint64

func (z KnownDirectionZone) String() string { return fmt.Sprintf("known:%d", uint64(z)) }

// Object identifies an object within its owning zone -- unique per zone,
// never reused while any refcount on it remains outstanding.
type Object uint64

func (o Object) String() string { return fmt.Sprintf("obj:%d", uint64(o)) }

// InterfaceOrdinal is a stable fingerprint of an interface and its
// declared methods at a fixed protocol version. The same namespace,
// interface name, and method signatures at the same version give the same
// ordinal; changing any of them changes it. See package idlgen.
type InterfaceOrdinal uint64

func (o InterfaceOrdinal) String() string { return fmt.Sprintf("iface:%#x", uint64(o)) }

// Method is the ordinal of a method within an interface, assigned in
// declaration order by the code generator.
type Method uint32

func (m Method) String() string { return fmt.Sprintf("method:%d", uint32(m)) }

// NoZone is the zero Zone value, used as a sentinel for "not yet attached".
const NoZone Zone = 0

// NoObject is the zero Object value, used as a sentinel for "no object".
const NoObject Object = 0
