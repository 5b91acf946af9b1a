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

import "context"

// InProcessTransport is a Transport that calls straight into a peer
// Service living in the same process, with no encoding or byte copying
// beyond what the caller already did. It is meant for zones that share an
// address space -- tests, and topologies where "zone" denotes an
// isolation domain other than a process (e.g. a logical tenant).
type InProcessTransport struct {
	peer   *Service
	caller CallerZone
}

// NewInProcessTransport returns a Transport that delivers every operation
// to peer, attributing them to caller.
func NewInProcessTransport(peer *Service, caller CallerZone) *InProcessTransport {
	return &InProcessTransport{peer: peer, caller: caller}
}

func (t *InProcessTransport) Send(ctx context.Context, env Envelope, dest DestinationZone, object Object, method Method, args []byte) ([]byte, Envelope, error) {
	t.peer.applyBackChannel(ctx, env)
	reply, err := t.peer.Dispatch(ctx, dest, object, t.caller, method, args)
	return reply, env, err
}

func (t *InProcessTransport) Post(ctx context.Context, env Envelope, dest DestinationZone, object Object, method Method, args []byte) error {
	t.peer.applyBackChannel(ctx, env)
	// Post returns once the call is handed off, without waiting for it
	// to run; run it detached from ctx so a canceled caller doesn't
	// cancel work it already promised not to wait for.
	detached := context.Background()
	go t.peer.Dispatch(detached, dest, object, t.caller, method, args) //nolint:errcheck
	return nil
}

func (t *InProcessTransport) TryCast(ctx context.Context, env Envelope, dest DestinationZone, object Object, iface InterfaceOrdinal) (InterfaceDescriptor, Envelope, error) {
	t.peer.applyBackChannel(ctx, env)
	desc, err := t.peer.TryCast(ctx, dest, object, iface)
	return desc, env, err
}

func (t *InProcessTransport) AddRef(ctx context.Context, env Envelope, dest DestinationZone, object Object, caller CallerZone, known KnownDirectionZone, opts AddRefOptions) (Envelope, error) {
	t.peer.applyBackChannel(ctx, env)
	return env, t.peer.AddRef(ctx, dest, object, caller, known, opts)
}

func (t *InProcessTransport) Release(ctx context.Context, env Envelope, dest DestinationZone, object Object, caller CallerZone, opts ReleaseOptions) (Envelope, error) {
	t.peer.applyBackChannel(ctx, env)
	return env, t.peer.Release(ctx, dest, object, caller, opts)
}

var _ Transport = (*InProcessTransport)(nil)
