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
	"sync"
	"sync/atomic"
)

// ObjectProxy is the client-side handle for one remote object. Casting it
// to a generated interface type yields an InterfaceProxy, which package
// idlgen fills in with per-method marshaling that calls ObjectProxy.Call.
//
// An ObjectProxy owns one reference on the remote object, acquired before
// the ObjectProxy is ever returned to user code and released exactly once,
// by Close. No finalizer is set, so an ObjectProxy that is never closed
// keeps its reference.
type ObjectProxy struct {
	sp      *ServiceProxy
	caller  CallerZone
	desc    InterfaceDescriptor
	ordinal InterfaceOrdinal

	// forwardedVia is set only by NewForwardedObjectProxy, for a proxy
	// whose reference arrived piggybacked on sp rather than through its
	// own add_ref: Close then delivers the matching release the same
	// way, queued on forwardedVia, instead of issuing a fresh RPC.
	forwardedVia *ServiceProxy

	closed atomic.Bool
	mu     sync.Mutex
}

// NewObjectProxy acquires a reference on desc through sp on behalf of
// caller and returns a ready-to-use proxy, or an error if the add_ref
// fails (including ErrTimeout, in which case no reference is held).
func NewObjectProxy(ctx context.Context, sp *ServiceProxy, caller CallerZone, known KnownDirectionZone, desc InterfaceDescriptor, ordinal InterfaceOrdinal, opts AddRefOptions) (*ObjectProxy, error) {
	if err := sp.AddRef(ctx, desc.Object, caller, known, opts); err != nil {
		return nil, err
	}
	return &ObjectProxy{sp: sp, caller: caller, desc: desc, ordinal: ordinal}, nil
}

// NewForwardedObjectProxy builds an ObjectProxy for a reference introduced
// by another zone's Forward call rather than by this zone's own add_ref: the
// owner's count was already incremented by the back-channel entry riding on
// sp's inbound envelope, so no add_ref RPC is issued here (spec §4.3 rule
// 3). Close on the result queues the matching release back onto sp instead
// of issuing its own dedicated RPC.
func NewForwardedObjectProxy(sp *ServiceProxy, caller CallerZone, desc InterfaceDescriptor, ordinal InterfaceOrdinal) *ObjectProxy {
	return &ObjectProxy{sp: sp, caller: caller, desc: desc, ordinal: ordinal, forwardedVia: sp}
}

// Descriptor returns the InterfaceDescriptor this proxy refers to.
func (p *ObjectProxy) Descriptor() InterfaceDescriptor { return p.desc }

// Ordinal returns the interface this proxy was cast to.
func (p *ObjectProxy) Ordinal() InterfaceOrdinal { return p.ordinal }

// Call invokes method on the remote object with already-encoded args and
// returns the already-encoded reply. Generated InterfaceProxy code calls
// this after marshaling arguments and before unmarshaling the result.
func (p *ObjectProxy) Call(ctx context.Context, method Method, args []byte) ([]byte, error) {
	if p.closed.Load() {
		return nil, newError(ObjectNotFound, p.desc.Object, nil)
	}
	return p.sp.Send(ctx, p.desc.Object, method, args)
}

// Post invokes method on the remote object with already-encoded args
// without waiting for a reply, per spec's post operation. Generated
// InterfaceProxy code calls this for methods declared one-way.
func (p *ObjectProxy) Post(ctx context.Context, method Method, args []byte) error {
	if p.closed.Load() {
		return newError(ObjectNotFound, p.desc.Object, nil)
	}
	return p.sp.Post(ctx, p.desc.Object, method, args)
}

// Cast asks the remote zone whether the underlying object also supports
// ordinal, returning a new ObjectProxy for it (holding its own reference)
// if so.
func (p *ObjectProxy) Cast(ctx context.Context, ordinal InterfaceOrdinal, opts AddRefOptions) (*ObjectProxy, error) {
	desc, err := p.sp.TryCast(ctx, p.desc.Object, ordinal)
	if err != nil {
		return nil, err
	}
	return NewObjectProxy(ctx, p.sp, p.caller, 0, desc, ordinal, opts)
}

// Forward declares that p's descriptor is about to be embedded as an
// argument in a call this zone is making to a third zone over via, on
// behalf of downstream. Instead of downstream add_ref'ing the owner
// directly once it receives the descriptor (see NewForwardedObjectProxy),
// Forward piggybacks an add_ref back-channel entry on the next frame via
// sends, so the owner's count reflects downstream's hold without an extra
// round trip (spec §4.3 rule 3). It does not affect p's own reference or
// lifecycle, and returns p's descriptor unchanged for embedding.
func (p *ObjectProxy) Forward(via *ServiceProxy, downstream CallerZone) InterfaceDescriptor {
	via.QueueBackChannel(BackChannelEntry{
		Op:                 BackChannelAddRef,
		DestinationZone:    p.desc.DestinationZone,
		Object:             p.desc.Object,
		CallerZone:         downstream,
		KnownDirectionZone: KnownDirectionZone(p.caller),
	})
	return p.desc
}

// Close releases this proxy's reference on the remote object. It is safe
// to call more than once; only the first call has effect. A proxy built by
// NewForwardedObjectProxy queues its release as a back-channel entry on
// the same ServiceProxy its reference arrived on instead of issuing a
// dedicated release RPC.
func (p *ObjectProxy) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed.Swap(true) {
		return nil
	}
	if p.forwardedVia != nil {
		p.forwardedVia.QueueBackChannel(BackChannelEntry{
			Op:                 BackChannelRelease,
			DestinationZone:    p.desc.DestinationZone,
			Object:             p.desc.Object,
			CallerZone:         p.caller,
			KnownDirectionZone: KnownDirectionZone(p.caller),
		})
		return p.forwardedVia.Flush(ctx)
	}
	return p.sp.Release(ctx, p.desc.Object, p.caller, ReleaseOptions{Count: 1})
}
