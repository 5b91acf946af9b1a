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
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"log/slog"

	"github.com/zonerpc/zonerpc/internal/cond"
	"github.com/zonerpc/zonerpc/internal/member"
	"github.com/zonerpc/zonerpc/runtime/retry"
)

// tryCastCacheSize bounds how many (object, interface) -> descriptor
// try_cast results a ServiceProxy remembers, so repeatedly casting the
// same remote object to the same interface doesn't round-trip every time;
// try_cast is pure for a given (object, interface) pair for the lifetime
// of the object, so caching it is always safe.
const tryCastCacheSize = 4096

type tryCastKey struct {
	object Object
	iface  InterfaceOrdinal
}

// ServiceProxy is the outbound edge from one zone to one peer zone: there
// is exactly one ServiceProxy per (self, dest) pair, created on first use
// and cloned (see Clone) only when the runtime needs to hand the same
// logical edge to a different routing path.
type ServiceProxy struct {
	self Zone
	dest DestinationZone
	// transport is a thread-safe cell rather than a plain field: every
	// Send/Post/TryCast/AddRef/Release reads it concurrently.
	transport *member.Ptr[Transport]
	logger    *slog.Logger

	// apply hands every Envelope this ServiceProxy observes, inbound or
	// outbound, to the owning Service so it can reconcile any piggybacked
	// back-channel entries (spec §4.3). nil for a ServiceProxy built
	// without an owning Service (e.g. in tests).
	apply func(ctx context.Context, env Envelope)

	// encoding negotiated for this peer; EncodingUnspecified until the
	// first successful operation picks one.
	mu       sync.Mutex
	encoding Encoding

	// bcOut queues back-channel entries produced by ObjectProxy.Forward
	// or Service.applyBackChannel that ride on the next Envelope this
	// ServiceProxy sends, instead of each needing its own round trip.
	bcMu  sync.Mutex
	bcOut BackChannel

	// pending tracks add_ref calls that are in flight but not yet
	// acknowledged, per spec §4.3 rule 2: a descriptor cannot be released
	// while its introducing add_ref is still pending. pendingCond wakes
	// Release as soon as the count for its key reaches zero, instead of
	// polling.
	pendingMu   sync.Mutex
	pendingCond *cond.Cond
	pending     map[pendingKey]int

	tryCast *lru.Cache[tryCastKey, InterfaceDescriptor]
}

type pendingKey struct {
	object Object
	caller CallerZone
}

func newServiceProxy(self Zone, dest DestinationZone, t Transport, logger *slog.Logger, apply func(ctx context.Context, env Envelope)) *ServiceProxy {
	cache, _ := lru.New[tryCastKey, InterfaceDescriptor](tryCastCacheSize)
	sp := &ServiceProxy{
		self:      self,
		dest:      dest,
		transport: member.New[Transport](t),
		logger:    logger,
		apply:     apply,
		pending:   map[pendingKey]int{},
		tryCast:   cache,
	}
	sp.pendingCond = cond.NewCond(&sp.pendingMu)
	return sp
}

// Clone returns a ServiceProxy reaching dest through sp's Transport, for a
// child service that learns of a new destination_zone only by routing
// through an existing upstream link (spec §3 "cloned when a further zone
// is reached through it"). The try_cast cache is shared, since it is keyed
// only by (object, interface) and a cast result stays valid regardless of
// which clone populated it; pending add_ref/back-channel state is not,
// since it belongs to a distinct (self, dest) pair.
func (sp *ServiceProxy) Clone(dest DestinationZone) *ServiceProxy {
	clone := &ServiceProxy{
		self:      sp.self,
		dest:      dest,
		transport: member.New(sp.transport.Get()),
		logger:    sp.logger,
		apply:     sp.apply,
		pending:   map[pendingKey]int{},
		tryCast:   sp.tryCast,
	}
	clone.pendingCond = cond.NewCond(&clone.pendingMu)
	return clone
}

// QueueBackChannel appends e to the entries piggybacked on the next
// Envelope sp sends, per spec §4.3 rule 3.
func (sp *ServiceProxy) QueueBackChannel(e BackChannelEntry) {
	sp.bcMu.Lock()
	sp.bcOut = append(sp.bcOut, e)
	sp.bcMu.Unlock()
}

// Flush delivers any queued back-channel entries immediately via a harmless
// Post, for when there is no other outbound traffic to piggyback them on.
func (sp *ServiceProxy) Flush(ctx context.Context) error {
	sp.bcMu.Lock()
	pending := len(sp.bcOut) > 0
	sp.bcMu.Unlock()
	if !pending {
		return nil
	}
	return sp.Post(ctx, NoObject, Method(0), nil)
}

func (sp *ServiceProxy) envelope() Envelope {
	sp.mu.Lock()
	enc := sp.encoding
	sp.mu.Unlock()
	if enc == EncodingUnspecified {
		enc = EncodingYASBinary
	}
	sp.bcMu.Lock()
	bc := sp.bcOut
	sp.bcOut = nil
	sp.bcMu.Unlock()
	return Envelope{ProtocolVersion: CurrentProtocolVersion, Encoding: enc, BackChannel: bc}
}

func (sp *ServiceProxy) observe(ctx context.Context, env Envelope) {
	if env.Encoding != EncodingUnspecified {
		sp.mu.Lock()
		sp.encoding = env.Encoding
		sp.mu.Unlock()
	}
	if sp.apply != nil && len(env.BackChannel) > 0 {
		sp.apply(ctx, env)
	}
}

// SetEncoding pins the encoding used for subsequent operations to dest. It
// must be called before the first operation if the default
// (yas_binary) is not desired.
func (sp *ServiceProxy) SetEncoding(enc Encoding) {
	sp.mu.Lock()
	sp.encoding = enc
	sp.mu.Unlock()
}

// Send invokes method on object in the destination zone and returns its
// encoded reply.
func (sp *ServiceProxy) Send(ctx context.Context, object Object, method Method, args []byte) ([]byte, error) {
	reply, env, err := sp.transport.Get().Send(ctx, sp.envelope(), sp.dest, object, method, args)
	if err != nil {
		return nil, classifyTransportErr(object, err)
	}
	sp.observe(ctx, env)
	return reply, nil
}

// Post invokes method on object without waiting for a reply.
func (sp *ServiceProxy) Post(ctx context.Context, object Object, method Method, args []byte) error {
	if err := sp.transport.Get().Post(ctx, sp.envelope(), sp.dest, object, method, args); err != nil {
		return classifyTransportErr(object, err)
	}
	return nil
}

// TryCast asks dest whether object supports iface.
func (sp *ServiceProxy) TryCast(ctx context.Context, object Object, iface InterfaceOrdinal) (InterfaceDescriptor, error) {
	key := tryCastKey{object, iface}
	if sp.tryCast != nil {
		if desc, ok := sp.tryCast.Get(key); ok {
			return desc, nil
		}
	}
	desc, env, err := sp.transport.Get().TryCast(ctx, sp.envelope(), sp.dest, object, iface)
	if err != nil {
		return InterfaceDescriptor{}, classifyTransportErr(object, err)
	}
	sp.observe(ctx, env)
	if sp.tryCast != nil {
		sp.tryCast.Add(key, desc)
	}
	return desc, nil
}

// AddRef increments dest's refcount for (object, caller). Per spec §4.3,
// the caller must not expose the resulting descriptor to user code until
// this returns successfully; if opts.Timeout elapses first, AddRef issues
// a compensating Release and returns ErrTimeout.
func (sp *ServiceProxy) AddRef(ctx context.Context, object Object, caller CallerZone, known KnownDirectionZone, opts AddRefOptions) error {
	key := pendingKey{object, caller}
	sp.pendingMu.Lock()
	sp.pending[key]++
	sp.pendingMu.Unlock()

	done := func() {
		sp.pendingMu.Lock()
		sp.pending[key]--
		if sp.pending[key] <= 0 {
			delete(sp.pending, key)
		}
		sp.pendingMu.Unlock()
		sp.pendingCond.Broadcast()
	}

	if opts.Timeout <= 0 {
		defer done()
		env, err := sp.transport.Get().AddRef(ctx, sp.envelope(), sp.dest, object, caller, known, opts)
		if err != nil {
			return classifyTransportErr(object, err)
		}
		sp.observe(ctx, env)
		return nil
	}

	cctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()
	env, err := sp.transport.Get().AddRef(cctx, sp.envelope(), sp.dest, object, caller, known, opts)
	done()
	if err != nil {
		if cctx.Err() != nil {
			sp.compensate(ctx, object, caller)
			return newError(Timeout, object, fmt.Errorf("add_ref to %s timed out", sp.dest))
		}
		return classifyTransportErr(object, err)
	}
	sp.observe(ctx, env)
	return nil
}

// compensate issues a best-effort release for an add_ref that timed out,
// per spec §4.3's timeout-compensation rule, retrying with backoff since
// the peer may be transiently unreachable.
func (sp *ServiceProxy) compensate(ctx context.Context, object Object, caller CallerZone) {
	go func() {
		for r := retry.Begin(); r.Continue(ctx); {
			if err := sp.Release(ctx, object, caller, ReleaseOptions{Count: 1}); err == nil {
				return
			}
			sp.logger.Warn("compensating release failed, retrying", "object", object, "dest", sp.dest)
		}
	}()
}

// Release decrements dest's refcount for (object, caller) per opts. It
// blocks until any pending add_ref for the same (object, caller) has been
// acknowledged, per spec §4.3 rule 2.
func (sp *ServiceProxy) Release(ctx context.Context, object Object, caller CallerZone, opts ReleaseOptions) error {
	key := pendingKey{object, caller}
	sp.pendingMu.Lock()
	for sp.pending[key] > 0 {
		if err := sp.pendingCond.Wait(ctx); err != nil {
			sp.pendingMu.Unlock()
			return newError(Timeout, object, err)
		}
	}
	sp.pendingMu.Unlock()
	env, err := sp.transport.Get().Release(ctx, sp.envelope(), sp.dest, object, caller, opts)
	if err != nil {
		return classifyTransportErr(object, err)
	}
	sp.observe(ctx, env)
	return nil
}

func classifyTransportErr(object Object, err error) error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		return e
	}
	return newError(TransportError, object, err)
}
