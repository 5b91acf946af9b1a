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

	"github.com/google/uuid"
	"log/slog"
	"golang.org/x/sync/singleflight"
)

// Service hosts local objects behind Stubs and owns the ServiceProxy for
// every zone it has ever talked to. There is exactly one Service per zone.
type Service struct {
	zone   Zone
	name   string
	logger *slog.Logger

	mu     sync.RWMutex
	stubs  map[Object]*Stub
	nextID uint64

	proxyMu sync.Mutex
	proxies map[DestinationZone]*ServiceProxy
	dialing singleflight.Group

	dial   func(ctx context.Context, dest DestinationZone) (Transport, error)
	parent *ServiceProxy
	sched  *Scheduler
}

// NewService creates a Service for zone. dial is used to lazily create a
// Transport the first time a ServiceProxy to some destination zone is
// needed; it is typically a closure over a Resolver-backed dialer.
//
// name identifies this Service instance in logs and in the bootstrap
// handshake (spec §3 "zone bootstrap record"); an empty name gets a
// generated one, the way the teacher's weavelets get a generated id when
// none is supplied.
func NewService(zone Zone, name string, dial func(ctx context.Context, dest DestinationZone) (Transport, error), logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if name == "" {
		name = uuid.NewString()
	}
	return &Service{
		zone:    zone,
		name:    name,
		logger:  logger,
		stubs:   map[Object]*Stub{},
		proxies: map[DestinationZone]*ServiceProxy{},
		dial:    dial,
		sched:   NewScheduler(0),
	}
}

// Name returns this Service's bootstrap name.
func (s *Service) Name() string { return s.name }

// SetParent marks this Service as a child service reaching every zone it
// cannot dial directly through parent, per spec §3 "a child service has a
// parent service_proxy and delegates unknown destinations upward". ProxyTo
// clones parent for each such dest instead of calling dial.
func (s *Service) SetParent(parent *ServiceProxy) {
	s.parent = parent
}

// SetConcurrency bounds the number of inbound calls this Service dispatches
// at once; see Scheduler. Call before serving any requests.
func (s *Service) SetConcurrency(width int) {
	s.sched = NewScheduler(width)
}

// Zone returns the zone this Service represents.
func (s *Service) Zone() Zone { return s.zone }

// Export allocates a fresh Object id, wraps impl in a Stub for the
// interface identified by ordinal, and returns a descriptor that can be
// handed to callers in this zone. impl must implement the Go interface
// that package idlgen generated for ordinal.
func (s *Service) Export(ordinal InterfaceOrdinal, impl any) (InterfaceDescriptor, error) {
	desc, ok := Find(ordinal)
	if !ok {
		return InterfaceDescriptor{}, newError(InterfaceNotSupported, 0, fmt.Errorf("ordinal %s not registered", ordinal))
	}
	s.mu.Lock()
	s.nextID++
	obj := Object(s.nextID)
	st := newStub(obj, s.zone, desc, impl)
	s.stubs[obj] = st
	s.mu.Unlock()
	return InterfaceDescriptor{DestinationZone: DestinationZone(s.zone), Object: obj}, nil
}

// Lookup returns the Stub for object, or ErrObjectNotFound.
func (s *Service) Lookup(object Object) (*Stub, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.stubs[object]
	if !ok {
		return nil, newError(ObjectNotFound, object, nil)
	}
	return st, nil
}

// drop removes object's Stub once its refcount reaches zero for every
// caller. Called by Stub.release.
func (s *Service) drop(object Object) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.stubs, object)
}

// ProxyTo returns the ServiceProxy for dest, dialing a Transport and
// creating one if this is the first time dest has been reached. There is
// at most one ServiceProxy per (zone, dest) pair for the lifetime of the
// Service; concurrent first calls for the same dest share a single dial
// via singleflight rather than racing separate Transports.
func (s *Service) ProxyTo(ctx context.Context, dest DestinationZone) (*ServiceProxy, error) {
	s.proxyMu.Lock()
	if sp, ok := s.proxies[dest]; ok {
		s.proxyMu.Unlock()
		return sp, nil
	}
	s.proxyMu.Unlock()

	key := fmt.Sprintf("%d", uint64(dest))
	v, err, _ := s.dialing.Do(key, func() (any, error) {
		s.proxyMu.Lock()
		if sp, ok := s.proxies[dest]; ok {
			s.proxyMu.Unlock()
			return sp, nil
		}
		s.proxyMu.Unlock()

		var sp *ServiceProxy
		if s.dial != nil {
			t, err := s.dial(ctx, dest)
			if err != nil {
				return nil, newError(ZoneUnreachable, 0, err)
			}
			sp = newServiceProxy(s.zone, dest, t, s.logger, s.applyBackChannel)
		} else if s.parent != nil {
			sp = s.parent.Clone(dest)
		} else {
			return nil, newError(ZoneUnreachable, 0, fmt.Errorf("no dial func or parent service_proxy to reach %s", dest))
		}

		s.proxyMu.Lock()
		defer s.proxyMu.Unlock()
		if existing, ok := s.proxies[dest]; ok {
			return existing, nil
		}
		s.proxies[dest] = sp
		return sp, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*ServiceProxy), nil
}

// local reports whether dest names this Service's own zone.
func (s *Service) local(dest DestinationZone) bool {
	return dest == DestinationZone(s.zone)
}

// AddRef increments object's reference count on behalf of caller, forwarding
// to dest's owning zone if dest isn't this Service's own zone (spec §4.2
// "Routing"). It returns ErrObjectNotFound if object does not exist locally.
func (s *Service) AddRef(ctx context.Context, dest DestinationZone, object Object, caller CallerZone, known KnownDirectionZone, opts AddRefOptions) error {
	if !s.local(dest) {
		sp, err := s.ProxyTo(ctx, dest)
		if err != nil {
			return err
		}
		return sp.AddRef(ctx, object, caller, known, opts)
	}
	st, err := s.Lookup(object)
	if err != nil {
		return err
	}
	st.addRef(caller)
	if opts.BuildOutParamChannel {
		if _, err := s.ProxyTo(ctx, DestinationZone(caller)); err != nil {
			return err
		}
	}
	return nil
}

// Release decrements object's reference count on behalf of caller,
// forwarding to dest if it isn't this Service's own zone, destroying the
// object once every caller's count reaches zero.
func (s *Service) Release(ctx context.Context, dest DestinationZone, object Object, caller CallerZone, opts ReleaseOptions) error {
	if !s.local(dest) {
		sp, err := s.ProxyTo(ctx, dest)
		if err != nil {
			return err
		}
		if err := sp.Release(ctx, object, caller, opts); err != nil {
			return err
		}
		if opts.LastOnPath {
			s.proxyMu.Lock()
			delete(s.proxies, dest)
			s.proxyMu.Unlock()
		}
		return nil
	}
	st, err := s.Lookup(object)
	if err != nil {
		return err
	}
	return st.release(s, caller, opts.Count)
}

// TryCast reports whether object supports ordinal, per spec §4.1's
// try_cast operation, forwarding to dest if it isn't this Service's own
// zone. This runtime exports each object under exactly one interface, so a
// local TryCast either confirms the existing descriptor or returns
// ErrInterfaceNotSupported.
func (s *Service) TryCast(ctx context.Context, dest DestinationZone, object Object, ordinal InterfaceOrdinal) (InterfaceDescriptor, error) {
	if !s.local(dest) {
		sp, err := s.ProxyTo(ctx, dest)
		if err != nil {
			return InterfaceDescriptor{}, err
		}
		return sp.TryCast(ctx, object, ordinal)
	}
	st, err := s.Lookup(object)
	if err != nil {
		return InterfaceDescriptor{}, err
	}
	if !st.implements(ordinal) {
		return InterfaceDescriptor{}, newError(InterfaceNotSupported, object, nil)
	}
	return InterfaceDescriptor{DestinationZone: DestinationZone(s.zone), Object: object}, nil
}

// Dispatch runs method on object with the raw already-decoded-from-wire
// args, as invoked by a Transport server loop, forwarding to dest if it
// isn't this Service's own zone. It is the Service-side counterpart of
// ObjectProxy.Call.
func (s *Service) Dispatch(ctx context.Context, dest DestinationZone, object Object, caller CallerZone, method Method, args []byte) ([]byte, error) {
	if !s.local(dest) {
		sp, err := s.ProxyTo(ctx, dest)
		if err != nil {
			return nil, err
		}
		return sp.Send(ctx, object, method, args)
	}
	st, err := s.Lookup(object)
	if err != nil {
		return nil, err
	}
	if !st.hasRef(caller) {
		return nil, newError(ReferenceCountError, object, fmt.Errorf("caller %s holds no reference to %s", caller, object))
	}
	fn, err := st.methodFn(method)
	if err != nil {
		return nil, err
	}
	return fn(ctx, args)
}

// DispatchAsync is like Dispatch but runs through the Service's Scheduler
// and delivers the result on done, for server loops that handle many
// inbound calls concurrently without one goroutine per call.
func (s *Service) DispatchAsync(ctx context.Context, dest DestinationZone, object Object, caller CallerZone, method Method, args []byte, done func(reply []byte, err error)) error {
	return s.sched.Go(ctx, func(ctx context.Context) {
		reply, err := s.Dispatch(ctx, dest, object, caller, method, args)
		done(reply, err)
	})
}

// applyBackChannel resolves every entry piggybacked on env: entries owned by
// this Service's own zone are applied directly against the local Stub;
// everything else is queued on the ServiceProxy toward its true owner, so a
// transiting zone forwards what it cannot satisfy itself (spec §4.3).
func (s *Service) applyBackChannel(ctx context.Context, env Envelope) {
	for _, e := range env.BackChannel {
		if s.local(e.DestinationZone) {
			st, err := s.Lookup(e.Object)
			if err != nil {
				s.logger.Warn("back-channel entry for unknown object", "object", e.Object, "op", e.Op)
				continue
			}
			switch e.Op {
			case BackChannelAddRef:
				st.addRef(e.CallerZone)
			case BackChannelRelease:
				if err := st.release(s, e.CallerZone, 1); err != nil {
					s.logger.Warn("back-channel release failed", "object", e.Object, "err", err)
				}
			}
			continue
		}
		sp, err := s.ProxyTo(ctx, e.DestinationZone)
		if err != nil {
			s.logger.Warn("cannot forward back-channel entry", "dest", e.DestinationZone, "err", err)
			continue
		}
		sp.QueueBackChannel(e)
		if err := sp.Flush(ctx); err != nil {
			s.logger.Warn("flushing forwarded back-channel entry failed", "dest", e.DestinationZone, "err", err)
		}
	}
}
