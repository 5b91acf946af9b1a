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
)

// Stub is the server-side dispatcher for one exported object: it holds the
// object's implementation, the generated per-method marshaling code, and a
// per-caller reference count, per spec §4.3.
//
// The owning zone never appears in counts: it did not add_ref to create
// the object, so it has nothing to release either, and a stub whose only
// remaining holders are remote callers must still be able to reach zero
// (spec §8 scenario 2). owner is admitted implicitly by hasRef instead.
type Stub struct {
	object Object
	owner  Zone
	iface  InterfaceDesc
	server interface {
		GetStubFn(method string) func(ctx context.Context, args []byte) ([]byte, error)
	}

	mu     sync.Mutex
	counts map[CallerZone]uint32
}

func newStub(object Object, owner Zone, iface InterfaceDesc, impl any) *Stub {
	addLoad := func(Method, float64) {}
	return &Stub{
		object: object,
		owner:  owner,
		iface:  iface,
		server: iface.NewServerStub(impl, addLoad),
		counts: map[CallerZone]uint32{},
	}
}

// Ordinal returns the interface ordinal this stub was exported for.
func (s *Stub) Ordinal() InterfaceOrdinal { return s.iface.Ordinal }

// hasRef reports whether caller currently holds at least one reference.
// The owning zone always holds an implicit reference: it created the
// object rather than add_ref'ing it, and is not tracked in counts.
func (s *Stub) hasRef(caller CallerZone) bool {
	if caller == CallerZone(s.owner) {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[caller] > 0
}

// addRef increments the reference count held by caller. It never fails:
// adding a reference to an object that already exists always succeeds.
func (s *Stub) addRef(caller CallerZone) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[caller]++
}

// release decrements the reference count held by caller by count (or one,
// if count is zero). If the count would go negative, ErrReferenceCountError
// is returned and no decrement happens, per spec §7. When every caller's
// count reaches zero the stub notifies owner so the object can be dropped.
func (s *Stub) release(owner *Service, caller CallerZone, count uint32) error {
	if count == 0 {
		count = 1
	}
	s.mu.Lock()
	have, ok := s.counts[caller]
	if !ok || have < count {
		s.mu.Unlock()
		return newError(ReferenceCountError, s.object, fmt.Errorf("caller %s has %d references, release requested %d", caller, have, count))
	}
	have -= count
	if have == 0 {
		delete(s.counts, caller)
	} else {
		s.counts[caller] = have
	}
	empty := len(s.counts) == 0
	s.mu.Unlock()
	if empty && owner != nil {
		owner.drop(s.object)
	}
	return nil
}

// methodFn returns the generated handler for method.
func (s *Stub) methodFn(method Method) (func(ctx context.Context, args []byte) ([]byte, error), error) {
	if int(method) >= len(s.iface.Methods) {
		return nil, newError(MethodNotFound, s.object, fmt.Errorf("method index %d out of range", method))
	}
	fn := s.server.GetStubFn(s.iface.Methods[method])
	if fn == nil {
		return nil, newError(MethodNotFound, s.object, fmt.Errorf("method %q not found", s.iface.Methods[method]))
	}
	return fn, nil
}

// implements reports whether this stub's interface can satisfy ordinal,
// used by TryCast. A real implementation could support multiple
// interfaces per object; this runtime supports exactly the one an object
// was exported with.
func (s *Stub) implements(ordinal InterfaceOrdinal) bool {
	return s.iface.Ordinal == ordinal
}
