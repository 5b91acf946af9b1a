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
	"errors"
	"testing"

	"github.com/zonerpc/zonerpc/runtime/codegen"
)

type fakeServer struct {
	calls int
}

func (s *fakeServer) GetStubFn(method string) func(ctx context.Context, args []byte) ([]byte, error) {
	if method != "Echo" {
		return nil
	}
	return func(ctx context.Context, args []byte) ([]byte, error) {
		s.calls++
		return args, nil
	}
}

func stubDesc() InterfaceDesc {
	return InterfaceDesc{
		Name:    "stub_test.Echoer",
		Ordinal: InterfaceOrdinal(0xabc),
		Methods: []string{"Echo"},
		NewServerStub: func(impl any, addLoad func(Method, float64)) codegen.Server {
			return impl.(*fakeServer)
		},
	}
}

func TestStubRefCounting(t *testing.T) {
	impl := &fakeServer{}
	st := newStub(Object(1), Zone(0), stubDesc(), impl)
	caller := CallerZone(10)

	if st.hasRef(caller) {
		t.Fatal("hasRef before any addRef: got true, want false")
	}
	st.addRef(caller)
	st.addRef(caller)
	if !st.hasRef(caller) {
		t.Fatal("hasRef after two addRef: got false, want true")
	}

	if err := st.release(nil, caller, 1); err != nil {
		t.Fatalf("release 1 of 2: %v", err)
	}
	if !st.hasRef(caller) {
		t.Fatal("hasRef after releasing 1 of 2: got false, want true")
	}
	if err := st.release(nil, caller, 1); err != nil {
		t.Fatalf("release 1 of 1: %v", err)
	}
	if st.hasRef(caller) {
		t.Fatal("hasRef after releasing all: got true, want false")
	}
}

func TestStubReleaseMoreThanHeldErrors(t *testing.T) {
	st := newStub(Object(1), Zone(0), stubDesc(), &fakeServer{})
	caller := CallerZone(1)
	st.addRef(caller)
	err := st.release(nil, caller, 2)
	if !errors.Is(err, ErrReferenceCountError) {
		t.Fatalf("release too many: got %v, want ErrReferenceCountError", err)
	}
}

func TestStubReleaseZeroCountMeansOne(t *testing.T) {
	st := newStub(Object(1), Zone(0), stubDesc(), &fakeServer{})
	caller := CallerZone(1)
	st.addRef(caller)
	if err := st.release(nil, caller, 0); err != nil {
		t.Fatalf("release(count=0): %v", err)
	}
	if st.hasRef(caller) {
		t.Fatal("hasRef after release(count=0): got true, want false")
	}
}

// TestStubDropsOwnerWhenEveryCallerReleases checks that a stub whose only
// holders are remote callers is still dropped once they all release: the
// owning zone holds an implicit reference (admitted by hasRef) rather than
// an entry in counts, so it has nothing to release and never blocks the
// count from reaching zero.
func TestStubDropsOwnerWhenEveryCallerReleases(t *testing.T) {
	d := InterfaceDesc{
		Name:    "stub_test.DropOwner",
		Ordinal: InterfaceOrdinal(0xdddd),
		Methods: []string{"Echo"},
		NewServerStub: func(impl any, addLoad func(Method, float64)) codegen.Server {
			return impl.(*fakeServer)
		},
	}
	Register(d)

	svc := NewService(Zone(1), "svc", nil, nil)
	desc, err := svc.Export(d.Ordinal, &fakeServer{})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	remote := CallerZone(2)
	if err := svc.AddRef(context.Background(), desc.DestinationZone, desc.Object, remote, 0, AddRefOptions{}); err != nil {
		t.Fatalf("AddRef: %v", err)
	}
	if err := svc.Release(context.Background(), desc.DestinationZone, desc.Object, remote, ReleaseOptions{Count: 1}); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := svc.Lookup(desc.Object); !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("Lookup after final release: got %v, want ErrObjectNotFound", err)
	}
}

// TestStubOwnerReleaseWithoutAddRefErrors checks that the owning zone
// cannot release a reference it never add_ref'd, since Export no longer
// installs one.
func TestStubOwnerReleaseWithoutAddRefErrors(t *testing.T) {
	d := InterfaceDesc{
		Name:    "stub_test.OwnerRelease",
		Ordinal: InterfaceOrdinal(0xddde),
		Methods: []string{"Echo"},
		NewServerStub: func(impl any, addLoad func(Method, float64)) codegen.Server {
			return impl.(*fakeServer)
		},
	}
	Register(d)

	svc := NewService(Zone(1), "svc", nil, nil)
	desc, err := svc.Export(d.Ordinal, &fakeServer{})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if err := svc.Release(context.Background(), desc.DestinationZone, desc.Object, CallerZone(svc.Zone()), ReleaseOptions{Count: 1}); !errors.Is(err, ErrReferenceCountError) {
		t.Fatalf("owner Release without AddRef: got %v, want ErrReferenceCountError", err)
	}
}

func TestStubMethodFnUnknownMethod(t *testing.T) {
	st := newStub(Object(1), Zone(0), stubDesc(), &fakeServer{})
	if _, err := st.methodFn(Method(5)); !errors.Is(err, ErrMethodNotFound) {
		t.Fatalf("methodFn(out of range): got %v, want ErrMethodNotFound", err)
	}
}

func TestStubImplements(t *testing.T) {
	d := stubDesc()
	st := newStub(Object(1), Zone(0), d, &fakeServer{})
	if !st.implements(d.Ordinal) {
		t.Error("implements(own ordinal) = false, want true")
	}
	if st.implements(InterfaceOrdinal(0xdead)) {
		t.Error("implements(other ordinal) = true, want false")
	}
}
