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
	"fmt"
	"sync"

	"github.com/zonerpc/zonerpc/runtime/codegen"
)

// InterfaceDesc describes one IDL-declared interface to the runtime. Code
// generated by package idlgen registers one of these, via Register, for
// every interface it emits a proxy and stub for.
type InterfaceDesc struct {
	// Name is the fully qualified interface name, e.g. "calc.Calculator".
	Name string

	// Ordinal is the interface's stable fingerprint (see InterfaceOrdinal).
	Ordinal InterfaceOrdinal

	// Methods lists method names in the ordinal order assigned at
	// generation time; a method's index in this slice is its Method
	// value.
	Methods []string

	// NoRetry lists indexes into Methods that must not be retried on
	// transient transport failure (non-idempotent methods).
	NoRetry []int

	// NewServerStub builds a codegen.Server that dispatches decoded calls
	// to impl, which must implement the generated Go interface for this
	// InterfaceDesc.
	NewServerStub func(impl any, addLoad func(Method, float64)) codegen.Server
}

type registry struct {
	mu        sync.Mutex
	byOrdinal map[InterfaceOrdinal]InterfaceDesc
	byName    map[string]InterfaceDesc
}

var global = &registry{
	byOrdinal: map[InterfaceOrdinal]InterfaceDesc{},
	byName:    map[string]InterfaceDesc{},
}

// Register records d in the global interface registry. It is called from
// generated code's init function and panics on a duplicate ordinal or
// name, since that indicates two interfaces collided at generation time.
func Register(d InterfaceDesc) {
	global.mu.Lock()
	defer global.mu.Unlock()
	if existing, ok := global.byOrdinal[d.Ordinal]; ok {
		panic(fmt.Sprintf("zonerpc: interface ordinal %s already registered for %q, cannot register %q", d.Ordinal, existing.Name, d.Name))
	}
	if _, ok := global.byName[d.Name]; ok {
		panic(fmt.Sprintf("zonerpc: interface %q already registered", d.Name))
	}
	global.byOrdinal[d.Ordinal] = d
	global.byName[d.Name] = d
}

// Find returns the InterfaceDesc registered under ordinal.
func Find(ordinal InterfaceOrdinal) (InterfaceDesc, bool) {
	global.mu.Lock()
	defer global.mu.Unlock()
	d, ok := global.byOrdinal[ordinal]
	return d, ok
}

// FindByName returns the InterfaceDesc registered under name.
func FindByName(name string) (InterfaceDesc, bool) {
	global.mu.Lock()
	defer global.mu.Unlock()
	d, ok := global.byName[name]
	return d, ok
}
