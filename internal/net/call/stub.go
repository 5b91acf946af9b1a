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

package call

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// Stub is a client-side handle for invoking remote methods by ordinal, the
// way generated InterfaceProxy code does: it already knows which method
// name each ordinal maps to and just wants to run it.
type Stub interface {
	// Run invokes the method-th method with already-encoded args and
	// returns the already-encoded result. shardKey, if nonzero, is a
	// routing hint a Balancer may use.
	Run(ctx context.Context, method int, args []byte, shardKey uint64) (result []byte, err error)
	Tracer() trace.Tracer
}

// stub holds information about a client stub to a remote interface.
type stub struct {
	conn          Connection   // connection to talk to the remote zone
	methods       []stubMethod // per method info
	tracer        trace.Tracer // interface tracer
	injectRetries int          // number of artificial retries per retriable call, for testing
}

type stubMethod struct {
	key   MethodKey // key for the remote interface method
	retry bool      // whether the method should be retried
}

var _ Stub = &stub{}

// NewStub creates a client-side stub for the interface named name, with
// one entry per method in methodNames (in ordinal order). Calls on the
// stub are sent on conn. Methods listed in noRetry are never retried.
func NewStub(name string, methodNames []string, noRetry []int, conn Connection, tracer trace.Tracer, injectRetries int) Stub {
	return &stub{
		conn:          conn,
		methods:       makeStubMethods(name, methodNames, noRetry),
		tracer:        tracer,
		injectRetries: injectRetries,
	}
}

// Tracer implements the Stub interface.
func (s *stub) Tracer() trace.Tracer {
	return s.tracer
}

// Run implements the Stub interface.
func (s *stub) Run(ctx context.Context, method int, args []byte, shardKey uint64) (result []byte, err error) {
	m := s.methods[method]
	opts := CallOptions{
		Retry:    m.retry,
		ShardKey: shardKey,
	}
	n := 1
	if m.retry {
		n += s.injectRetries
	}
	for i := 0; i < n; i++ {
		result, err = s.conn.Call(ctx, m.key, args, opts)
		// No backoff since these retries are fake ones injected for testing.
	}
	return
}

// makeStubMethods returns a slice of stub methods for methodNames.
func makeStubMethods(fullName string, methodNames []string, noRetry []int) []stubMethod {
	methods := make([]stubMethod, len(methodNames))
	for i, mname := range methodNames {
		methods[i].key = MakeMethodKey(fullName, mname)
		methods[i].retry = true // retry by default
	}
	for _, m := range noRetry {
		methods[m].retry = false
	}
	return methods
}
