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

package codegen

import (
	"context"
)

// A Server allows an exported object in one zone to receive and execute
// methods invoked via RPC from a caller in a different zone. It is the
// server-side counterpart of the generated per-interface proxy.
type Server interface {
	// GetStubFn returns a handler function for the given method name. For
	// example, if an interface declares an Echo method, then
	// GetStubFn("Echo") returns a handler that deserializes the arguments,
	// executes the method, and serializes the results.
	GetStubFn(method string) func(ctx context.Context, args []byte) ([]byte, error)
}
