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

// Package member provides a thread-safe cell for a single handle value held
// as mutable struct state, so callers never need their own mutex around a
// field that is read far more often than it is replaced.
package member

import "sync"

// Ptr is a reader-writer-protected slot holding one value of type T. Get
// copies the value out under a shared lock, so concurrent readers never
// block each other; Set and Reset take an exclusive lock. The zero Ptr
// holds the zero value of T and is ready to use.
type Ptr[T any] struct {
	mu  sync.RWMutex
	val T
}

// New returns a Ptr initialized to val.
func New[T any](val T) *Ptr[T] {
	return &Ptr[T]{val: val}
}

// Get returns a copy of the current value under a shared lock. Callers
// should work from the returned copy rather than re-reading Get, since the
// value can change between two calls.
func (p *Ptr[T]) Get() T {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.val
}

// Set replaces the held value under an exclusive lock.
func (p *Ptr[T]) Set(val T) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.val = val
}

// Reset replaces the held value with T's zero value.
func (p *Ptr[T]) Reset() {
	var zero T
	p.Set(zero)
}
