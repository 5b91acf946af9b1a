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

	"golang.org/x/sync/semaphore"
)

// Scheduler bounds the number of concurrently executing method dispatches
// for a Service, the way a cooperative-async runtime with a fixed-size
// thread pool would. Without a Scheduler, a Service spawns one goroutine
// per inbound call, same as the teacher's per-request goroutine; with one,
// at most Width calls run at a time and the rest queue on Go.
//
// This is a weighted semaphore, not an errgroup: errgroup's own limiting
// (SetLimit) blocks the caller of Go with no way to honor ctx cancellation
// while waiting for a slot, which Dispatch's callers rely on. See
// ListenAndServe for where this runtime does use an errgroup, to supervise
// a fixed set of already-running listeners rather than to bound a stream
// of short-lived per-call goroutines.
type Scheduler struct {
	sem *semaphore.Weighted
}

// NewScheduler returns a Scheduler that allows at most width concurrent
// dispatches. A width of zero or less means unbounded.
func NewScheduler(width int) *Scheduler {
	if width <= 0 {
		return &Scheduler{}
	}
	return &Scheduler{sem: semaphore.NewWeighted(int64(width))}
}

// Go runs fn, blocking until a slot is free or ctx is done. If ctx is
// canceled before a slot frees up, Go returns ctx.Err() without running
// fn.
func (s *Scheduler) Go(ctx context.Context, fn func(ctx context.Context)) error {
	if s.sem == nil {
		go fn(ctx)
		return nil
	}
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	go func() {
		defer s.sem.Release(1)
		fn(ctx)
	}()
	return nil
}
