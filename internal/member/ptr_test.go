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

package member

import (
	"sync"
	"testing"
)

func TestPtrGetReturnsSetValue(t *testing.T) {
	p := New(7)
	if got := p.Get(); got != 7 {
		t.Errorf("Get() = %d, want 7", got)
	}
	p.Set(9)
	if got := p.Get(); got != 9 {
		t.Errorf("Get() after Set = %d, want 9", got)
	}
}

func TestPtrZeroValueIsUsable(t *testing.T) {
	var p Ptr[string]
	if got := p.Get(); got != "" {
		t.Errorf("Get() on zero Ptr = %q, want empty", got)
	}
	p.Set("hello")
	if got := p.Get(); got != "hello" {
		t.Errorf("Get() after Set = %q, want %q", got, "hello")
	}
}

func TestPtrReset(t *testing.T) {
	p := New("hello")
	p.Reset()
	if got := p.Get(); got != "" {
		t.Errorf("Get() after Reset = %q, want empty", got)
	}
}

// TestPtrConcurrentGetDuringSet exercises the reader-writer contract: many
// concurrent Get calls racing against Set never see a torn or panicking
// read, matching the shared_mutex slot it is grounded on.
func TestPtrConcurrentGetDuringSet(t *testing.T) {
	p := New(0)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = p.Get()
		}()
	}
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			p.Set(v)
		}(i)
	}
	wg.Wait()
}
