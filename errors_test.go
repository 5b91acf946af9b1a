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
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorIsMatchesOnCodeOnly(t *testing.T) {
	err := newError(ObjectNotFound, Object(7), fmt.Errorf("boom"))
	if !errors.Is(err, ErrObjectNotFound) {
		t.Error("errors.Is(err, ErrObjectNotFound) = false, want true")
	}
	if errors.Is(err, ErrTimeout) {
		t.Error("errors.Is(err, ErrTimeout) = true, want false")
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := fmt.Errorf("underlying cause")
	err := newError(TransportError, Object(1), cause)
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
}

func TestErrorStringIncludesWrapped(t *testing.T) {
	err := newError(ReferenceCountError, Object(3), fmt.Errorf("no references"))
	got := err.Error()
	if got == "" {
		t.Fatal("Error() returned empty string")
	}
	if !strings.Contains(got, "no references") {
		t.Errorf("Error() = %q, want it to contain the wrapped %q", got, "no references")
	}
	if !errors.Is(err, ErrReferenceCountError) {
		t.Error("errors.Is(err, ErrReferenceCountError) = false, want true")
	}
}

func TestCodeStringUnknown(t *testing.T) {
	c := Code(999)
	if got, want := c.String(), "CODE(999)"; got != want {
		t.Errorf("Code(999).String() = %q, want %q", got, want)
	}
}
