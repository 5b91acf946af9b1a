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

import "testing"

func TestInterfaceDescriptorIsZero(t *testing.T) {
	if !(InterfaceDescriptor{}).IsZero() {
		t.Error("zero InterfaceDescriptor.IsZero() = false, want true")
	}
	nonZero := InterfaceDescriptor{DestinationZone: 1, Object: 2}
	if nonZero.IsZero() {
		t.Error("non-zero InterfaceDescriptor.IsZero() = true, want false")
	}
}

func TestBackChannelOpString(t *testing.T) {
	cases := map[BackChannelOp]string{
		BackChannelAddRef:  "add_ref",
		BackChannelRelease: "release",
		BackChannelOp(99):  "backchannel(99)",
	}
	for op, want := range cases {
		if got := op.String(); got != want {
			t.Errorf("BackChannelOp(%d).String() = %q, want %q", op, got, want)
		}
	}
}
