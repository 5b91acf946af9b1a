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
	"testing"
)

func TestCodecKnownEncodings(t *testing.T) {
	for _, enc := range []Encoding{
		EncodingYASJSON,
		EncodingYASBinary,
		EncodingYASCompressedBinary,
		EncodingProtocolBuffers,
	} {
		if _, err := Codec(enc); err != nil {
			t.Errorf("Codec(%s): %v", enc, err)
		}
	}
}

func TestCodecUnspecifiedIsInvalid(t *testing.T) {
	_, err := Codec(EncodingUnspecified)
	if !errors.Is(err, ErrInvalidEncoding) {
		t.Fatalf("Codec(EncodingUnspecified) = %v, want ErrInvalidEncoding", err)
	}
}

func TestCodecOutOfRangeIsInvalid(t *testing.T) {
	_, err := Codec(Encoding(99))
	if !errors.Is(err, ErrInvalidEncoding) {
		t.Fatalf("Codec(99) = %v, want ErrInvalidEncoding", err)
	}
}
