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

	"github.com/zonerpc/zonerpc/encoding"
)

// Codec returns the package encoding.Codec for enc, or
// ErrInvalidEncoding if enc is not a supported, concrete encoding. Code
// emitted by package idlgen does not call it; it marshals through
// runtime/codegen.
func Codec(enc Encoding) (encoding.Codec, error) {
	var kind encoding.Kind
	switch enc {
	case EncodingYASJSON:
		kind = encoding.YASJSON
	case EncodingYASBinary:
		kind = encoding.YASBinary
	case EncodingYASCompressedBinary:
		kind = encoding.YASCompressedBinary
	case EncodingProtocolBuffers:
		kind = encoding.ProtocolBuffers
	default:
		return nil, newError(InvalidEncoding, 0, fmt.Errorf("unsupported encoding %s", enc))
	}
	c, err := encoding.Get(kind)
	if err != nil {
		return nil, newError(InvalidEncoding, 0, err)
	}
	return c, nil
}
