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

// Package encoding implements the serialization dispatch layer: one Codec
// per wire encoding (yas_json, yas_binary, yas_compressed_binary,
// protocol_buffers), looked up by Kind (or, from package zonerpc, by the
// Encoding negotiated for a ServiceProxy). Code emitted by package idlgen
// marshals through runtime/codegen and does not call these codecs.
package encoding

import "fmt"

// Kind identifies a wire encoding. It mirrors zonerpc.Encoding but lives in
// this package to avoid an import cycle between zonerpc and encoding.
type Kind int

const (
	YASJSON Kind = iota
	YASBinary
	YASCompressedBinary
	ProtocolBuffers
)

func (k Kind) String() string {
	switch k {
	case YASJSON:
		return "yas_json"
	case YASBinary:
		return "yas_binary"
	case YASCompressedBinary:
		return "yas_compressed_binary"
	case ProtocolBuffers:
		return "protocol_buffers"
	default:
		return fmt.Sprintf("encoding(%d)", int(k))
	}
}

// Codec marshals and unmarshals a single value for one wire encoding.
type Codec interface {
	Kind() Kind
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

var registry = map[Kind]Codec{}

// Register installs c as the Codec for its Kind, overwriting any codec
// previously registered for that Kind.
func Register(c Codec) {
	registry[c.Kind()] = c
}

// Get returns the Codec for kind, or an error naming kind if none is
// registered.
func Get(kind Kind) (Codec, error) {
	c, ok := registry[kind]
	if !ok {
		return nil, fmt.Errorf("encoding: no codec registered for %s", kind)
	}
	return c, nil
}

func init() {
	Register(jsonCodec{})
	Register(binaryCodec{compressed: false})
	Register(binaryCodec{compressed: true})
	Register(protoCodec{})
}
