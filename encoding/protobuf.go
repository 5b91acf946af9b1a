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

package encoding

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// ProtoField is one field of a protocol_buffers message: a stable field
// number paired with the field's value in one of the scalar protowire
// representations. This runtime has no .proto schema of its own --
// interfaces are described by the IDL, not by a .proto file -- so a type
// opts into this encoding by implementing ProtoMarshaler by hand; package
// idlgen does not emit ProtoFields methods.
type ProtoField struct {
	Number protowire.Number
	Type   protowire.Type
	Value  any // string, []byte, uint64, int64, uint32, int32, bool, float32, float64
}

// ProtoMarshaler is implemented by every type that the protocol_buffers
// codec can marshal.
type ProtoMarshaler interface {
	ProtoFields() []ProtoField
}

// ProtoUnmarshaler is the read-side counterpart of ProtoMarshaler.
type ProtoUnmarshaler interface {
	SetProtoField(number protowire.Number, value []byte) error
}

type protoCodec struct{}

func (protoCodec) Kind() Kind { return ProtocolBuffers }

func (protoCodec) Marshal(v any) ([]byte, error) {
	m, ok := v.(ProtoMarshaler)
	if !ok {
		return nil, fmt.Errorf("encoding: %T does not implement ProtoMarshaler", v)
	}
	var b []byte
	for _, f := range m.ProtoFields() {
		b = appendField(b, f)
	}
	return b, nil
}

func appendField(b []byte, f ProtoField) []byte {
	switch f.Type {
	case protowire.VarintType:
		switch val := f.Value.(type) {
		case bool:
			u := uint64(0)
			if val {
				u = 1
			}
			b = protowire.AppendTag(b, f.Number, protowire.VarintType)
			b = protowire.AppendVarint(b, u)
		case int32:
			b = protowire.AppendTag(b, f.Number, protowire.VarintType)
			b = protowire.AppendVarint(b, uint64(int64(val)))
		case int64:
			b = protowire.AppendTag(b, f.Number, protowire.VarintType)
			b = protowire.AppendVarint(b, uint64(val))
		case uint32:
			b = protowire.AppendTag(b, f.Number, protowire.VarintType)
			b = protowire.AppendVarint(b, uint64(val))
		case uint64:
			b = protowire.AppendTag(b, f.Number, protowire.VarintType)
			b = protowire.AppendVarint(b, val)
		default:
			panic(fmt.Sprintf("encoding: unsupported varint field value %T", val))
		}
	case protowire.Fixed32Type:
		f32, ok := f.Value.(float32)
		if !ok {
			panic(fmt.Sprintf("encoding: unsupported fixed32 field value %T", f.Value))
		}
		b = protowire.AppendTag(b, f.Number, protowire.Fixed32Type)
		b = protowire.AppendFixed32(b, math.Float32bits(f32))
	case protowire.Fixed64Type:
		f64, ok := f.Value.(float64)
		if !ok {
			panic(fmt.Sprintf("encoding: unsupported fixed64 field value %T", f.Value))
		}
		b = protowire.AppendTag(b, f.Number, protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, math.Float64bits(f64))
	case protowire.BytesType:
		switch val := f.Value.(type) {
		case string:
			b = protowire.AppendTag(b, f.Number, protowire.BytesType)
			b = protowire.AppendString(b, val)
		case []byte:
			b = protowire.AppendTag(b, f.Number, protowire.BytesType)
			b = protowire.AppendBytes(b, val)
		default:
			panic(fmt.Sprintf("encoding: unsupported bytes field value %T", val))
		}
	default:
		panic(fmt.Sprintf("encoding: unsupported protowire type %v", f.Type))
	}
	return b
}

func (protoCodec) Unmarshal(data []byte, v any) error {
	u, ok := v.(ProtoUnmarshaler)
	if !ok {
		return fmt.Errorf("encoding: %T does not implement ProtoUnmarshaler", v)
	}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("encoding: protobuf: bad tag: %w", protowire.ParseError(n))
		}
		data = data[n:]
		var raw []byte
		switch typ {
		case protowire.VarintType:
			val, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return fmt.Errorf("encoding: protobuf: bad varint: %w", protowire.ParseError(n))
			}
			raw = protowire.AppendVarint(nil, val)
			data = data[n:]
		case protowire.Fixed32Type:
			val, n := protowire.ConsumeFixed32(data)
			if n < 0 {
				return fmt.Errorf("encoding: protobuf: bad fixed32: %w", protowire.ParseError(n))
			}
			raw = protowire.AppendFixed32(nil, val)
			data = data[n:]
		case protowire.Fixed64Type:
			val, n := protowire.ConsumeFixed64(data)
			if n < 0 {
				return fmt.Errorf("encoding: protobuf: bad fixed64: %w", protowire.ParseError(n))
			}
			raw = protowire.AppendFixed64(nil, val)
			data = data[n:]
		case protowire.BytesType:
			val, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return fmt.Errorf("encoding: protobuf: bad bytes: %w", protowire.ParseError(n))
			}
			raw = append([]byte(nil), val...)
			data = data[n:]
		default:
			return fmt.Errorf("encoding: protobuf: unsupported wire type %v", typ)
		}
		if err := u.SetProtoField(num, raw); err != nil {
			return fmt.Errorf("encoding: protobuf: field %d: %w", num, err)
		}
	}
	return nil
}
