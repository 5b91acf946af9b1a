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
	"testing"

	"github.com/google/go-cmp/cmp"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/zonerpc/zonerpc/runtime/codegen"
)

// point is a minimal generated-shaped struct used to exercise every codec
// without depending on package idlgen's output.
type point struct {
	X int32  `json:"x"`
	Y int32  `json:"y"`
	S string `json:"s"`
}

func (p *point) ZoneMarshal(enc *codegen.Encoder) {
	enc.Int32(p.X)
	enc.Int32(p.Y)
	enc.String(p.S)
}

func (p *point) ZoneUnmarshal(dec *codegen.Decoder) {
	p.X = dec.Int32()
	p.Y = dec.Int32()
	p.S = dec.String()
}

func (p *point) ProtoFields() []ProtoField {
	return []ProtoField{
		{Number: 1, Type: protowire.VarintType, Value: p.X},
		{Number: 2, Type: protowire.VarintType, Value: p.Y},
		{Number: 3, Type: protowire.BytesType, Value: p.S},
	}
}

func (p *point) SetProtoField(number protowire.Number, raw []byte) error {
	switch number {
	case 1:
		v, _ := protowire.ConsumeVarint(raw)
		p.X = int32(v)
	case 2:
		v, _ := protowire.ConsumeVarint(raw)
		p.Y = int32(v)
	case 3:
		v, _ := protowire.ConsumeBytes(raw)
		p.S = string(v)
	}
	return nil
}

func TestGetUnregisteredKind(t *testing.T) {
	if _, err := Get(Kind(99)); err == nil {
		t.Fatal("Get(unregistered kind): got nil error, want non-nil")
	}
}

func TestKindString(t *testing.T) {
	cases := map[Kind]string{
		YASJSON:             "yas_json",
		YASBinary:           "yas_binary",
		YASCompressedBinary: "yas_compressed_binary",
		ProtocolBuffers:     "protocol_buffers",
		Kind(99):            "encoding(99)",
	}
	for k, want := range cases {
		if got := k.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", k, got, want)
		}
	}
}

func TestCodecRoundTrip(t *testing.T) {
	want := &point{X: -17, Y: 42, S: "hello zone"}
	for _, kind := range []Kind{YASJSON, YASBinary, YASCompressedBinary, ProtocolBuffers} {
		t.Run(kind.String(), func(t *testing.T) {
			c, err := Get(kind)
			if err != nil {
				t.Fatal(err)
			}
			data, err := c.Marshal(want)
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			got := &point{}
			if err := c.Unmarshal(data, got); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCompressedBinarySmallerOrWrapsBinary(t *testing.T) {
	plain, err := Get(YASBinary)
	if err != nil {
		t.Fatal(err)
	}
	compressed, err := Get(YASCompressedBinary)
	if err != nil {
		t.Fatal(err)
	}
	val := &point{X: 1, Y: 2, S: "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"}
	plainData, err := plain.Marshal(val)
	if err != nil {
		t.Fatal(err)
	}
	compressedData, err := compressed.Marshal(val)
	if err != nil {
		t.Fatal(err)
	}
	if string(plainData) == string(compressedData) {
		t.Fatal("compressed payload is byte-identical to uncompressed payload")
	}
	got := &point{}
	if err := compressed.Unmarshal(compressedData, got); err != nil {
		t.Fatalf("Unmarshal compressed: %v", err)
	}
	if diff := cmp.Diff(val, got); diff != "" {
		t.Errorf("round trip through compressed codec mismatch (-want +got):\n%s", diff)
	}
}

func TestBinaryMarshalRejectsNonBinaryMarshaler(t *testing.T) {
	c, err := Get(YASBinary)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Marshal(42); err == nil {
		t.Fatal("Marshal(42): got nil error, want non-nil")
	}
}

func TestCompressBinaryRoundTrip(t *testing.T) {
	want := []byte("some yas_binary payload bytes")
	compressed, err := CompressBinary(want)
	if err != nil {
		t.Fatal(err)
	}
	if string(compressed) == string(want) {
		t.Fatal("CompressBinary returned input unchanged")
	}
	got, err := DecompressBinary(compressed)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(want) {
		t.Errorf("DecompressBinary(CompressBinary(x)) = %q, want %q", got, want)
	}
}
