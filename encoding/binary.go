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
	"bytes"
	"compress/gzip"
	"fmt"
	"io"

	"github.com/zonerpc/zonerpc/runtime/codegen"
)

// BinaryMarshaler is implemented by every type the code generator emits
// for the yas_binary / yas_compressed_binary encodings.
type BinaryMarshaler interface {
	ZoneMarshal(enc *codegen.Encoder)
}

// BinaryUnmarshaler is the read-side counterpart of BinaryMarshaler.
type BinaryUnmarshaler interface {
	ZoneUnmarshal(dec *codegen.Decoder)
}

// binaryCodec implements yas_binary directly atop runtime/codegen's
// Encoder/Decoder, and yas_compressed_binary by gzip-wrapping the same
// bytes.
type binaryCodec struct {
	compressed bool
}

func (c binaryCodec) Kind() Kind {
	if c.compressed {
		return YASCompressedBinary
	}
	return YASBinary
}

func (c binaryCodec) Marshal(v any) ([]byte, error) {
	m, ok := v.(BinaryMarshaler)
	if !ok {
		return nil, fmt.Errorf("encoding: %T does not implement BinaryMarshaler", v)
	}
	enc := codegen.NewEncoder()
	m.ZoneMarshal(enc)
	data := enc.Data()
	if !c.compressed {
		return data, nil
	}
	return CompressBinary(data)
}

// CompressBinary gzips an already yas_binary-encoded payload. WireTransport
// calls this directly on a generated proxy's already-Encoder-produced
// argument bytes when the negotiated encoding is yas_compressed_binary,
// without needing the argument value to satisfy BinaryMarshaler a second
// time.
func CompressBinary(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(data); err != nil {
		return nil, fmt.Errorf("encoding: compress: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("encoding: compress: %w", err)
	}
	return buf.Bytes(), nil
}

// DecompressBinary reverses CompressBinary.
func DecompressBinary(data []byte) ([]byte, error) {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("encoding: decompress: %w", err)
	}
	defer gz.Close()
	out, err := io.ReadAll(gz)
	if err != nil {
		return nil, fmt.Errorf("encoding: decompress: %w", err)
	}
	return out, nil
}

func (c binaryCodec) Unmarshal(data []byte, v any) (err error) {
	u, ok := v.(BinaryUnmarshaler)
	if !ok {
		return fmt.Errorf("encoding: %T does not implement BinaryUnmarshaler", v)
	}
	if c.compressed {
		decompressed, derr := DecompressBinary(data)
		if derr != nil {
			return derr
		}
		data = decompressed
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("encoding: yas_binary decode panic: %v", r)
		}
	}()
	dec := codegen.NewDecoder(data)
	u.ZoneUnmarshal(dec)
	return nil
}
