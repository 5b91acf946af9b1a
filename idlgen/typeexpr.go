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

package idlgen

import "fmt"

// goType returns the Go type expression for t.
func goType(t *TypeRef) string {
	switch t.Kind {
	case KindScalar:
		return t.Scalar
	case KindString:
		return "string"
	case KindBytes:
		return "[]byte"
	case KindVector:
		return "[]" + goType(t.Elem)
	case KindMap:
		return fmt.Sprintf("map[%s]%s", goType(t.Key), goType(t.Elem))
	case KindPointer:
		return "*" + goType(t.Elem)
	case KindInterface:
		// Per the parameter-kind projection rules, every interface
		// reference is an InterfaceDescriptor on the wire; resolving one
		// into a live *zonerpc.ObjectProxy is a separate, explicit step
		// the caller takes (via zonerpc.NewObjectProxy) once it knows
		// which interface it expects, not something codegen can do for
		// an arbitrary field.
		return "zonerpc.InterfaceDescriptor"
	case KindStruct, KindEnum:
		return t.Name
	default:
		return "any"
	}
}

// scalarMethod maps an IDL scalar name to the Encoder/Decoder method name
// that reads or writes it (e.g. "int32" -> "Int32").
var scalarMethod = map[string]string{
	"bool": "Bool", "int": "Int", "int8": "Int8", "int16": "Int16",
	"int32": "Int32", "int64": "Int64", "uint": "Uint", "uint8": "Uint8",
	"uint16": "Uint16", "uint32": "Uint32", "uint64": "Uint64",
	"float32": "Float32", "float64": "Float64",
}

// encodeExpr emits (into w) the statements that encode a value named expr
// of type t into the encoder named enc.
func encodeExpr(w *codeWriter, enc, expr string, t *TypeRef) {
	switch t.Kind {
	case KindScalar:
		m, ok := scalarMethod[t.Scalar]
		if !ok {
			panic(fmt.Sprintf("idlgen: unsupported scalar type %q", t.Scalar))
		}
		w.line("%s.%s(%s)", enc, m, expr)
	case KindString:
		w.line("%s.String(%s)", enc, expr)
	case KindBytes:
		w.line("%s.Bytes(%s)", enc, expr)
	case KindVector:
		v := w.tmp("v")
		w.line("%s.Len(len(%s))", enc, expr)
		w.block("for _, %s := range %s {", v, expr)
		encodeExpr(w, enc, v, t.Elem)
		w.end()
	case KindMap:
		k, v := w.tmp("k"), w.tmp("v")
		w.line("%s.Len(len(%s))", enc, expr)
		w.block("for %s, %s := range %s {", k, v, expr)
		encodeExpr(w, enc, k, t.Key)
		encodeExpr(w, enc, v, t.Elem)
		w.end()
	case KindPointer:
		w.block("if %s == nil {", expr)
		w.line("%s.Bool(false)", enc)
		w.line("} else {")
		w.line("%s.Bool(true)", enc)
		encodeExpr(w, enc, "*"+expr, t.Elem)
		w.end()
	case KindInterface:
		w.line("%s.Uint64(uint64(%s.DestinationZone))", enc, expr)
		w.line("%s.Uint64(uint64(%s.Object))", enc, expr)
	case KindStruct:
		// The field's concrete type is fixed at generation time, so this
		// calls its ZoneMarshal directly rather than going through
		// Encoder.Interface, which is for values whose concrete type is
		// only known at runtime (e.g. polymorphic AutoMarshal errors).
		w.line("(&%s).ZoneMarshal(%s)", expr, enc)
	case KindEnum:
		w.line("%s.Int32(int32(%s))", enc, expr)
	default:
		panic("idlgen: unsupported type kind in encodeExpr")
	}
}

// decodeExpr emits the statements that decode a value of type t from the
// decoder named dec into the already-declared variable named dst.
func decodeExpr(w *codeWriter, dec, dst string, t *TypeRef) {
	switch t.Kind {
	case KindScalar:
		m, ok := scalarMethod[t.Scalar]
		if !ok {
			panic(fmt.Sprintf("idlgen: unsupported scalar type %q", t.Scalar))
		}
		w.line("%s = %s.%s()", dst, dec, m)
	case KindString:
		w.line("%s = %s.String()", dst, dec)
	case KindBytes:
		w.line("%s = %s.Bytes()", dst, dec)
	case KindVector:
		n := w.tmp("n")
		elem := w.tmp("e")
		w.line("%s := %s.Len()", n, dec)
		w.line("%s = make(%s, %s)", dst, goType(t), n)
		w.block("for i := 0; i < %s; i++ {", n)
		w.line("var %s %s", elem, goType(t.Elem))
		decodeExpr(w, dec, elem, t.Elem)
		w.line("%s[i] = %s", dst, elem)
		w.end()
	case KindMap:
		n := w.tmp("n")
		kk, vv := w.tmp("k"), w.tmp("v")
		w.line("%s := %s.Len()", n, dec)
		w.line("%s = make(%s, %s)", dst, goType(t), n)
		w.block("for i := 0; i < %s; i++ {", n)
		w.line("var %s %s", kk, goType(t.Key))
		w.line("var %s %s", vv, goType(t.Elem))
		decodeExpr(w, dec, kk, t.Key)
		decodeExpr(w, dec, vv, t.Elem)
		w.line("%s[%s] = %s", dst, kk, vv)
		w.end()
	case KindPointer:
		w.block("if %s.Bool() {", dec)
		elem := w.tmp("p")
		w.line("var %s %s", elem, goType(t.Elem))
		decodeExpr(w, dec, elem, t.Elem)
		w.line("%s = &%s", dst, elem)
		w.end()
	case KindInterface:
		w.line("%s.DestinationZone = zonerpc.DestinationZone(%s.Uint64())", dst, dec)
		w.line("%s.Object = zonerpc.Object(%s.Uint64())", dst, dec)
	case KindStruct:
		w.line("(&%s).ZoneUnmarshal(%s)", dst, dec)
	case KindEnum:
		w.line("%s = %s(%s.Int32())", dst, goType(t), dec)
	default:
		panic("idlgen: unsupported type kind in decodeExpr")
	}
}
