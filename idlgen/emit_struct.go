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

// emitStruct writes s's Go type definition plus its yas_binary
// ZoneMarshal/ZoneUnmarshal methods (see encoding.BinaryMarshaler);
// encoding/json handles yas_json for free from the exported field tags.
func emitStruct(w *codeWriter, s StructDecl) {
	w.block("type %s struct {", s.Name)
	for _, f := range s.Fields {
		w.line("%s %s `json:%q`", f.Name, goType(f.Type), jsonTag(f.Name))
	}
	w.end()
	w.line("")

	w.block("func (x *%s) ZoneMarshal(enc *codegen.Encoder) {", s.Name)
	for _, f := range s.Fields {
		encodeExpr(w, "enc", "x."+f.Name, f.Type)
	}
	w.end()
	w.line("")

	w.block("func (x *%s) ZoneUnmarshal(dec *codegen.Decoder) {", s.Name)
	for _, f := range s.Fields {
		decodeExpr(w, "dec", "x."+f.Name, f.Type)
	}
	w.end()
	w.line("")
}

func jsonTag(name string) string {
	if name == "" {
		return ""
	}
	return string(toLower(name[0])) + name[1:]
}

func toLower(b byte) byte {
	if b >= 'A' && b <= 'Z' {
		return b - 'A' + 'a'
	}
	return b
}

// emitEnum writes e's Go type definition. Per spec, every generated enum
// gets an injected zero value named <Name>Unspecified so a missing field
// always decodes to something defined rather than a garbage value.
func emitEnum(w *codeWriter, e EnumDecl) {
	w.line("type %s int32", e.Name)
	w.line("")
	w.line("const (")
	w.line("%sUnspecified %s = 0", e.Name, e.Name)
	for i, v := range e.Values {
		w.line("%s%s %s = %d", e.Name, v, e.Name, i+1)
	}
	w.line(")")
	w.line("")

	w.block("func (x %s) String() string {", e.Name)
	w.block("switch x {")
	for i, v := range e.Values {
		w.line("case %d:", i+1)
		w.line("return %q", v)
	}
	w.line("default:")
	w.line("return fmt.Sprintf(%q, int32(x))", e.Name+"(%d)")
	w.end()
	w.end()
}
