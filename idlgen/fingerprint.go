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

import "github.com/zonerpc/zonerpc/runtime/codegen"

// ProtocolVersion is mixed into every fingerprint so that a deliberate
// protocol-wide bump (see zonerpc.CurrentProtocolVersion) changes every
// interface_ordinal even if no interface itself changed.
const ProtocolVersion = 1

// InterfaceOrdinal computes the stable 64-bit fingerprint of iface at
// ProtocolVersion: the SHA-256-derived hash of its namespace, name, and
// every method's name, parameter names and types, and return names and
// types, in declaration order. The same namespace, interface name, and
// methods always hash identically; changing any of them, including
// renaming a method or parameter or reordering methods, changes the
// result.
func InterfaceOrdinal(namespace string, iface InterfaceDecl) uint64 {
	var h codegen.Hasher
	h.WriteUint32(ProtocolVersion)
	h.WriteString(namespace)
	h.WriteString(iface.Name)
	h.WriteInt(len(iface.Methods))
	for _, m := range iface.Methods {
		h.WriteString(m.Name)
		writeParams(&h, m.Params)
		writeParams(&h, m.Returns)
	}
	return h.Sum64()
}

func writeParams(h *codegen.Hasher, params []ParamDecl) {
	h.WriteInt(len(params))
	for _, p := range params {
		h.WriteString(p.Name)
		writeType(h, p.Type)
	}
}

func writeType(h *codegen.Hasher, t *TypeRef) {
	h.WriteInt(int(t.Kind))
	switch t.Kind {
	case KindScalar:
		h.WriteString(t.Scalar)
	case KindVector, KindPointer:
		writeType(h, t.Elem)
	case KindMap:
		writeType(h, t.Key)
		writeType(h, t.Elem)
	case KindInterface, KindStruct, KindEnum:
		h.WriteString(t.Namespace)
		h.WriteString(t.Name)
	}
}

// StructFingerprint computes a stable fingerprint for s, used by the
// check_sums/ manifest to decide whether previously generated code for s
// is still valid.
func StructFingerprint(namespace string, s StructDecl) uint64 {
	var h codegen.Hasher
	h.WriteString(namespace)
	h.WriteString(s.Name)
	h.WriteInt(len(s.Fields))
	for _, f := range s.Fields {
		h.WriteString(f.Name)
		writeType(&h, f.Type)
	}
	return h.Sum64()
}
