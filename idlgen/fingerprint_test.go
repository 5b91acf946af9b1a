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

import "testing"

func echoInterface() InterfaceDecl {
	return InterfaceDecl{
		Name: "Echoer",
		Methods: []MethodDecl{
			{
				Name:    "Echo",
				Params:  []ParamDecl{{Name: "msg", Type: &TypeRef{Kind: KindString}}},
				Returns: []ParamDecl{{Name: "reply", Type: &TypeRef{Kind: KindString}}},
			},
		},
	}
}

func TestInterfaceOrdinalDeterministic(t *testing.T) {
	iface := echoInterface()
	a := InterfaceOrdinal("calc", iface)
	b := InterfaceOrdinal("calc", iface)
	if a != b {
		t.Errorf("InterfaceOrdinal is not deterministic: %#x != %#x", a, b)
	}
}

func TestInterfaceOrdinalChangesWithNamespace(t *testing.T) {
	iface := echoInterface()
	a := InterfaceOrdinal("calc", iface)
	b := InterfaceOrdinal("other", iface)
	if a == b {
		t.Error("InterfaceOrdinal identical across different namespaces")
	}
}

func TestInterfaceOrdinalChangesWithSignature(t *testing.T) {
	iface := echoInterface()
	a := InterfaceOrdinal("calc", iface)

	changed := echoInterface()
	changed.Methods[0].Params[0].Type = &TypeRef{Kind: KindScalar, Scalar: "int32"}
	b := InterfaceOrdinal("calc", changed)
	if a == b {
		t.Error("InterfaceOrdinal unchanged after a parameter type change")
	}
}

func TestInterfaceOrdinalChangesWithMethodOrder(t *testing.T) {
	iface := InterfaceDecl{
		Name: "Pair",
		Methods: []MethodDecl{
			{Name: "A"},
			{Name: "B"},
		},
	}
	reordered := InterfaceDecl{
		Name: "Pair",
		Methods: []MethodDecl{
			{Name: "B"},
			{Name: "A"},
		},
	}
	if InterfaceOrdinal("ns", iface) == InterfaceOrdinal("ns", reordered) {
		t.Error("InterfaceOrdinal unchanged after reordering methods")
	}
}

func TestStructFingerprintDeterministic(t *testing.T) {
	s := StructDecl{
		Name: "Point",
		Fields: []FieldDecl{
			{Name: "X", Type: &TypeRef{Kind: KindScalar, Scalar: "int32"}},
			{Name: "Y", Type: &TypeRef{Kind: KindScalar, Scalar: "int32"}},
		},
	}
	a := StructFingerprint("geo", s)
	b := StructFingerprint("geo", s)
	if a != b {
		t.Errorf("StructFingerprint is not deterministic: %#x != %#x", a, b)
	}
}

func TestStructFingerprintChangesWithFieldType(t *testing.T) {
	s := StructDecl{
		Name:   "Point",
		Fields: []FieldDecl{{Name: "X", Type: &TypeRef{Kind: KindScalar, Scalar: "int32"}}},
	}
	changed := StructDecl{
		Name:   "Point",
		Fields: []FieldDecl{{Name: "X", Type: &TypeRef{Kind: KindScalar, Scalar: "int64"}}},
	}
	if StructFingerprint("geo", s) == StructFingerprint("geo", changed) {
		t.Error("StructFingerprint unchanged after a field type change")
	}
}
