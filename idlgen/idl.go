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

// Package idlgen generates Go InterfaceProxy and Stub code from an
// in-memory description of an IDL file. Unlike a Go-source code generator,
// it never parses Go: its input is an IDLFile built by a front end (for
// this runtime, a parser for the "*.rpc" IDL grammar described in the
// specification; tests build IDLFile values directly).
package idlgen

import "fmt"

// Kind classifies a TypeRef.
type Kind int

const (
	KindScalar Kind = iota
	KindString
	KindBytes
	KindVector
	KindMap
	KindPointer
	KindInterface
	KindStruct
	KindEnum
)

// TypeRef describes the type of a parameter, field, or return value.
type TypeRef struct {
	Kind Kind

	// Scalar holds the Go scalar type name (e.g. "int32", "float64",
	// "bool") when Kind == KindScalar.
	Scalar string

	// Elem is the element type for KindVector and KindPointer.
	Elem *TypeRef

	// Key and Elem are the key/value types for KindMap.
	Key *TypeRef

	// Name is the declared name for KindInterface, KindStruct, and
	// KindEnum, qualified by Namespace if it comes from an imported IDL
	// file.
	Name      string
	Namespace string
}

func (t *TypeRef) String() string {
	switch t.Kind {
	case KindScalar:
		return t.Scalar
	case KindString:
		return "string"
	case KindBytes:
		return "[]byte"
	case KindVector:
		return "[]" + t.Elem.String()
	case KindMap:
		return fmt.Sprintf("map[%s]%s", t.Key.String(), t.Elem.String())
	case KindPointer:
		return "*" + t.Elem.String()
	case KindInterface, KindStruct, KindEnum:
		if t.Namespace != "" {
			return t.Namespace + "." + t.Name
		}
		return t.Name
	default:
		return "?"
	}
}

// ParamDecl is one parameter or return value of a MethodDecl.
type ParamDecl struct {
	Name string
	Type *TypeRef
}

// MethodDecl is one method of an InterfaceDecl, in declaration order; its
// position in Methods is its wire Method ordinal.
type MethodDecl struct {
	Name    string
	Params  []ParamDecl
	Returns []ParamDecl
	// NoRetry marks a method whose side effects are not safe to retry
	// automatically on a transient transport failure.
	NoRetry bool
	// OneWay marks a method dispatched with the post operation instead of
	// send: the caller does not wait for a reply, and the method must not
	// declare any Returns besides the implicit error.
	OneWay bool
}

// EnumDecl describes an IDL enum. The generator injects an UNSPECIFIED = 0
// value so every enum has a defined zero value, per spec.
type EnumDecl struct {
	Name   string
	Values []string // in declaration order, not including the injected zero value
}

// FieldDecl is one field of a StructDecl.
type FieldDecl struct {
	Name string
	Type *TypeRef
}

// StructDecl describes an IDL-declared struct, which the generator emits
// with per-encoding serialise/deserialise methods.
type StructDecl struct {
	Name   string
	Fields []FieldDecl
}

// InterfaceDecl describes one IDL-declared interface.
type InterfaceDecl struct {
	Name    string
	Methods []MethodDecl
}

// IDLFile is the in-memory representation of one parsed IDL source file,
// the generator's sole input.
type IDLFile struct {
	// Namespace is this file's C++-style "::"-joined namespace, used to
	// qualify generated Go package and type names.
	Namespace string

	Interfaces []InterfaceDecl
	Structs    []StructDecl
	Enums      []EnumDecl

	// Imports lists other IDL files this one references by path; the
	// generator resolves cross-file TypeRefs through these.
	Imports []string
}
