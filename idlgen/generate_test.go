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

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func calculatorFile() IDLFile {
	return IDLFile{
		Namespace: "calc",
		Structs: []StructDecl{
			{
				Name: "Point",
				Fields: []FieldDecl{
					{Name: "X", Type: &TypeRef{Kind: KindScalar, Scalar: "int32"}},
					{Name: "Y", Type: &TypeRef{Kind: KindScalar, Scalar: "int32"}},
				},
			},
		},
		Enums: []EnumDecl{
			{Name: "Op", Values: []string{"Add", "Sub"}},
		},
		Interfaces: []InterfaceDecl{
			{
				Name: "Calculator",
				Methods: []MethodDecl{
					{
						Name:    "Apply",
						Params:  []ParamDecl{{Name: "op", Type: &TypeRef{Kind: KindEnum, Name: "Op"}}, {Name: "p", Type: &TypeRef{Kind: KindStruct, Name: "Point"}}},
						Returns: []ParamDecl{{Name: "result", Type: &TypeRef{Kind: KindScalar, Scalar: "int32"}}},
					},
					{
						Name:   "Log",
						Params: []ParamDecl{{Name: "msg", Type: &TypeRef{Kind: KindString}}},
						OneWay: true,
					},
				},
			},
		},
	}
}

func TestGenerateWritesFileOnFirstRun(t *testing.T) {
	dir := t.TempDir()
	wrote, err := Generate(calculatorFile(), Options{GoPackage: "calcgen", OutputPath: dir})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !wrote {
		t.Fatal("Generate on an empty output directory: wrote=false, want true")
	}
	if _, err := os.Stat(filepath.Join(dir, defaultOutputFile)); err != nil {
		t.Fatalf("generated file missing: %v", err)
	}
}

func TestGenerateIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	if _, err := Generate(calculatorFile(), Options{GoPackage: "calcgen", OutputPath: dir}); err != nil {
		t.Fatalf("first Generate: %v", err)
	}
	path := filepath.Join(dir, defaultOutputFile)
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	wrote, err := Generate(calculatorFile(), Options{GoPackage: "calcgen", OutputPath: dir})
	if err != nil {
		t.Fatalf("second Generate: %v", err)
	}
	if wrote {
		t.Error("second Generate with an unchanged IDLFile: wrote=true, want false")
	}
	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Error("unchanged IDLFile produced a different file on the second run")
	}
}

func TestGenerateRewritesAfterChange(t *testing.T) {
	dir := t.TempDir()
	if _, err := Generate(calculatorFile(), Options{GoPackage: "calcgen", OutputPath: dir}); err != nil {
		t.Fatalf("first Generate: %v", err)
	}

	changed := calculatorFile()
	changed.Interfaces[0].Methods[0].Name = "Apply2"
	wrote, err := Generate(changed, Options{GoPackage: "calcgen", OutputPath: dir})
	if err != nil {
		t.Fatalf("second Generate: %v", err)
	}
	if !wrote {
		t.Error("Generate after changing a method name: wrote=false, want true")
	}
}

func TestGeneratedSourceShape(t *testing.T) {
	dir := t.TempDir()
	if _, err := Generate(calculatorFile(), Options{GoPackage: "calcgen", OutputPath: dir}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	src, err := os.ReadFile(filepath.Join(dir, defaultOutputFile))
	if err != nil {
		t.Fatal(err)
	}
	text := string(src)

	for _, want := range []string{
		"package calcgen",
		"type Calculator interface {",
		"type CalculatorProxy struct",
		"type CalculatorServerStub struct",
		"func (x *CalculatorProxy) Apply(",
		"func (x *CalculatorProxy) Log(",
		"x.p.Post(ctx, zonerpc.Method(1)",
		"return s.Apply_0",
		"func (s *CalculatorServerStub) Apply_0(",
		"type Point struct {",
		"func (x *Point) ZoneMarshal(",
		"type Op int32",
		"OpUnspecified Op = 0",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("generated source missing %q", want)
		}
	}
}

func TestGenerateCreatesManifest(t *testing.T) {
	dir := t.TempDir()
	if _, err := Generate(calculatorFile(), Options{GoPackage: "calcgen", OutputPath: dir}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if _, err := os.Stat(manifestPath(dir)); err != nil {
		t.Fatalf("manifest.json missing: %v", err)
	}
}

func TestGenerateMockEmitsOverridableStub(t *testing.T) {
	dir := t.TempDir()
	if _, err := Generate(calculatorFile(), Options{GoPackage: "calcgen", OutputPath: dir, Mock: true}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	src, err := os.ReadFile(filepath.Join(dir, defaultOutputFile))
	if err != nil {
		t.Fatal(err)
	}
	text := string(src)

	for _, want := range []string{
		"type CalculatorMock struct {",
		"ApplyFunc func(",
		"func (x *CalculatorMock) Apply(",
		"var _ Calculator = (*CalculatorMock)(nil)",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("generated source with Mock=true missing %q", want)
		}
	}
}

func TestGenerateWithoutMockOmitsMockType(t *testing.T) {
	dir := t.TempDir()
	if _, err := Generate(calculatorFile(), Options{GoPackage: "calcgen", OutputPath: dir}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	src, err := os.ReadFile(filepath.Join(dir, defaultOutputFile))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(src), "CalculatorMock") {
		t.Error("generated source without Mock: want no CalculatorMock, got one")
	}
}

func TestGenerateTogglingMockForcesRewrite(t *testing.T) {
	dir := t.TempDir()
	if _, err := Generate(calculatorFile(), Options{GoPackage: "calcgen", OutputPath: dir}); err != nil {
		t.Fatalf("first Generate: %v", err)
	}
	wrote, err := Generate(calculatorFile(), Options{GoPackage: "calcgen", OutputPath: dir, Mock: true})
	if err != nil {
		t.Fatalf("second Generate: %v", err)
	}
	if !wrote {
		t.Error("Generate after toggling Mock on with an otherwise unchanged IDLFile: wrote=false, want true")
	}
}
