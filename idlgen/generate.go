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
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"go/format"
	"os"
	"path/filepath"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/zonerpc/zonerpc/internal/files"
)

// manifestCache remembers the last manifest read from each check_sums
// directory within this process, so that generating many interfaces into
// the same output directory in one run (or one long-lived build daemon)
// doesn't re-read and re-parse an unchanged manifest.json from disk for
// every Generate call.
var manifestCache, _ = lru.New[string, *manifest](256)

// Options configures Generate.
type Options struct {
	// GoPackage is the package clause emitted at the top of the
	// generated file.
	GoPackage string

	// OutputPath is the directory the generated file and its
	// check_sums/ manifest are written to.
	OutputPath string

	// OutputFile overrides the generated file's base name; defaults to
	// "zonerpc_gen.go".
	OutputFile string

	// Mock also emits a <Name>Mock for every interface, for use in
	// application tests that need to fake a proxy without a real
	// transport.
	Mock bool
}

const defaultOutputFile = "zonerpc_gen.go"

// manifest records the fingerprint of every declaration that went into a
// previous run of Generate, keyed by declaration name, so that an
// unchanged IDLFile produces no file-system writes at all: idempotent
// generation is load-bearing for incremental builds.
type manifest struct {
	Interfaces map[string]uint64 `json:"interfaces"`
	Structs    map[string]uint64 `json:"structs"`
	SourceSHA  string            `json:"source_sha256"`
	Mock       bool              `json:"mock"`
}

func manifestPath(outputPath string) string {
	return filepath.Join(outputPath, "check_sums", "manifest.json")
}

// Generate emits Go source implementing every interface and struct in
// file, under the namespace file.Namespace, according to opts. It returns
// true if it actually wrote a new file (false if the previously generated
// output for an identical IDLFile was already up to date).
func Generate(file IDLFile, opts Options) (wrote bool, err error) {
	if opts.OutputFile == "" {
		opts.OutputFile = defaultOutputFile
	}

	newManifest := buildManifest(file, opts.Mock)
	oldManifest, _ := readManifest(manifestPath(opts.OutputPath))
	if oldManifest != nil && manifestsEqual(oldManifest, newManifest) {
		return false, nil
	}

	src, err := render(file, opts)
	if err != nil {
		return false, fmt.Errorf("idlgen: %w", err)
	}
	formatted, fmtErr := format.Source(src)
	if fmtErr == nil {
		src = formatted
	}

	if err := os.MkdirAll(opts.OutputPath, 0o755); err != nil {
		return false, err
	}
	dst := filepath.Join(opts.OutputPath, opts.OutputFile)
	w := files.NewWriter(dst)
	defer w.Cleanup()
	if _, err := w.Write(src); err != nil {
		return false, err
	}
	if err := w.Close(); err != nil {
		return false, err
	}

	if err := writeManifest(manifestPath(opts.OutputPath), newManifest); err != nil {
		return false, err
	}
	// fmtErr is reported last: the file is still useful even unformatted.
	return true, fmtErr
}

func render(file IDLFile, opts Options) ([]byte, error) {
	w := &codeWriter{}
	w.line("// Code generated by zonerpc-gen. DO NOT EDIT.")
	w.line("")
	w.line("package %s", opts.GoPackage)
	w.line("")
	w.line("import (")
	w.line(`"context"`)
	if len(file.Enums) > 0 {
		w.line(`"fmt"`)
	}
	w.line("")
	w.line(`"github.com/zonerpc/zonerpc"`)
	w.line(`"github.com/zonerpc/zonerpc/runtime/codegen"`)
	w.line(")")
	w.line("")

	// Enums and structs first since interfaces reference them.
	enums := append([]EnumDecl(nil), file.Enums...)
	sort.Slice(enums, func(i, j int) bool { return enums[i].Name < enums[j].Name })
	for _, e := range enums {
		emitEnum(w, e)
	}
	structs := append([]StructDecl(nil), file.Structs...)
	sort.Slice(structs, func(i, j int) bool { return structs[i].Name < structs[j].Name })
	for _, s := range structs {
		emitStruct(w, s)
	}
	ifaces := append([]InterfaceDecl(nil), file.Interfaces...)
	sort.Slice(ifaces, func(i, j int) bool { return ifaces[i].Name < ifaces[j].Name })
	for _, iface := range ifaces {
		emitInterface(w, file.Namespace, iface)
		if opts.Mock {
			emitMock(w, iface)
		}
	}
	return []byte(w.String()), nil
}

func buildManifest(file IDLFile, mock bool) *manifest {
	m := &manifest{Interfaces: map[string]uint64{}, Structs: map[string]uint64{}, Mock: mock}
	for _, iface := range file.Interfaces {
		m.Interfaces[iface.Name] = InterfaceOrdinal(file.Namespace, iface)
	}
	for _, s := range file.Structs {
		m.Structs[s.Name] = StructFingerprint(file.Namespace, s)
	}
	m.SourceSHA = sourceDigest(file)
	return m
}

// sourceDigest hashes a stable JSON encoding of file as a coarse guard
// against changes buildManifest's per-declaration fingerprints wouldn't
// catch on their own (e.g. a reordered but othwerise identical method
// list, which InterfaceOrdinal treats as a different interface anyway,
// or a change to Imports, which no fingerprint covers).
func sourceDigest(file IDLFile) string {
	b, err := json.Marshal(file)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func manifestsEqual(a, b *manifest) bool {
	return a.SourceSHA == b.SourceSHA && a.Mock == b.Mock
}

func readManifest(path string) (*manifest, error) {
	if cached, ok := manifestCache.Get(path); ok {
		return cached, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	manifestCache.Add(path, &m)
	return &m, nil
}

func writeManifest(path string, m *manifest) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return err
	}
	manifestCache.Add(path, m)
	return nil
}
