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

// zonerpc-gen generates Go proxy and stub code from an IDL file. Run
// "zonerpc-gen -help" for more information.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/zonerpc/zonerpc/idlgen"
)

const usage = `USAGE

  zonerpc-gen -idl=<file> -output_path=<dir> [flags]

DESCRIPTION

  zonerpc-gen reads an IDL file describing interfaces, structs, and enums
  and generates a Go source file implementing their proxies and stubs.

  Pending a native parser for the "*.rpc" IDL grammar, -idl names a JSON
  file holding the idlgen.IDLFile this tool would otherwise parse from
  source; this keeps the CLI contract stable while the front end catches
  up with the back end below it.

FLAGS
`

func main() {
	fs := flag.NewFlagSet("zonerpc-gen", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		fs.PrintDefaults()
	}

	name := fs.String("name", "", "logical name of the generation unit")
	idlFile := fs.String("idl", "", "path to the IDL description (JSON, pending a native parser)")
	outputPath := fs.String("output_path", ".", "directory to write generated code and check_sums/ into")
	namespace := fs.String("namespace", "", "namespace to qualify generated type and ordinal names with")
	goPackage := fs.String("path", "main", "Go package clause for the generated file")
	mock := fs.Bool("mock", false, "also generate a mock implementation of every interface")
	yas := fs.Bool("yas", true, "accepted for compatibility and ignored: yas marshaling is always generated via runtime/codegen")
	protobuf := fs.Bool("protobuf", false, "rejected: protocol_buffers marshaling is not generated separately, see runtime/codegen")
	_ = fs.String("define", "", "preprocessor define forwarded to the original IDL toolchain (unused by this generator)")
	_ = fs.Bool("dump_preprocessor", false, "dump preprocessor output and exit (unused by this generator)")
	_ = fs.String("additional_headers", "", "extra headers forwarded to generated output (unused by this generator)")
	_ = fs.Bool("rethrow_stub_exception", false, "rethrow exceptions from stub dispatch (unused by this generator; Go stubs return errors)")
	_ = fs.String("additional_stub_header", "", "extra header injected into generated stub files (unused by this generator)")
	_ = fs.Bool("suppress_catch_stub_exceptions", false, "suppress stub-side exception catching (unused by this generator; Go stubs return errors)")
	_ = fs.Bool("no_include_rpc_headers", false, "omit RPC framework includes (unused by this generator)")
	fs.Parse(os.Args[1:])

	if *idlFile == "" || *outputPath == "" {
		fs.Usage()
		os.Exit(1)
	}

	b, err := os.ReadFile(*idlFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "zonerpc-gen: %v\n", err)
		os.Exit(1)
	}
	var file idlgen.IDLFile
	if err := json.Unmarshal(b, &file); err != nil {
		fmt.Fprintf(os.Stderr, "zonerpc-gen: parsing %s: %v\n", *idlFile, err)
		os.Exit(1)
	}
	if *namespace != "" {
		file.Namespace = *namespace
	}

	if *protobuf {
		fmt.Fprintln(os.Stderr, "zonerpc-gen: -protobuf is not supported: generated proxies and stubs always marshal through runtime/codegen.Encoder/Decoder, dispatched per call by Envelope.Encoding, rather than through a second independently generated marshaler; set the wire encoding at runtime with ServiceProxy.SetEncoding instead")
		os.Exit(1)
	}
	_ = *name
	_ = *yas

	wrote, err := idlgen.Generate(file, idlgen.Options{GoPackage: *goPackage, OutputPath: *outputPath, Mock: *mock})
	if err != nil {
		fmt.Fprintf(os.Stderr, "zonerpc-gen: %v\n", err)
		os.Exit(1)
	}
	if wrote {
		fmt.Fprintf(os.Stderr, "zonerpc-gen: wrote %s\n", *outputPath)
	} else {
		fmt.Fprintf(os.Stderr, "zonerpc-gen: %s already up to date\n", *outputPath)
	}
}
