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
	"fmt"
	"strings"
)

// codeWriter accumulates generated Go source. Indentation is cosmetic
// only -- the result is always run through go/format.Source before it is
// written out, so codeWriter itself never needs to get indentation exactly
// right.
type codeWriter struct {
	buf    strings.Builder
	depth  int
	tmpSeq int
}

func (w *codeWriter) line(format string, args ...any) {
	w.buf.WriteString(strings.Repeat("\t", w.depth))
	fmt.Fprintf(&w.buf, format, args...)
	w.buf.WriteByte('\n')
}

// block writes format (a line ending in "{") and increases indentation
// for subsequent lines until the matching end().
func (w *codeWriter) block(format string, args ...any) {
	w.line(format, args...)
	w.depth++
}

func (w *codeWriter) end() {
	w.depth--
	w.line("}")
}

// tmp returns a fresh identifier with the given prefix, unique within
// this codeWriter, for use as a loop or scratch variable in generated
// code.
func (w *codeWriter) tmp(prefix string) string {
	w.tmpSeq++
	return fmt.Sprintf("%s%d", prefix, w.tmpSeq)
}

func (w *codeWriter) String() string { return w.buf.String() }
