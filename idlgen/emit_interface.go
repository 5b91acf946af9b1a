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

// emitInterface writes, for iface:
//   - the Go interface type that application code implements and casts
//     ObjectProxy values to
//   - a <Name>Proxy that implements it by calling through an ObjectProxy
//   - a <Name>ServerStub that implements codegen.Server by dispatching to
//     an application-supplied implementation
//   - an init func registering both with the zonerpc runtime under the
//     interface's stable ordinal
func emitInterface(w *codeWriter, namespace string, iface InterfaceDecl) {
	ordinal := InterfaceOrdinal(namespace, iface)
	qualified := iface.Name
	if namespace != "" {
		qualified = namespace + "." + iface.Name
	}

	// The application-facing interface.
	w.block("type %s interface {", iface.Name)
	for _, m := range iface.Methods {
		w.line("%s(ctx context.Context%s) (%s)", m.Name, paramList(m.Params), returnList(m.Returns))
	}
	w.end()
	w.line("")

	w.line("const %sOrdinal zonerpc.InterfaceOrdinal = %#x", iface.Name, ordinal)
	w.line("")

	emitProxy(w, iface)
	emitServerStub(w, iface)

	w.block("func init() {")
	w.line("zonerpc.Register(zonerpc.InterfaceDesc{")
	w.line("Name: %q,", qualified)
	w.line("Ordinal: %sOrdinal,", iface.Name)
	w.line("Methods: %sMethodNames,", iface.Name)
	w.line("NoRetry: %sNoRetry,", iface.Name)
	w.line("NewServerStub: func(impl any, addLoad func(zonerpc.Method, float64)) codegen.Server {")
	w.line("return &%sServerStub{impl: impl.(%s), addLoad: addLoad}", iface.Name, iface.Name)
	w.line("},")
	w.line("})")
	w.end()
	w.line("")

	emitMethodTables(w, iface)
}

func paramList(params []ParamDecl) string {
	var b strings.Builder
	for _, p := range params {
		fmt.Fprintf(&b, ", %s %s", p.Name, goType(p.Type))
	}
	return b.String()
}

func returnList(returns []ParamDecl) string {
	var b strings.Builder
	for _, r := range returns {
		fmt.Fprintf(&b, "%s %s, ", r.Name, goType(r.Type))
	}
	b.WriteString("err error")
	return b.String()
}

func emitMethodTables(w *codeWriter, iface InterfaceDecl) {
	w.line("var %sMethodNames = []string{", iface.Name)
	for _, m := range iface.Methods {
		w.line("%q,", m.Name)
	}
	w.line("}")
	w.line("")
	w.line("var %sNoRetry = []int{", iface.Name)
	for i, m := range iface.Methods {
		if m.NoRetry {
			w.line("%d,", i)
		}
	}
	w.line("}")
	w.line("")
}

func emitProxy(w *codeWriter, iface InterfaceDecl) {
	w.line("type %sProxy struct { p *zonerpc.ObjectProxy }", iface.Name)
	w.line("")
	w.block("func New%sProxy(p *zonerpc.ObjectProxy) %s {", iface.Name, iface.Name)
	w.line("return &%sProxy{p: p}", iface.Name)
	w.end()
	w.line("")

	for i, m := range iface.Methods {
		w.block("func (x *%sProxy) %s(ctx context.Context%s) (%s) {", iface.Name, m.Name, paramList(m.Params), returnList(m.Returns))
		w.line("enc := codegen.NewEncoder()")
		for _, p := range m.Params {
			encodeExpr(w, "enc", p.Name, p.Type)
		}
		if m.OneWay {
			w.line("err = x.p.Post(ctx, zonerpc.Method(%d), enc.Data())", i)
			w.line("return")
			w.end()
			w.line("")
			continue
		}
		w.line("reply, callErr := x.p.Call(ctx, zonerpc.Method(%d), enc.Data())", i)
		w.block("if callErr != nil {")
		w.line("err = callErr")
		w.line("return")
		w.end()
		w.line("dec := codegen.NewDecoder(reply)")
		for _, r := range m.Returns {
			decodeExpr(w, "dec", r.Name, r.Type)
		}
		w.line("err = dec.Error()")
		w.line("return")
		w.end()
		w.line("")
	}
}

func emitServerStub(w *codeWriter, iface InterfaceDecl) {
	w.line("type %sServerStub struct {", iface.Name)
	w.line("impl %s", iface.Name)
	w.line("addLoad func(zonerpc.Method, float64)")
	w.line("}")
	w.line("")

	w.block("func (s *%sServerStub) GetStubFn(method string) func(ctx context.Context, args []byte) ([]byte, error) {", iface.Name)
	w.block("switch method {")
	for i, m := range iface.Methods {
		w.line("case %q:", m.Name)
		w.line("return s.%s", methodFuncName(iface.Name, m.Name, i))
	}
	w.line("default:")
	w.line("return nil")
	w.end()
	w.end()
	w.line("")

	for i, m := range iface.Methods {
		w.block("func (s *%sServerStub) %s(ctx context.Context, args []byte) (res []byte, err error) {", iface.Name, methodFuncName(iface.Name, m.Name, i))
		w.line("dec := codegen.NewDecoder(args)")
		for _, p := range m.Params {
			w.line("var %s %s", p.Name, goType(p.Type))
			decodeExpr(w, "dec", p.Name, p.Type)
		}
		callArgs := "ctx"
		for _, p := range m.Params {
			callArgs += ", " + p.Name
		}
		names := make([]string, len(m.Returns))
		for i, r := range m.Returns {
			names[i] = r.Name
		}
		if len(names) > 0 {
			w.line("%s, implErr := s.impl.%s(%s)", strings.Join(names, ", "), m.Name, callArgs)
		} else {
			w.line("implErr := s.impl.%s(%s)", m.Name, callArgs)
		}
		w.line("enc := codegen.NewEncoder()")
		for _, r := range m.Returns {
			encodeExpr(w, "enc", r.Name, r.Type)
		}
		w.line("enc.Error(implErr)")
		w.line("return enc.Data(), nil")
		w.end()
		w.line("")
	}
}

func methodFuncName(ifaceName, method string, index int) string {
	return fmt.Sprintf("%s_%d", method, index)
}

// emitMock writes a <Name>Mock implementing iface for use in application
// tests: every method has an overridable <Method>Func field, and falls back
// to a zero-value return plus nil error when the test didn't set one.
func emitMock(w *codeWriter, iface InterfaceDecl) {
	w.block("type %sMock struct {", iface.Name)
	for _, m := range iface.Methods {
		w.line("%sFunc func(ctx context.Context%s) (%s)", m.Name, paramList(m.Params), returnList(m.Returns))
	}
	w.end()
	w.line("")

	for _, m := range iface.Methods {
		callArgs := "ctx"
		for _, p := range m.Params {
			callArgs += ", " + p.Name
		}
		w.block("func (x *%sMock) %s(ctx context.Context%s) (%s) {", iface.Name, m.Name, paramList(m.Params), returnList(m.Returns))
		w.block("if x.%sFunc != nil {", m.Name)
		w.line("return x.%sFunc(%s)", m.Name, callArgs)
		w.end()
		w.line("return")
		w.end()
		w.line("")
	}

	w.line("var _ %s = (*%sMock)(nil)", iface.Name, iface.Name)
	w.line("")
}
