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

package runtime_test

import (
	"context"
	"net"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/zonerpc/zonerpc"
	"github.com/zonerpc/zonerpc/internal/net/call"
	"github.com/zonerpc/zonerpc/runtime"
)

func noopValidator(string, string) error { return nil }

func TestParseConfigZones(t *testing.T) {
	input := `
[zone.alpha]
zone = 1
address = "10.0.0.1:9000"
encoding = "yas_json"

[zone.beta]
zone = 2
address = "10.0.0.2:9000"
concurrency = 8
`
	cfg, err := runtime.ParseConfig(input, noopValidator)
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	want := map[string]runtime.ZoneConfig{
		"alpha": {Zone: 1, Address: "10.0.0.1:9000", Encoding: "yas_json"},
		"beta":  {Zone: 2, Address: "10.0.0.2:9000", Concurrency: 8},
	}
	if diff := cmp.Diff(want, cfg.Zones); diff != "" {
		t.Fatalf("Zones: (-want +got):\n%s", diff)
	}
	if _, ok := cfg.Sections["zone"]; ok {
		t.Fatal("Sections still contains the zone table")
	}
}

func TestZoneConfigResolveEncoding(t *testing.T) {
	for _, c := range []struct {
		name string
		want zonerpc.Encoding
	}{
		{"", zonerpc.EncodingYASBinary},
		{"yas_binary", zonerpc.EncodingYASBinary},
		{"yas_json", zonerpc.EncodingYASJSON},
		{"yas_compressed_binary", zonerpc.EncodingYASCompressedBinary},
		{"protocol_buffers", zonerpc.EncodingProtocolBuffers},
	} {
		z := runtime.ZoneConfig{Encoding: c.name}
		got, err := z.ResolveEncoding()
		if err != nil {
			t.Fatalf("ResolveEncoding(%q): %v", c.name, err)
		}
		if got != c.want {
			t.Fatalf("ResolveEncoding(%q) = %v, want %v", c.name, got, c.want)
		}
	}

	if _, err := (runtime.ZoneConfig{Encoding: "xml"}).ResolveEncoding(); err == nil {
		t.Fatal("expected an error for an unknown encoding")
	}
}

func TestConfigLookup(t *testing.T) {
	cfg, err := runtime.ParseConfig(`
[zone.alpha]
zone = 1
address = "10.0.0.1:9000"
`, noopValidator)
	if err != nil {
		t.Fatal(err)
	}
	zc, ok := cfg.Lookup(zonerpc.DestinationZone(1))
	if !ok || zc.Address != "10.0.0.1:9000" {
		t.Fatalf("Lookup(1) = %+v, %v", zc, ok)
	}
	if _, ok := cfg.Lookup(zonerpc.DestinationZone(99)); ok {
		t.Fatal("Lookup(99) found a zone that was never configured")
	}
}

func TestConfigDialerUnconfiguredZone(t *testing.T) {
	cfg, err := runtime.ParseConfig("", noopValidator)
	if err != nil {
		t.Fatal(err)
	}
	dial := cfg.Dialer(call.ClientOptions{})
	if _, err := dial(context.Background(), zonerpc.DestinationZone(1)); err == nil {
		t.Fatal("expected an error dialing an unconfigured zone")
	}
}

func TestConfigDialerMissingAddress(t *testing.T) {
	cfg, err := runtime.ParseConfig(`
[zone.alpha]
zone = 1
`, noopValidator)
	if err != nil {
		t.Fatal(err)
	}
	dial := cfg.Dialer(call.ClientOptions{})
	if _, err := dial(context.Background(), zonerpc.DestinationZone(1)); err == nil {
		t.Fatal("expected an error dialing a zone with no address")
	}
}

func TestConfigDialerConnectsToConfiguredAddress(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go call.Serve(ctx, call.FixedListener(lis, call.NewHandlerMap()), call.ServerOptions{})

	cfg, err := runtime.ParseConfig(`
[zone.alpha]
zone = 1
address = "`+lis.Addr().String()+`"
`, noopValidator)
	if err != nil {
		t.Fatal(err)
	}
	dial := cfg.Dialer(call.ClientOptions{})
	transport, err := dial(context.Background(), zonerpc.DestinationZone(1))
	if err != nil {
		t.Fatalf("Dialer: %v", err)
	}
	if _, ok := transport.(*zonerpc.WireTransport); !ok {
		t.Fatalf("Dialer returned a %T, want *zonerpc.WireTransport", transport)
	}
}

func TestParseConfigSection(t *testing.T) {
	type section struct {
		Foo string
		Bar string
		Baz int
	}
	type testCase struct {
		name         string
		initialValue section
		config       string
		expect       section
	}
	for _, c := range []testCase{
		{"missing", section{}, ``, section{}},
		{"empty", section{}, "[section]\n", section{}},
		{
			"full",
			section{},
			`section = { Foo = "foo", Bar = "bar", Baz = 100 }`,
			section{"foo", "bar", 100},
		},
		{
			"partial",
			section{Baz: 200},
			`section = {Foo = "foo", Bar = "bar" }`,
			section{"foo", "bar", 200},
		},
	} {
		t.Run(c.name, func(t *testing.T) {
			config, err := runtime.ParseConfig(c.config, noopValidator)
			if err != nil {
				t.Fatal(err)
			}
			got := c.initialValue
			if err := runtime.ParseConfigSection("section", "", config.Sections, &got); err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(c.expect, got); diff != "" {
				t.Fatalf("ParseConfigSection: (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseConfigSectionConflict(t *testing.T) {
	config, err := runtime.ParseConfig(`
short = { Foo = "a" }
long = { Foo = "b" }
`, noopValidator)
	if err != nil {
		t.Fatal(err)
	}
	var dst struct{ Foo string }
	err = runtime.ParseConfigSection("long", "short", config.Sections, &dst)
	if err == nil || !strings.Contains(err.Error(), "conflicting") {
		t.Fatalf("got %v, want a conflicting-sections error", err)
	}
}

func TestParseConfigSectionUnknownKey(t *testing.T) {
	config, err := runtime.ParseConfig(`section = { Unknown = "x" }`, noopValidator)
	if err != nil {
		t.Fatal(err)
	}
	var dst struct{ Foo string }
	err = runtime.ParseConfigSection("section", "", config.Sections, &dst)
	if err == nil || !strings.Contains(err.Error(), "unknown") {
		t.Fatalf("got %v, want an unknown-key error", err)
	}
}

func TestParseConfigSectionValidator(t *testing.T) {
	var seen []string
	validator := func(key, val string) error {
		seen = append(seen, key)
		return nil
	}
	_, err := runtime.ParseConfig(`
[a]
x = 1
[b]
y = 2
`, validator)
	if err != nil {
		t.Fatal(err)
	}
	if len(seen) != 2 {
		t.Fatalf("validator called %d times, want 2", len(seen))
	}
}
