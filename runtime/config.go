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

package runtime

import (
	"context"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/zonerpc/zonerpc"
	"github.com/zonerpc/zonerpc/internal/net/call"
)

// Config is the parsed form of a deployment's topology file: one
// [zone.<name>] section per zone known to this process, plus every other
// top-level section left as raw TOML text for application code to decode
// with ParseConfigSection.
type Config struct {
	// Zones maps a zone's configured name to its settings.
	Zones map[string]ZoneConfig

	// Sections holds the raw TOML text of every top-level section other
	// than "zone", keyed by section name.
	Sections map[string]string
}

// ZoneConfig is the [zone.<name>] section describing one zone in a
// topology: how to reach it and which defaults it negotiates with peers.
type ZoneConfig struct {
	// Zone is the numeric zonerpc.Zone identifying this zone.
	Zone uint64

	// Address is the endpoint a WireTransport dials to reach this zone,
	// e.g. "10.0.0.4:9000". Empty for a zone reached only in-process.
	Address string

	// Encoding names the default Encoding negotiated with this zone;
	// see ZoneConfig.ResolveEncoding. Empty means yas_binary.
	Encoding string

	// Concurrency bounds how many inbound calls this zone's Service
	// dispatches at once; see Service.SetConcurrency. Zero means
	// unbounded.
	Concurrency int
}

// Lookup returns the ZoneConfig whose Zone field matches dest, if any.
func (c *Config) Lookup(dest zonerpc.DestinationZone) (ZoneConfig, bool) {
	for _, zc := range c.Zones {
		if zc.Zone == uint64(dest) {
			return zc, true
		}
	}
	return ZoneConfig{}, false
}

// Dialer returns a dial function suitable for zonerpc.NewService, wiring a
// destination zone's address from cfg into an internal/net/call connection
// wrapped as a zonerpc.WireTransport. The returned ServiceProxy's encoding is
// left for the caller to pin with SetEncoding per ZoneConfig.ResolveEncoding,
// since dialing happens before a ServiceProxy exists to pin it on.
func (c *Config) Dialer(opts call.ClientOptions) func(ctx context.Context, dest zonerpc.DestinationZone) (zonerpc.Transport, error) {
	return func(ctx context.Context, dest zonerpc.DestinationZone) (zonerpc.Transport, error) {
		zc, ok := c.Lookup(dest)
		if !ok {
			return nil, fmt.Errorf("no zone configured for destination %s", dest)
		}
		if zc.Address == "" {
			return nil, fmt.Errorf("zone %s has no address to dial", dest)
		}
		conn, err := call.Connect(ctx, call.NewConstantResolver(call.TCP(zc.Address)), opts)
		if err != nil {
			return nil, err
		}
		return zonerpc.NewWireTransport(conn), nil
	}
}

// ResolveEncoding returns the zonerpc.Encoding named by z.Encoding.
func (z ZoneConfig) ResolveEncoding() (zonerpc.Encoding, error) {
	switch z.Encoding {
	case "", "yas_binary":
		return zonerpc.EncodingYASBinary, nil
	case "yas_json":
		return zonerpc.EncodingYASJSON, nil
	case "yas_compressed_binary":
		return zonerpc.EncodingYASCompressedBinary, nil
	case "protocol_buffers":
		return zonerpc.EncodingProtocolBuffers, nil
	default:
		return zonerpc.EncodingUnspecified, fmt.Errorf("zone encoding %q: %w", z.Encoding, zonerpc.ErrInvalidEncoding)
	}
}

// ParseConfig parses input, a topology file in TOML format, extracting
// every [zone.<name>] section into the returned Config's Zones field.
// sectionValidator(key, val) is called for every other top-level section,
// to be validated by application code before ParseConfigSection decodes
// the ones it cares about.
func ParseConfig(input string, sectionValidator func(string, string) error) (*Config, error) {
	var raw map[string]toml.Primitive
	if _, err := toml.Decode(input, &raw); err != nil {
		return nil, err
	}
	cfg := &Config{Zones: map[string]ZoneConfig{}, Sections: map[string]string{}}
	for key, v := range raw {
		var buf strings.Builder
		if err := toml.NewEncoder(&buf).Encode(v); err != nil {
			return nil, fmt.Errorf("encoding section %q: %w", key, err)
		}
		cfg.Sections[key] = buf.String()
	}

	var zones struct {
		Zone map[string]ZoneConfig `toml:"zone"`
	}
	if _, err := toml.Decode(input, &zones); err != nil {
		return nil, fmt.Errorf("parsing zone sections: %w", err)
	}
	cfg.Zones = zones.Zone
	delete(cfg.Sections, "zone")

	for key, val := range cfg.Sections {
		if err := sectionValidator(key, val); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// ParseConfigSection parses the config section for key into dst. If
// shortKey is not empty, either key or shortKey is accepted, and both
// present at once is an error. If the named section is not found,
// ParseConfigSection returns nil without changing dst.
func ParseConfigSection(key, shortKey string, sections map[string]string, dst any) error {
	section, ok := sections[key]
	if shortKey != "" {
		if shortKeySection, ok2 := sections[shortKey]; ok2 {
			if ok {
				return fmt.Errorf("conflicting sections %q and %q", shortKey, key)
			}
			key, section, ok = shortKey, shortKeySection, ok2
		}
	}
	if !ok {
		return nil
	}

	md, err := toml.Decode(section, dst)
	if err != nil {
		return err
	}
	if unknown := md.Undecoded(); len(unknown) != 0 {
		return fmt.Errorf("section %q has unknown keys %v", key, unknown)
	}
	if x, ok := dst.(interface{ Validate() error }); ok {
		if err := x.Validate(); err != nil {
			return fmt.Errorf("section %q: %w", key, err)
		}
	}
	return nil
}
