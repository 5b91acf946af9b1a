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

package logging

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/zonerpc/zonerpc/runtime/colors"
)

var (
	dimColor       = colors.Color256(245) // dimmed text color (a light gray)
	errorColor     = colors.Color256(9)   // error color (a light red)
	attrNameColor  = colors.Color256(245) // attribute name color (a light gray)
	attrValueColor = colors.Color256(245) // attribute name color (a light gray)
)

// PrettyPrinter pretty prints log entries. You can safely use a PrettyPrinter
// from multiple goroutines.
type PrettyPrinter struct {
	colorize func(colors.Code, string) string // colors the provided string

	mu            sync.Mutex // guards the following fields
	b             strings.Builder
	prev          *Entry // previously printed entry
	zonePadding   int    // zone-name padding
	sourcePadding int    // file:line padding
}

// NewPrettyPrinter returns a new PrettyPrinter. If color is true, the pretty
// printer colorizes its output using ANSII escape codes.
func NewPrettyPrinter(color bool) *PrettyPrinter {
	pp := &PrettyPrinter{
		colorize:      func(_ colors.Code, s string) string { return s },
		zonePadding:   7,
		sourcePadding: 10,
	}
	if color {
		pp.colorize = func(code colors.Code, s string) string {
			return fmt.Sprintf("%s%s%s", code, s, colors.Reset)
		}
	}
	return pp
}

// Format formats a log entry as a single line of human-readable text. Here
// are some examples of what pretty printed log entries look like:
//
//	I0921 10:07:31.733831 zoneA peerB call.go:164] sending add_ref
//	I0921 10:07:31.759352 zoneA peerB stub.go:155     ] dispatching method
func (pp *PrettyPrinter) Format(e *Entry) string {
	// We want to pretty print the log entry, preferring prettiness over
	// completeness. We lose some information, but that's okay.
	pp.mu.Lock()
	defer pp.mu.Unlock()
	pp.b.Reset()

	sameZone := pp.prev != nil && e.Zone == pp.prev.Zone
	samePeer := pp.prev != nil && e.Peer == pp.prev.Peer
	sameLevel := pp.prev != nil && e.Level == pp.prev.Level
	sameFile := pp.prev != nil && e.File == pp.prev.File
	sameLine := pp.prev != nil && e.Line == pp.prev.Line

	level := " "
	if len(e.Level) > 0 {
		level = strings.ToUpper(e.Level[:1])
	}
	levelColor := colors.Reset
	if strings.ToLower(e.Level) == "error" {
		levelColor = errorColor
	}

	cur := time.UnixMicro(e.TimeMicros)
	if !sameZone || !samePeer || !sameLevel || pp.prev == nil {
		pp.b.WriteString(pp.colorize(levelColor, level))
		pp.b.WriteString(pp.colorize(levelColor, cur.Format("0102 15:04:05.000000")))
	} else {
		pp.b.WriteString(pp.colorize(dimColor, level))
		prevTime := time.UnixMicro(pp.prev.TimeMicros)
		switch {
		case cur.Day() != prevTime.Day():
			pp.b.WriteString(pp.colorize(dimColor, cur.Format("01")))
			pp.b.WriteString(pp.colorize(levelColor, cur.Format("02 15:04:05.000000")))
		case cur.Hour() != prevTime.Hour():
			pp.b.WriteString(pp.colorize(dimColor, cur.Format("0102")))
			pp.b.WriteString(pp.colorize(levelColor, cur.Format("15:04:05.000000")))
		case cur.Minute() != prevTime.Minute():
			pp.b.WriteString(pp.colorize(dimColor, cur.Format("0102 15:")))
			pp.b.WriteString(pp.colorize(levelColor, cur.Format("04:05.000000")))
		case cur.Second() != prevTime.Second():
			pp.b.WriteString(pp.colorize(dimColor, cur.Format("0102 15:04:")))
			pp.b.WriteString(pp.colorize(levelColor, cur.Format("05.000000")))
		default:
			pp.b.WriteString(pp.colorize(dimColor, cur.Format("0102 15:04:05.000000")))
		}
	}
	pp.b.WriteByte(' ')

	// Write the zone.
	z := e.Zone
	if len(z) > pp.zonePadding {
		pp.zonePadding = len(z)
	}
	pp.b.WriteString(pp.colorize(colors.ColorHash(z), fmt.Sprintf("%*s", -pp.zonePadding, z)))

	// Write the peer zone, if present.
	if len(e.Peer) > 0 {
		pp.b.WriteByte(' ')
		if samePeer {
			pp.b.WriteString(pp.colorize(dimColor, Shorten(e.Peer)))
		} else {
			pp.b.WriteString(pp.colorize(colors.ColorHash(e.Peer), Shorten(e.Peer)))
		}
	}

	// Write the file and line, if present.
	pp.b.WriteByte(' ')
	if e.File != "" && e.Line != -1 {
		file := filepath.Base(e.File)
		line := fmt.Sprint(e.Line)
		if s := fmt.Sprintf("%s:%s", file, line); len(s) > pp.sourcePadding {
			pp.sourcePadding = len(s)
		}
		if sameFile && sameLine {
			s := fmt.Sprintf("%s:%s", file, line)
			pp.b.WriteString(pp.colorize(dimColor, fmt.Sprintf("%*s", -pp.sourcePadding, s)))
		} else if sameFile && !sameLine {
			s := pp.colorize(dimColor, fmt.Sprintf("%s:", file)) + line
			fmt.Fprintf(&pp.b, "%*s", -pp.sourcePadding-len(dimColor)-len(colors.Reset), s)
		} else {
			s := fmt.Sprintf("%s:%s", file, line)
			fmt.Fprintf(&pp.b, "%*s", -pp.sourcePadding, s)
		}
	} else {
		fmt.Fprintf(&pp.b, "%*s", -pp.sourcePadding, "")
	}

	// Write the message.
	pp.b.WriteString("] ")
	pp.b.WriteString(pp.colorize(colors.ColorHash(z), e.Msg))

	// Write the attributes, if present.
	if len(e.Attrs) > 0 {
		type attr struct{ name, value string }
		attrs := make([]attr, 0, len(e.Attrs)/2)
		for i := 0; i+1 < len(e.Attrs); i += 2 {
			attrs = append(attrs, attr{e.Attrs[i], e.Attrs[i+1]})
		}
		sort.Slice(attrs, func(i, j int) bool { return attrs[i].name < attrs[j].name })
		for _, a := range attrs {
			pp.b.WriteString(" ")
			pp.b.WriteString(pp.colorize(attrNameColor, a.name+"="))
			pp.b.WriteString(pp.colorize(attrValueColor, fmt.Sprintf("%q", a.value)))
		}
	}

	pp.prev = e.clone()
	return pp.b.String()
}

// Shorten returns a short prefix of the provided string.
func Shorten(s string) string {
	const n = 8
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
