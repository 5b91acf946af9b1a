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
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/zonerpc/zonerpc/runtime/colors"
	"log/slog"
)

// Options configure a Logger created by StderrLogger.
type Options struct {
	// Zone is attached to every log entry emitted by the logger.
	Zone string

	// Component, if non-empty, is attached to every log entry as a "component"
	// attribute (e.g., "service", "service_proxy", "stub").
	Component string

	// Writer is where formatted entries are written. Defaults to os.Stderr.
	Writer io.Writer

	// Color, if true, colorizes output. Defaults to auto-detecting whether
	// os.Stderr is a terminal.
	Color *bool
}

// prettyHandler is a slog.Handler that pretty prints log entries using a
// PrettyPrinter, in the style of the teacher's stderr deployer logger.
type prettyHandler struct {
	mu   *sync.Mutex
	pp   *PrettyPrinter
	w    io.Writer
	zone string
	comp string
	grp  string
	attr []slog.Attr
}

var _ slog.Handler = &prettyHandler{}

// StderrLogger returns a logger that pretty prints every log entry to
// opts.Writer (os.Stderr by default).
func StderrLogger(opts Options) *slog.Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	color := colors.Enabled()
	if opts.Color != nil {
		color = *opts.Color
	}
	h := &prettyHandler{
		mu:   &sync.Mutex{},
		pp:   NewPrettyPrinter(color),
		w:    w,
		zone: opts.Zone,
		comp: opts.Component,
	}
	return slog.New(h)
}

func (h *prettyHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *prettyHandler) Handle(_ context.Context, r slog.Record) error {
	attrs := make([]string, 0, 2*(len(h.attr)+r.NumAttrs())+2)
	if h.comp != "" {
		attrs = append(attrs, "component", h.comp)
	}
	for _, a := range h.attr {
		attrs = append(attrs, a.Key, a.Value.String())
	}
	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, a.Key, a.Value.String())
		return true
	})

	file, line := "", -1
	if r.PC != 0 {
		// Best effort; slog.Record does not expose file/line directly without
		// a frame lookup, which callers can opt into via source attrs.
	}

	e := &Entry{
		Zone:       h.zone,
		Level:      levelString(r.Level),
		TimeMicros: r.Time.UnixMicro(),
		File:       file,
		Line:       line,
		Msg:        r.Message,
		Attrs:      attrs,
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := fmt.Fprintln(h.w, h.pp.Format(e))
	return err
}

func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.attr = append(append([]slog.Attr(nil), h.attr...), attrs...)
	return &c
}

func (h *prettyHandler) WithGroup(name string) slog.Handler {
	c := *h
	if c.grp == "" {
		c.grp = name
	} else {
		c.grp = c.grp + "." + name
	}
	return &c
}

func levelString(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return "error"
	case l >= slog.LevelWarn:
		return "warn"
	case l >= slog.LevelDebug && l < slog.LevelInfo:
		return "debug"
	default:
		return "info"
	}
}
