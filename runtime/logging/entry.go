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

// Entry is a single structured log record emitted by a zone's service or
// service_proxy. It plays the role that the teacher's protos.LogEntry plays,
// but is a plain struct since this module has no generated protobuf log
// schema.
type Entry struct {
	Zone       string   // name of the emitting zone
	Peer       string   // destination/source zone, if any
	Level      string   // "info", "error", ...
	TimeMicros int64    // microseconds since the Unix epoch
	File       string   // source file that produced the entry
	Line       int      // source line that produced the entry; -1 if unknown
	Msg        string   // human readable message
	Attrs      []string // flattened key, value, key, value, ...
}

func (e *Entry) clone() *Entry {
	if e == nil {
		return nil
	}
	c := *e
	c.Attrs = append([]string(nil), e.Attrs...)
	return &c
}
