// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// ErrorSink receives one line per error record.
type ErrorSink interface {
	Log(message string)
}

// SinkHandler forwards records at ERROR or above to an ErrorSink and
// passes every record on to the wrapped handler.
type SinkHandler struct {
	next      slog.Handler
	sink      ErrorSink
	prefix    string
	component string
	fields    []string
}

// NewSinkHandler wraps next so error records also land in sink.
func NewSinkHandler(next slog.Handler, sink ErrorSink) *SinkHandler {
	return &SinkHandler{next: next, sink: sink}
}

// Enabled reports whether either destination wants the record.
func (h *SinkHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= slog.LevelError || h.next.Enabled(ctx, level)
}

// Handle writes the record to the sink (errors only) and the next handler.
func (h *SinkHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError {
		h.sink.Log(h.format(r))
	}
	if !h.next.Enabled(ctx, r.Level) {
		return nil
	}
	return h.next.Handle(ctx, r)
}

// WithAttrs returns a handler carrying attrs on both destinations.
func (h *SinkHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.next = h.next.WithAttrs(attrs)
	clone.fields = append([]string(nil), h.fields...)
	for _, a := range attrs {
		clone.add(a)
	}
	return &clone
}

// WithGroup returns a handler that nests subsequent attrs under name.
func (h *SinkHandler) WithGroup(name string) slog.Handler {
	clone := *h
	clone.next = h.next.WithGroup(name)
	clone.prefix = name
	if h.prefix != "" {
		clone.prefix = h.prefix + "." + name
	}
	return &clone
}

func (h *SinkHandler) add(a slog.Attr) {
	if a.Key == ComponentKey && h.prefix == "" && h.component == "" {
		h.component = a.Value.String()
		return
	}
	key := a.Key
	if h.prefix != "" {
		key = h.prefix + "." + key
	}
	h.fields = append(h.fields, fmt.Sprintf("%s=%v", key, a.Value.Any()))
}

// format renders "component: msg key=value ..." on one line.
func (h *SinkHandler) format(r slog.Record) string {
	rec := *h
	rec.fields = append([]string(nil), h.fields...)
	r.Attrs(func(a slog.Attr) bool {
		rec.add(a)
		return true
	})

	var b strings.Builder
	if rec.component != "" {
		b.WriteString(rec.component)
		b.WriteString(": ")
	}
	b.WriteString(r.Message)
	for _, kv := range rec.fields {
		b.WriteByte(' ')
		b.WriteString(kv)
	}
	return b.String()
}
