// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package ctxlog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/TylerBrock/colorjson"
	"github.com/dustin/go-humanize"
	"github.com/matt-FFFFFF/snapetl/internal/color"
)

var (
	// ErrMarshalAttribute is returned when the attributes of a record cannot be rendered.
	ErrMarshalAttribute = errors.New("error when marshaling attribute")
	// ErrWriteOutput is returned when a rendered record cannot be written.
	ErrWriteOutput = errors.New("error when writing to output")
)

// TimeFormat is the format used for timestamps in log messages.
const TimeFormat = "[15:04:05.000]"

// BytesSuffix marks integer attributes rendered as human readable sizes
// when human values are enabled, e.g. "manifest_bytes".
const BytesSuffix = "_bytes"

// PrettyHandler writes one line per record: timestamp, level, message and
// the record attributes as JSON. Attributes are collected by an inner
// slog.JSONHandler so groups and WithAttrs behave as in the standard library.
type PrettyHandler struct {
	inner   slog.Handler
	replace func([]string, slog.Attr) slog.Attr
	buf     *bytes.Buffer
	mu      *sync.Mutex
	out     io.Writer
	json    *colorjson.Formatter
	colour  bool
	human   bool
	indent  int
	empty   bool
}

// Option configures a PrettyHandler.
type Option func(h *PrettyHandler)

// WithDestinationWriter sets where rendered records are written. Defaults to stderr.
func WithDestinationWriter(w io.Writer) Option {
	return func(h *PrettyHandler) {
		h.out = w
	}
}

// WithColour forces ANSI colour output.
func WithColour() Option {
	return func(h *PrettyHandler) {
		h.colour = true
	}
}

// WithAutoColour enables colour when the color package allows it.
func WithAutoColour() Option {
	return func(h *PrettyHandler) {
		h.colour = color.Enabled()
	}
}

// WithOutputEmptyAttrs renders "{}" for records without attributes.
func WithOutputEmptyAttrs() Option {
	return func(h *PrettyHandler) {
		h.empty = true
	}
}

// WithIndent renders attributes as indented JSON on the following lines.
// The default of zero keeps each record on a single line.
func WithIndent(n int) Option {
	return func(h *PrettyHandler) {
		h.indent = n
	}
}

// WithHumanValues renders durations as strings and integer attributes
// whose key ends in BytesSuffix as sizes.
func WithHumanValues() Option {
	return func(h *PrettyHandler) {
		h.human = true
	}
}

// NewPrettyHandler creates a PrettyHandler. The level, source and ReplaceAttr
// settings of handlerOptions are honoured.
func NewPrettyHandler(handlerOptions *slog.HandlerOptions, options ...Option) *PrettyHandler {
	if handlerOptions == nil {
		handlerOptions = &slog.HandlerOptions{}
	}

	h := &PrettyHandler{
		replace: handlerOptions.ReplaceAttr,
		buf:     &bytes.Buffer{},
		mu:      &sync.Mutex{},
		out:     os.Stderr,
	}

	for _, opt := range options {
		opt(h)
	}

	replace := suppressDefaults(handlerOptions.ReplaceAttr)
	if h.human {
		replace = humanValues(replace)
	}

	h.inner = slog.NewJSONHandler(h.buf, &slog.HandlerOptions{
		Level:       handlerOptions.Level,
		AddSource:   handlerOptions.AddSource,
		ReplaceAttr: replace,
	})

	h.json = colorjson.NewFormatter()
	h.json.Indent = h.indent
	h.json.DisabledColor = !h.colour

	return h
}

// Enabled reports whether the inner handler accepts level.
func (h *PrettyHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// WithAttrs returns a handler that adds attrs to every record.
func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.inner = h.inner.WithAttrs(attrs)

	return &c
}

// WithGroup returns a handler that nests subsequent attributes under name.
func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	c := *h
	c.inner = h.inner.WithGroup(name)

	return &c
}

// Handle renders r and writes it as a single write call.
func (h *PrettyHandler) Handle(ctx context.Context, r slog.Record) error {
	attrs, err := h.attrs(ctx, r)
	if err != nil {
		return err
	}

	line := h.prefix(r)

	if h.empty || len(attrs) > 0 {
		rendered, err := h.render(attrs)
		if err != nil {
			return errors.Join(ErrMarshalAttribute, err)
		}

		line = append(line, rendered...)
	}

	line = append(line, '\n')

	if _, err := h.out.Write(line); err != nil {
		return errors.Join(ErrWriteOutput, err)
	}

	return nil
}

// prefix renders the timestamp, level and message, each followed by a space.
// A part removed by ReplaceAttr is omitted.
func (h *PrettyHandler) prefix(r slog.Record) []byte {
	var sb strings.Builder

	if a, ok := h.builtin(slog.TimeKey, slog.StringValue(r.Time.Format(TimeFormat))); ok {
		sb.WriteString(h.colorize(a.Value.String(), color.FgWhite))
		sb.WriteByte(' ')
	}

	if a, ok := h.builtin(slog.LevelKey, slog.AnyValue(r.Level)); ok {
		sb.WriteString(h.colorize(a.Value.String()+":", levelColour(r.Level)))
		sb.WriteByte(' ')
	}

	if a, ok := h.builtin(slog.MessageKey, slog.StringValue(r.Message)); ok {
		sb.WriteString(h.colorize(a.Value.String(), color.FgHiWhite))
		sb.WriteByte(' ')
	}

	return []byte(sb.String())
}

func (h *PrettyHandler) builtin(key string, v slog.Value) (slog.Attr, bool) {
	a := slog.Attr{Key: key, Value: v}
	if h.replace != nil {
		a = h.replace(nil, a)
	}

	return a, !a.Equal(slog.Attr{})
}

// attrs runs r through the inner JSON handler and decodes the result.
func (h *PrettyHandler) attrs(ctx context.Context, r slog.Record) (map[string]any, error) {
	h.mu.Lock()
	defer func() {
		h.buf.Reset()
		h.mu.Unlock()
	}()

	if err := h.inner.Handle(ctx, r); err != nil {
		return nil, fmt.Errorf("error when calling inner handler's Handle: %w", err)
	}

	var attrs map[string]any
	if err := json.Unmarshal(h.buf.Bytes(), &attrs); err != nil {
		return nil, fmt.Errorf("error when unmarshaling inner handler's Handle result: %w", err)
	}

	return attrs, nil
}

func (h *PrettyHandler) render(attrs map[string]any) ([]byte, error) {
	if h.colour || h.indent > 0 {
		b, err := h.json.Marshal(attrs)
		if err != nil {
			return nil, err //nolint:wrapcheck
		}

		if h.indent > 0 {
			b = append([]byte{'\n'}, b...)
		}

		return b, nil
	}

	return json.Marshal(attrs) //nolint:wrapcheck
}

func (h *PrettyHandler) colorize(s string, codes ...color.Code) string {
	if !h.colour {
		return s
	}

	return color.Colorize(s, codes...)
}

func levelColour(l slog.Level) color.Code {
	switch {
	case l <= slog.LevelDebug:
		return color.FgWhite
	case l <= slog.LevelInfo:
		return color.FgCyan
	case l < slog.LevelWarn:
		return color.FgBlue
	case l < slog.LevelError:
		return color.FgYellow
	case l <= slog.LevelError+1:
		return color.FgRed
	default:
		return color.FgHiMagenta
	}
}

// suppressDefaults drops the time, level and message attributes from the
// inner handler output. They are rendered by prefix instead.
func suppressDefaults(next func([]string, slog.Attr) slog.Attr) func([]string, slog.Attr) slog.Attr {
	return func(groups []string, a slog.Attr) slog.Attr {
		if len(groups) == 0 && (a.Key == slog.TimeKey || a.Key == slog.LevelKey || a.Key == slog.MessageKey) {
			return slog.Attr{}
		}

		if next == nil {
			return a
		}

		return next(groups, a)
	}
}

func humanValues(next func([]string, slog.Attr) slog.Attr) func([]string, slog.Attr) slog.Attr {
	return func(groups []string, a slog.Attr) slog.Attr {
		a = next(groups, a)

		switch a.Value.Kind() {
		case slog.KindDuration:
			a.Value = slog.StringValue(a.Value.Duration().Round(time.Millisecond).String())
		case slog.KindUint64:
			if strings.HasSuffix(a.Key, BytesSuffix) {
				a.Value = slog.StringValue(humanize.IBytes(a.Value.Uint64()))
			}
		case slog.KindInt64:
			if n := a.Value.Int64(); n >= 0 && strings.HasSuffix(a.Key, BytesSuffix) {
				a.Value = slog.StringValue(humanize.IBytes(uint64(n)))
			}
		default:
		}

		return a
	}
}
