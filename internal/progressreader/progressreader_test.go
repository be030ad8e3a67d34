// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package progressreader

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/matt-FFFFFF/snapetl/internal/progress"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingReporter struct {
	events []progress.Event
	closed int
}

func (r *recordingReporter) Report(event progress.Event) {
	r.events = append(r.events, event)
}

func (r *recordingReporter) Close() {
	r.closed++
}

func (r *recordingReporter) count(t progress.EventType) int {
	var n int

	for _, e := range r.events {
		if e.Type == t {
			n++
		}
	}

	return n
}

func (r *recordingReporter) finalized() int {
	return r.count(progress.EventCompleted) + r.count(progress.EventFailed)
}

// errAfterReader delivers the first k bytes of data then fails.
type errAfterReader struct {
	data []byte
	k    int
	pos  int
	err  error
}

func (e *errAfterReader) Read(p []byte) (int, error) {
	if e.pos >= e.k {
		return 0, e.err
	}

	n := copy(p, e.data[e.pos:e.k])
	e.pos += n

	return n, nil
}

type readCounter struct {
	io.Reader
	reads int
}

func (r *readCounter) Read(p []byte) (int, error) {
	r.reads++
	return r.Reader.Read(p) //nolint:wrapcheck
}

type closeCounter struct {
	io.Reader
	closes int
}

func (c *closeCounter) Close() error {
	c.closes++
	return nil
}

func TestReader_DrainCountsEveryByte(t *testing.T) {
	tests := []struct {
		name   string
		source func([]byte) io.Reader
	}{
		{name: "plain reader", source: func(b []byte) io.Reader { return bytes.NewReader(b) }},
		{name: "one byte at a time", source: func(b []byte) io.Reader { return iotest.OneByteReader(bytes.NewReader(b)) }},
		{name: "half reads", source: func(b []byte) io.Reader { return iotest.HalfReader(bytes.NewReader(b)) }},
		{name: "data with EOF", source: func(b []byte) io.Reader { return iotest.DataErrReader(bytes.NewReader(b)) }},
	}

	data := bytes.Repeat([]byte("0123456789abcdef"), 4096)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rep := &recordingReporter{}
			pr := New(tt.source(data), int64(len(data)), "manifest", rep)

			got, err := io.ReadAll(pr)
			require.NoError(t, err)
			assert.Equal(t, data, got, "bytes must be delivered unchanged")
			assert.Equal(t, uint64(len(data)), pr.Count())

			require.NoError(t, pr.Close())
			assert.Equal(t, 1, rep.count(progress.EventStarted))
			assert.Equal(t, 1, rep.count(progress.EventCompleted))
			assert.Equal(t, 0, rep.count(progress.EventFailed))

			last := rep.events[len(rep.events)-1]
			assert.Equal(t, uint64(len(data)), last.Data.Position)
			assert.Equal(t, uint64(len(data)), last.Data.Total)
			assert.Equal(t, progress.UnitBytes, last.Data.Unit)
			assert.Equal(t, "manifest", last.Label)
		})
	}
}

func TestReader_FinalizesOnceAfterReadError(t *testing.T) {
	data := bytes.Repeat([]byte{0xab}, 1000)
	boom := errors.New("disk on fire")
	src := &errAfterReader{data: data, k: 300, err: boom}

	rep := &recordingReporter{}
	pr := New(src, int64(len(data)), "manifest", rep)

	got, err := io.ReadAll(pr)
	require.ErrorIs(t, err, boom)
	assert.Len(t, got, 300)
	assert.Equal(t, uint64(300), pr.Count())

	require.NoError(t, pr.Close())
	require.NoError(t, pr.Close())

	assert.Equal(t, 1, rep.finalized(), "display must be finalized exactly once")
	assert.Equal(t, 1, rep.count(progress.EventFailed))

	failed := rep.events[len(rep.events)-1]
	assert.ErrorIs(t, failed.Data.Error, boom)
	assert.Equal(t, uint64(300), failed.Data.Position)
	assert.Zero(t, rep.closed, "the shared reporter is never closed by a reader")
}

func TestReader_FinalizesOnceWhenAbandoned(t *testing.T) {
	src := &closeCounter{Reader: strings.NewReader("abandoned before the end")}
	rep := &recordingReporter{}

	func() {
		pr := New(src, 24, "manifest", rep)
		defer pr.Close() //nolint:errcheck

		buf := make([]byte, 4)
		require.NoError(t, pr.ReadExact(buf))
		assert.Equal(t, "aban", string(buf))
	}()

	assert.Equal(t, 1, rep.finalized())
	assert.Equal(t, 1, rep.count(progress.EventCompleted))
	assert.Equal(t, 1, src.closes, "closable sources are closed once")
}

func TestReader_ReadVariants(t *testing.T) {
	const text = "the quick brown fox jumps over the lazy dog"

	t.Run("ReadVectored makes one read into the first non-empty buffer", func(t *testing.T) {
		src := &readCounter{Reader: strings.NewReader(text)}
		pr := New(src, int64(len(text)), "v", nil)
		a, b, c := make([]byte, 0), make([]byte, 4), make([]byte, 6)

		n, err := pr.ReadVectored([][]byte{a, b, c})
		require.NoError(t, err)
		assert.Equal(t, 4, n)
		assert.Equal(t, "the ", string(b))
		assert.Equal(t, make([]byte, 6), c, "later buffers are not filled")
		assert.Equal(t, 1, src.reads)
		assert.Equal(t, uint64(4), pr.Count())
	})

	t.Run("ReadVectored returns what a single read delivers", func(t *testing.T) {
		src := &readCounter{Reader: iotest.HalfReader(strings.NewReader(text))}
		pr := New(src, int64(len(text)), "v", nil)

		n, err := pr.ReadVectored([][]byte{make([]byte, 8), make([]byte, 8)})
		require.NoError(t, err)
		assert.Equal(t, 4, n)
		assert.Equal(t, 1, src.reads)
		assert.Equal(t, uint64(4), pr.Count())
	})

	t.Run("ReadVectored with only empty buffers", func(t *testing.T) {
		src := &readCounter{Reader: strings.NewReader(text)}
		pr := New(src, int64(len(text)), "v", nil)

		n, err := pr.ReadVectored([][]byte{{}, nil})
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.Zero(t, src.reads)
	})

	t.Run("ReadVectored propagates errors", func(t *testing.T) {
		boom := errors.New("boom")
		pr := New(iotest.ErrReader(boom), 0, "v", nil)

		n, err := pr.ReadVectored([][]byte{make([]byte, 4)})
		assert.Zero(t, n)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("ReadToString", func(t *testing.T) {
		pr := New(iotest.OneByteReader(strings.NewReader(text)), int64(len(text)), "s", nil)

		var sb strings.Builder

		sb.WriteString(">")

		n, err := pr.ReadToString(&sb)
		require.NoError(t, err)
		assert.Equal(t, len(text), n)
		assert.Equal(t, ">"+text, sb.String())
		assert.Equal(t, uint64(len(text)), pr.Count())
	})

	t.Run("ReadToString rejects invalid UTF-8", func(t *testing.T) {
		rec := &recordingReporter{}
		pr := New(bytes.NewReader([]byte{0xff, 0xfe, 'a'}), 3, "s", rec)

		var sb strings.Builder

		n, err := pr.ReadToString(&sb)
		require.ErrorIs(t, err, ErrInvalidUTF8)
		assert.Equal(t, 3, n)
		assert.Empty(t, sb.String(), "nothing is appended")
		assert.Equal(t, uint64(3), pr.Count())

		require.NoError(t, pr.Close())
		assert.Equal(t, 1, rec.count(progress.EventCompleted), "the stream itself did not fail")
	})

	t.Run("ReadExact short source", func(t *testing.T) {
		pr := New(strings.NewReader("abc"), 3, "e", nil)

		err := pr.ReadExact(make([]byte, 5))
		assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
		assert.Equal(t, uint64(3), pr.Count())
	})

	t.Run("ReadExact empty source", func(t *testing.T) {
		pr := New(strings.NewReader(""), 0, "e", nil)

		err := pr.ReadExact(make([]byte, 1))
		assert.ErrorIs(t, err, io.EOF)
		assert.Zero(t, pr.Count())
	})
}

func TestReader_InstrumentationDisabledIsIdentical(t *testing.T) {
	data := bytes.Repeat([]byte("snapshot"), 1000)

	plain, err := io.ReadAll(bytes.NewReader(data))
	require.NoError(t, err)

	instrumented, err := io.ReadAll(New(bytes.NewReader(data), int64(len(data)), "x", nil))
	require.NoError(t, err)

	assert.Equal(t, plain, instrumented)
}

func TestTracking(t *testing.T) {
	rep := &recordingReporter{}
	tracking := NewTracking(rep)

	rc := tracking.NewReadProgressTracker("/snap/snapshots/1/1", strings.NewReader("manifest bytes"), 14)
	_, err := io.Copy(io.Discard, rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())

	require.NotEmpty(t, rep.events)
	assert.Equal(t, ManifestLabel, rep.events[0].Label)
	assert.Equal(t, 1, rep.finalized())
}
