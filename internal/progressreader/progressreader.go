// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package progressreader

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/matt-FFFFFF/snapetl/internal/progress"
)

// Reader wraps an io.Reader and reports the cumulative number of bytes read.
// It is not safe for concurrent use, matching the readers it wraps.
type Reader struct {
	reader   io.Reader
	label    string
	total    uint64
	n        uint64
	err      error
	reporter progress.Reporter
	once     sync.Once
}

// ErrInvalidUTF8 is returned by ReadToString when the stream is not valid UTF-8.
var ErrInvalidUTF8 = errors.New("stream did not contain valid UTF-8")

var (
	_ io.ReadCloser = (*Reader)(nil)
	_ io.WriterTo   = (*Reader)(nil)
)

// New wraps r. total is the expected length of r and is only used for display.
// A nil reporter disables reporting.
func New(r io.Reader, total int64, label string, reporter progress.Reporter) *Reader {
	if reporter == nil {
		reporter = progress.NewNullReporter()
	}

	if total < 0 {
		total = 0
	}

	pr := &Reader{
		reader:   r,
		label:    label,
		total:    uint64(total),
		reporter: reporter,
	}

	pr.report(progress.EventStarted, nil)

	return pr
}

// Read implements io.Reader.
func (pr *Reader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	pr.advance(n, err)

	return n, err //nolint:wrapcheck
}

// ReadVectored performs a single read of the source into the first non-empty
// buffer of bufs, like io.Reader.Read on that buffer. Later buffers are left
// untouched so that the call never waits for more data after some arrived.
func (pr *Reader) ReadVectored(bufs [][]byte) (int, error) {
	for _, b := range bufs {
		if len(b) > 0 {
			return pr.Read(b)
		}
	}

	return 0, nil
}

// ReadToString reads everything up to EOF and appends it to sb.
// Reaching EOF is not an error. When the bytes read are not valid UTF-8,
// nothing is appended and ErrInvalidUTF8 is returned; the bytes are still
// consumed and counted.
func (pr *Reader) ReadToString(sb *strings.Builder) (int, error) {
	var buf bytes.Buffer

	n, err := io.Copy(&buf, pr)
	if err != nil {
		return int(n), err //nolint:wrapcheck
	}

	if !utf8.Valid(buf.Bytes()) {
		return int(n), ErrInvalidUTF8
	}

	sb.Write(buf.Bytes())

	return int(n), nil
}

// ReadExact fills p completely. It returns io.ErrUnexpectedEOF when the source
// ends part way, and io.EOF when no bytes were available, like io.ReadFull.
func (pr *Reader) ReadExact(p []byte) error {
	_, err := io.ReadFull(pr, p)

	return err //nolint:wrapcheck
}

// WriteTo implements io.WriterTo so that io.Copy keeps counting.
func (pr *Reader) WriteTo(w io.Writer) (int64, error) {
	buf := make([]byte, 32*1024)

	var written int64

	for {
		n, rerr := pr.Read(buf)
		if n > 0 {
			m, werr := w.Write(buf[:n])
			written += int64(m)

			if werr != nil {
				return written, werr //nolint:wrapcheck
			}

			if m != n {
				return written, io.ErrShortWrite
			}
		}

		if rerr == io.EOF {
			return written, nil
		}

		if rerr != nil {
			return written, rerr
		}
	}
}

// Count returns the number of bytes delivered so far.
func (pr *Reader) Count() uint64 {
	return pr.n
}

// Close finalizes the display row and closes the source if it is an io.Closer.
// The row is finalized once: EventFailed if a read error was seen, otherwise
// EventCompleted. Later calls do nothing and return nil.
func (pr *Reader) Close() error {
	var err error

	pr.once.Do(func() {
		if pr.err != nil {
			pr.report(progress.EventFailed, pr.err)
		} else {
			pr.report(progress.EventCompleted, nil)
		}

		if c, ok := pr.reader.(io.Closer); ok {
			err = c.Close()
		}
	})

	return err
}

func (pr *Reader) advance(n int, err error) {
	if n > 0 {
		pr.n += uint64(n)
		pr.report(progress.EventProgress, nil)
	}

	if err != nil && !errors.Is(err, io.EOF) && pr.err == nil {
		pr.err = err
	}
}

func (pr *Reader) report(t progress.EventType, err error) {
	pr.reporter.Report(progress.Event{
		Label:     pr.label,
		Type:      t,
		Timestamp: time.Now(),
		Data: progress.EventData{
			Position: pr.n,
			Total:    pr.total,
			Unit:     progress.UnitBytes,
			Error:    err,
		},
	})
}
