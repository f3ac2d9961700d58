// Package framer splits a byte stream into newline-delimited text records.
//
// Bytes arrive in arbitrary chunks. The Framer decodes them as UTF-8 with a
// decoder that keeps state across chunks, so a multi-byte sequence split over
// two chunks decodes to the same text as the unsplit input. Invalid bytes
// become U+FFFD. A leading byte order mark is dropped.
package framer

import (
	"bytes"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Record is one complete, non-blank line.
type Record struct {
	Line int    // 1-based physical line number
	Text string // line content without the terminator
}

// Framer accumulates decoded text and emits complete lines. It is not safe
// for concurrent use; a pipeline run owns exactly one.
type Framer struct {
	dec     transform.Transformer
	carry   []byte
	buf     []byte
	pending []byte // decoded text not yet emitted
	scanned int    // prefix of pending known to hold no newline
	line    int
}

// New creates a Framer.
func New() *Framer {
	return &Framer{
		dec: unicode.UTF8BOM.NewDecoder(),
		buf: make([]byte, 4096),
	}
}

// Write consumes a chunk and returns the records it completed, in order.
// Blank lines advance the line counter but produce no record. Only newly
// decoded text is scanned, so a long line costs time linear in its length.
func (f *Framer) Write(chunk []byte) []Record {
	f.decode(chunk, false)

	var records []Record
	start := 0
	for {
		idx := bytes.IndexByte(f.pending[f.scanned:], '\n')
		if idx < 0 {
			f.scanned = len(f.pending)
			break
		}
		end := f.scanned + idx
		f.line++
		if r, ok := f.record(string(f.pending[start:end])); ok {
			records = append(records, r)
		}
		start = end + 1
		f.scanned = start
	}

	if start > 0 {
		n := copy(f.pending, f.pending[start:])
		f.pending = f.pending[:n]
		f.scanned -= start
	}
	return records
}

// Flush decodes any buffered bytes and returns the final unterminated line,
// if it is not blank. Call it once after the last Write.
func (f *Framer) Flush() (Record, bool) {
	f.decode(nil, true)
	text := string(f.pending)
	f.pending = f.pending[:0]
	f.scanned = 0

	if text == "" {
		return Record{}, false
	}
	f.line++
	return f.record(text)
}

// Line reports how many physical lines have been seen.
func (f *Framer) Line() int {
	return f.line
}

func (f *Framer) record(text string) (Record, bool) {
	text = strings.TrimSuffix(text, "\r")
	if strings.TrimSpace(text) == "" {
		return Record{}, false
	}
	return Record{Line: f.line, Text: text}, true
}

// decode runs src through the stateful decoder, appending the output to the
// pending text. Bytes of an incomplete trailing sequence are carried over to
// the next call.
func (f *Framer) decode(chunk []byte, atEOF bool) {
	src := chunk
	if len(f.carry) > 0 {
		src = make([]byte, 0, len(f.carry)+len(chunk))
		src = append(src, f.carry...)
		src = append(src, chunk...)
		f.carry = f.carry[:0]
	}

	for {
		nDst, nSrc, err := f.dec.Transform(f.buf, src, atEOF)
		f.pending = append(f.pending, f.buf[:nDst]...)
		src = src[nSrc:]

		switch err {
		case transform.ErrShortDst:
			continue
		case transform.ErrShortSrc:
			f.carry = append(f.carry, src...)
			return
		default:
			// The replacing decoder reports no other errors; anything left
			// is passed through as-is rather than lost.
			if err != nil && len(src) > 0 {
				f.pending = append(f.pending, src...)
			}
			return
		}
	}
}
