package framer

import (
	"bytes"
	"reflect"
	"strings"
	"testing"
	"time"
)

func collect(f *Framer, chunks ...[]byte) []Record {
	var out []Record
	for _, c := range chunks {
		out = append(out, f.Write(c)...)
	}
	if r, ok := f.Flush(); ok {
		out = append(out, r)
	}
	return out
}

func TestFramer_Lines(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		want      []Record
		wantLines int
	}{
		{
			name:      "two lines",
			input:     "a\nb\n",
			want:      []Record{{1, "a"}, {2, "b"}},
			wantLines: 2,
		},
		{
			name:      "unterminated tail",
			input:     "a\nb",
			want:      []Record{{1, "a"}, {2, "b"}},
			wantLines: 2,
		},
		{
			name:      "blank lines counted",
			input:     "a\n\n   \nb\n",
			want:      []Record{{1, "a"}, {4, "b"}},
			wantLines: 4,
		},
		{
			name:      "crlf",
			input:     "a\r\nb\r\n",
			want:      []Record{{1, "a"}, {2, "b"}},
			wantLines: 2,
		},
		{
			name:      "empty",
			input:     "",
			want:      nil,
			wantLines: 0,
		},
		{
			name:      "whitespace tail",
			input:     "a\n  ",
			want:      []Record{{1, "a"}},
			wantLines: 2,
		},
		{
			name:      "leading bom dropped",
			input:     "\xef\xbb\xbf{\"a\":1}\n",
			want:      []Record{{1, `{"a":1}`}},
			wantLines: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := New()
			got := collect(f, []byte(tt.input))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("records = %#v, want %#v", got, tt.want)
			}
			if f.Line() != tt.wantLines {
				t.Errorf("Line() = %d, want %d", f.Line(), tt.wantLines)
			}
		})
	}
}

func TestFramer_ChunkBoundaries(t *testing.T) {
	input := "{\"text\":\"héllo 世界 🎉\"}\n\n{\"n\":2}\r\nlast"
	whole := collect(New(), []byte(input))

	for size := 1; size <= 7; size++ {
		var chunks [][]byte
		b := []byte(input)
		for len(b) > 0 {
			n := size
			if n > len(b) {
				n = len(b)
			}
			chunks = append(chunks, b[:n])
			b = b[n:]
		}
		got := collect(New(), chunks...)
		if !reflect.DeepEqual(got, whole) {
			t.Errorf("chunk size %d: got %#v, want %#v", size, got, whole)
		}
	}
}

func TestFramer_SplitMultibyte(t *testing.T) {
	euro := []byte("€") // e2 82 ac
	f := New()

	if got := f.Write(append([]byte("x"), euro[:1]...)); len(got) != 0 {
		t.Fatalf("unexpected records %v", got)
	}
	if got := f.Write(euro[1:2]); len(got) != 0 {
		t.Fatalf("unexpected records %v", got)
	}
	got := f.Write(append(euro[2:], '\n'))
	if len(got) != 1 || got[0].Text != "x€" {
		t.Errorf("got %#v, want x€", got)
	}
}

func TestFramer_InvalidBytes(t *testing.T) {
	got := collect(New(), []byte("a\xffb\n"))
	if len(got) != 1 || got[0].Text != "a�b" {
		t.Errorf("got %#v", got)
	}
}

func TestFramer_TruncatedSequenceAtEOF(t *testing.T) {
	got := collect(New(), []byte("ok\xe2\x82"))
	if len(got) != 1 || !strings.HasPrefix(got[0].Text, "ok") || !strings.Contains(got[0].Text, "�") {
		t.Errorf("got %#v", got)
	}
}

func TestFramer_LongLineIsLinear(t *testing.T) {
	const size = 32 << 20
	const chunkSize = 32 << 10

	line := make([]byte, 0, size+64)
	line = append(line, `{"role":"user","content":"data:image/png;base64,`...)
	line = append(line, bytes.Repeat([]byte("A"), size)...)
	line = append(line, "\"}\nnext\n"...)

	f := New()
	var got []Record
	start := time.Now()
	for off := 0; off < len(line); off += chunkSize {
		end := off + chunkSize
		if end > len(line) {
			end = len(line)
		}
		got = append(got, f.Write(line[off:end])...)
	}
	elapsed := time.Since(start)

	if len(got) != 2 {
		t.Fatalf("got %d records, want 2", len(got))
	}
	if len(got[0].Text) != len(line)-len("\nnext\n") || got[1] != (Record{2, "next"}) {
		t.Errorf("records = %d bytes, %+v", len(got[0].Text), got[1])
	}
	// A rescan of the pending line on every chunk takes tens of seconds here.
	if elapsed > 3*time.Second {
		t.Errorf("framing a %d MiB line took %v", size>>20, elapsed)
	}
}

func TestFramer_PendingCompactedAfterNewline(t *testing.T) {
	f := New()
	if recs := f.Write([]byte("abc")); len(recs) != 0 {
		t.Fatalf("unexpected records %v", recs)
	}
	if recs := f.Write([]byte("def\ngh")); !reflect.DeepEqual(recs, []Record{{1, "abcdef"}}) {
		t.Fatalf("records = %v", recs)
	}
	if string(f.pending) != "gh" || f.scanned != 2 {
		t.Errorf("pending = %q, scanned = %d", f.pending, f.scanned)
	}
	if recs := f.Write([]byte("i\n")); !reflect.DeepEqual(recs, []Record{{2, "ghi"}}) {
		t.Errorf("records = %v", recs)
	}
}
