package logging

import (
	"bytes"
	"fmt"
	"testing"
)

type recordingSink struct {
	writes []string
}

func (r *recordingSink) Write(p []byte) (int, error) {
	r.writes = append(r.writes, string(p))
	return len(p), nil
}

func TestUnbufferedWriterPassesEveryWriteThrough(t *testing.T) {
	sink := &recordingSink{}
	w := NewWriter(sink, true)

	for i := 0; i < 5; i++ {
		if _, err := fmt.Fprintf(w, "line %d\n", i); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
		if len(sink.writes) != i+1 {
			t.Fatalf("write %d not delivered immediately, sink has %d writes", i, len(sink.writes))
		}
	}

	for i, got := range sink.writes {
		want := fmt.Sprintf("line %d\n", i)
		if got != want {
			t.Fatalf("write %d out of order: want %q got %q", i, want, got)
		}
	}
}

func TestUnbufferedWriterDeliversPartialLines(t *testing.T) {
	sink := &recordingSink{}
	w := NewWriter(sink, true)

	if _, err := w.Write([]byte("no newline yet")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if len(sink.writes) != 1 {
		t.Fatalf("expected partial write delivered immediately, sink has %d writes", len(sink.writes))
	}
}

func TestBufferedWriterHoldsUntilNewline(t *testing.T) {
	sink := &recordingSink{}
	w := NewWriter(sink, false)

	if _, err := w.Write([]byte("partial")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if len(sink.writes) != 0 {
		t.Fatalf("expected partial line to be held, sink has %d writes", len(sink.writes))
	}

	if _, err := w.Write([]byte(" done\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	joined := ""
	for _, chunk := range sink.writes {
		joined += chunk
	}
	if joined != "partial done\n" {
		t.Fatalf("unexpected flushed content: %q", joined)
	}
}

func TestBufferedWriterPreservesLineOrder(t *testing.T) {
	var sink bytes.Buffer
	w := NewWriter(&sink, false)

	for i := 0; i < 4; i++ {
		if _, err := fmt.Fprintf(w, "line %d\n", i); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}

	want := "line 0\nline 1\nline 2\nline 3\n"
	if sink.String() != want {
		t.Fatalf("order not preserved:\nwant: %q\ngot:  %q", want, sink.String())
	}
}

func TestParseLevelTable(t *testing.T) {
	cases := []struct {
		raw string
		ok  bool
	}{
		{"", false},
		{"debug", true},
		{"WARN", true},
		{"off", true},
		{"loud", false},
	}
	for _, tc := range cases {
		if _, ok := parseLevel(tc.raw); ok != tc.ok {
			t.Fatalf("parseLevel(%q) ok=%v want %v", tc.raw, ok, tc.ok)
		}
	}
}
