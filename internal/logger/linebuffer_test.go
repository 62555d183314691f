package logger

import (
	"fmt"
	"testing"
)

func TestLineBuffer_AppendAndLines(t *testing.T) {
	buf := NewLineBuffer()

	buf.Append("stdout", "first")
	buf.Append("stderr", "second")

	lines := buf.Lines()
	if len(lines) != 2 {
		t.Fatalf("Lines() len = %d, want 2", len(lines))
	}
	if lines[0].Text != "first" || lines[0].Stream != "stdout" {
		t.Errorf("lines[0] = %q/%q, want first/stdout", lines[0].Text, lines[0].Stream)
	}
	if lines[1].Text != "second" || lines[1].Stream != "stderr" {
		t.Errorf("lines[1] = %q/%q, want second/stderr", lines[1].Text, lines[1].Stream)
	}
}

func TestLineBuffer_TrimsToMostRecent(t *testing.T) {
	buf := NewLineBuffer()

	for i := 1; i <= 150; i++ {
		buf.Append("stdout", fmt.Sprintf("line %d", i))
	}

	lines := buf.Lines()
	if len(lines) != 50 {
		t.Fatalf("Lines() len after 150 appends = %d, want 50", len(lines))
	}

	// The survivors must be the most recent lines in original order.
	for i, line := range lines {
		want := fmt.Sprintf("line %d", 101+i)
		if line.Text != want {
			t.Errorf("lines[%d] = %q, want %q", i, line.Text, want)
		}
	}
}

func TestLineBuffer_NeverExceedsCapacity(t *testing.T) {
	buf := NewLineBuffer()

	for i := 0; i < 1000; i++ {
		buf.Append("stdout", "x")
		if n := buf.Len(); n > lineBufferCapacity {
			t.Fatalf("Len() = %d after append %d, exceeds capacity %d", n, i, lineBufferCapacity)
		}
	}
}

func TestLineBuffer_Clear(t *testing.T) {
	buf := NewLineBuffer()
	buf.Append("stdout", "x")
	buf.Clear()

	if buf.Len() != 0 {
		t.Errorf("Len() after Clear = %d, want 0", buf.Len())
	}
}
