package logger

import (
	"fmt"
	"sync"
	"time"
)

const (
	// lineBufferCapacity is the number of lines a process buffer holds
	// before it is trimmed.
	lineBufferCapacity = 100

	// lineBufferKeep is the number of most recent lines kept after a trim.
	lineBufferKeep = 50
)

// Line is a single captured output line from a managed process or job.
type Line struct {
	Timestamp time.Time `json:"timestamp"`
	Stream    string    `json:"stream"` // "stdout", "stderr" or "system"
	Text      string    `json:"text"`
}

// String formats the line the way it appears in log dumps.
func (l Line) String() string {
	return fmt.Sprintf("[%s] [%s] %s", l.Timestamp.Format(time.RFC3339), l.Stream, l.Text)
}

// LineBuffer is an append-only buffer of process output lines. When the
// buffer reaches capacity it is trimmed down to the most recent lines,
// preserving relative order. This keeps memory bounded for chatty
// long-running backends without dropping the tail of the output.
type LineBuffer struct {
	lines    []Line
	capacity int
	keep     int
	mu       sync.RWMutex
}

// NewLineBuffer creates a line buffer with the default capacity.
func NewLineBuffer() *LineBuffer {
	return &LineBuffer{
		lines:    make([]Line, 0, lineBufferCapacity),
		capacity: lineBufferCapacity,
		keep:     lineBufferKeep,
	}
}

// Append adds a line to the buffer, trimming to the most recent entries
// if the buffer is at capacity.
func (b *LineBuffer) Append(stream, text string) {
	b.AppendLine(Line{Timestamp: time.Now(), Stream: stream, Text: text})
}

// AppendLine adds a pre-built line to the buffer.
func (b *LineBuffer) AppendLine(line Line) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lines = append(b.lines, line)
	if len(b.lines) >= b.capacity {
		kept := b.lines[len(b.lines)-b.keep:]
		b.lines = append(make([]Line, 0, b.capacity), kept...)
	}
}

// Lines returns a snapshot of the buffered lines, oldest first.
func (b *LineBuffer) Lines() []Line {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Line, len(b.lines))
	copy(out, b.lines)
	return out
}

// Len returns the current number of buffered lines.
func (b *LineBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.lines)
}

// Clear removes all buffered lines.
func (b *LineBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = b.lines[:0]
}
