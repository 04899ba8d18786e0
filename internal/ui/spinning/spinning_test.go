package spinning

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// syncBuffer is a bytes.Buffer safe for concurrent use.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSpinning(t *testing.T) {
	Period = time.Millisecond
	var out syncBuffer
	s := New(context.Background(), &out, "Evaluating")
	time.Sleep(20 * time.Millisecond)
	s.Done()
	s.Done() // Calling it twice is fine.
	got := out.String()
	assert.Contains(t, got, "Evaluating |")
	assert.Contains(t, got, "Evaluating done in")
	assert.Contains(t, got, "\033[?25h")
}

func TestSpinningContext(t *testing.T) {
	var out syncBuffer
	ctx, cancel := context.WithCancel(context.Background())
	s := New(ctx, &out, "Loading")
	cancel()
	s.Done()
	assert.Contains(t, out.String(), "Loading done in")
}
