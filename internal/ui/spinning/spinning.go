// Package spinning provides a friendly spinning symbol to display while the program is busy (evaluating
// agents, loading checkpoints), and a graceful handling of Ctrl+C.
package spinning

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"k8s.io/klog/v2"
)

// Spinning displays a spinning symbol until Done is called.
type Spinning struct {
	wg     sync.WaitGroup
	cancel func()
}

var (
	// Theme is the sequence of symbols cycled by the spinner. It can be changed before calling New.
	Theme = []rune(`|/-\`)

	// Period between updates of the symbol.
	Period = 250 * time.Millisecond
)

// SafeInterrupt will capture SigInt (Ctrl+C) and SigTerm and call the provided onInterrupt.
// If the program hasn't exited after gracePeriod, it resets the terminal and exits.
func SafeInterrupt(onInterrupt func(), gracePeriod time.Duration) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigChan
		fmt.Println()
		klog.Errorf("Got interrupted (signal %q), shutting down... (%s)", s, gracePeriod)
		if onInterrupt != nil {
			go onInterrupt()
		}

		// Wait for gracePeriod before exiting.
		time.Sleep(gracePeriod)
		Reset(os.Stdout)
		klog.Fatalf("Graceful shutting down %s period expired, exiting.", gracePeriod)
	}()
}

// Reset terminal: make cursor visible, restore default terminal colors.
func Reset(w io.Writer) {
	_, _ = fmt.Fprint(w, "\033[?25h\033[39;49;0m\n")
}

// New starts a spinning display, after the message, that runs on a separate goroutine.
// It stops when ctx is done or Spinning.Done is called. If w is nil, os.Stdout is used.
func New(ctx context.Context, w io.Writer, message string) *Spinning {
	if w == nil {
		w = os.Stdout
	}
	theme := Theme
	s := &Spinning{}
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(Period)
		defer ticker.Stop()
		_, _ = fmt.Fprint(w, "\033[?25l")             // Hide cursor.
		defer func() { _, _ = fmt.Fprint(w, "\033[?25h") }() // Restore cursor.

		start := time.Now()
		for idx := 0; ; idx = (idx + 1) % len(theme) {
			_, _ = fmt.Fprintf(w, "\r%s %c %s\x1b[0K", message, theme[idx], time.Since(start).Round(time.Second))
			select {
			case <-ctx.Done():
				_, _ = fmt.Fprintf(w, "\r%s done in %s\x1b[0K\n", message, time.Since(start).Round(time.Millisecond))
				return
			case <-ticker.C:
				// continue
			}
		}
	}()
	return s
}

// Done stops the spinning display and waits for it to clear.
func (s *Spinning) Done() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.wg.Wait()
}
