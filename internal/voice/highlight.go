package voice

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Words splits reply text into the words that get highlighted.
func Words(text string) []string {
	return strings.Fields(text)
}

// WordInterval returns how long each word stays highlighted. Zero means
// no highlighting.
func WordInterval(total time.Duration, words int) time.Duration {
	if words <= 0 || total <= 0 {
		return 0
	}
	return total / time.Duration(words)
}

// Ticker delivers highlight advances.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct {
	t *time.Ticker
}

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

// NewTimeTicker wraps time.NewTicker.
func NewTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

// Highlighter walks the words of a reply in step with playback.
type Highlighter struct {
	newTicker func(time.Duration) Ticker

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewHighlighter returns a highlighter. A nil newTicker uses real time.
func NewHighlighter(newTicker func(time.Duration) Ticker) *Highlighter {
	if newTicker == nil {
		newTicker = NewTimeTicker
	}
	return &Highlighter{newTicker: newTicker}
}

// Start highlights word 0, advances one word per interval and finally sets
// -1. It reports false when there is nothing to highlight. Any previous run
// is stopped first.
func (h *Highlighter) Start(ctx context.Context, text string, total time.Duration, set func(int)) bool {
	h.Stop()

	n := len(Words(text))
	interval := WordInterval(total, n)
	if interval <= 0 {
		return false
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	h.mu.Lock()
	h.cancel, h.done = cancel, done
	h.mu.Unlock()

	go func() {
		defer close(done)
		t := h.newTicker(interval)
		defer t.Stop()

		for i := 0; i < n; i++ {
			if ctx.Err() != nil {
				return
			}
			set(i)
			select {
			case <-ctx.Done():
				return
			case <-t.C():
			}
		}
		if ctx.Err() == nil {
			set(-1)
		}
	}()
	return true
}

// Stop cancels a running highlight and waits for it to exit. set is never
// called after Stop returns.
func (h *Highlighter) Stop() {
	h.mu.Lock()
	cancel, done := h.cancel, h.done
	h.cancel, h.done = nil, nil
	h.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}
