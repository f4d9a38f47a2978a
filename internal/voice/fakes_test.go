package voice

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/rcliao/smartlife/internal/assistant"
)

type recResult struct {
	text string
	err  error
}

type fakeRecognizer struct {
	results chan recResult
	listens atomic.Int32
	closes  atomic.Int32
}

func newFakeRecognizer(results ...recResult) *fakeRecognizer {
	r := &fakeRecognizer{results: make(chan recResult, 16)}
	for _, res := range results {
		r.results <- res
	}
	return r
}

func (r *fakeRecognizer) Listen(ctx context.Context) (string, error) {
	r.listens.Add(1)
	select {
	case res := <-r.results:
		return res.text, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (r *fakeRecognizer) Close() error {
	r.closes.Add(1)
	return nil
}

type fakePermission struct {
	granted  bool
	allow    bool
	requests atomic.Int32
}

func (p *fakePermission) Granted() bool { return p.granted }

func (p *fakePermission) Request(ctx context.Context) (bool, error) {
	p.requests.Add(1)
	if p.allow {
		p.granted = true
	}
	return p.allow, nil
}

type fakeChat struct {
	fn    func(ctx context.Context, text string) (string, error)
	calls atomic.Int32
}

func (c *fakeChat) Reply(ctx context.Context, text string) (string, error) {
	c.calls.Add(1)
	return c.fn(ctx, text)
}

type fakeSynth struct {
	err   error
	calls atomic.Int32
}

func (s *fakeSynth) Synthesize(ctx context.Context, text string) (*assistant.Speech, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return &assistant.Speech{Audio: []byte("ID3" + text), Format: "mp3"}, nil
}

type fakePlayback struct {
	dur     time.Duration
	release chan struct{}
	playing chan struct{}
	closes  atomic.Int32
}

func newPlayback(dur time.Duration, instant bool) *fakePlayback {
	pb := &fakePlayback{dur: dur, release: make(chan struct{}), playing: make(chan struct{}, 1)}
	if instant {
		close(pb.release)
	}
	return pb
}

func (pb *fakePlayback) Duration() time.Duration { return pb.dur }

func (pb *fakePlayback) Play(ctx context.Context) error {
	pb.playing <- struct{}{}
	select {
	case <-pb.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (pb *fakePlayback) Close() error {
	pb.closes.Add(1)
	return nil
}

type fakePlayer struct {
	mu        sync.Mutex
	playbacks []*fakePlayback
	next      func() *fakePlayback
	err       error
}

func (p *fakePlayer) Load(ctx context.Context, audio []byte, format string) (Playback, error) {
	if p.err != nil {
		return nil, p.err
	}
	pb := p.next()
	p.mu.Lock()
	p.playbacks = append(p.playbacks, pb)
	p.mu.Unlock()
	return pb, nil
}

func (p *fakePlayer) loaded() []*fakePlayback {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*fakePlayback(nil), p.playbacks...)
}

type manualTicker struct {
	c chan time.Time
}

func (m *manualTicker) C() <-chan time.Time { return m.c }
func (m *manualTicker) Stop()               {}

type tickerFactory struct {
	mu        sync.Mutex
	intervals []time.Duration
	tickers   chan *manualTicker
}

func newTickerFactory() *tickerFactory {
	return &tickerFactory{tickers: make(chan *manualTicker, 16)}
}

func (f *tickerFactory) New(d time.Duration) Ticker {
	f.mu.Lock()
	f.intervals = append(f.intervals, d)
	f.mu.Unlock()
	t := &manualTicker{c: make(chan time.Time)}
	f.tickers <- t
	return t
}

func (f *tickerFactory) next(t *testing.T) *manualTicker {
	t.Helper()
	select {
	case tk := <-f.tickers:
		return tk
	case <-time.After(2 * time.Second):
		t.Fatal("highlighter never started")
	}
	return nil
}

func (m *manualTicker) tick(t *testing.T) {
	t.Helper()
	select {
	case m.c <- time.Now():
	case <-time.After(2 * time.Second):
		t.Fatal("highlighter not waiting for a tick")
	}
}

type recorder struct {
	mu      sync.Mutex
	snaps   []Snapshot
	notices []Notice
}

func (r *recorder) onChange(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, s)
}

func (r *recorder) onNotice(n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

// phases returns the phase sequence with consecutive repeats collapsed.
func (r *recorder) phases() []Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Phase
	for _, s := range r.snaps {
		if len(out) == 0 || out[len(out)-1] != s.Phase {
			out = append(out, s.Phase)
		}
	}
	return out
}

func (r *recorder) highlights() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []int
	for _, s := range r.snaps {
		if s.Phase != PhaseSpeaking {
			continue
		}
		if len(out) == 0 || out[len(out)-1] != s.Highlight {
			out = append(out, s.Highlight)
		}
	}
	return out
}

func (r *recorder) noticeList() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notice(nil), r.notices...)
}

type harness struct {
	p       *Pipeline
	rec     *recorder
	recog   *fakeRecognizer
	perm    *fakePermission
	chat    *fakeChat
	synth   *fakeSynth
	player  *fakePlayer
	tickers *tickerFactory
}

func newHarness(t *testing.T, continuous bool, recog *fakeRecognizer, chat func(context.Context, string) (string, error), next func() *fakePlayback) *harness {
	t.Helper()
	h := &harness{
		rec:     &recorder{},
		recog:   recog,
		perm:    &fakePermission{granted: true},
		chat:    &fakeChat{fn: chat},
		synth:   &fakeSynth{},
		player:  &fakePlayer{next: next},
		tickers: newTickerFactory(),
	}
	h.p = New(Deps{
		Recognizer:  h.recog,
		Permission:  h.perm,
		Chat:        h.chat,
		Synthesizer: h.synth,
		Player:      h.player,
		Logger:      zerolog.Nop(),
	}, Options{
		Continuous: continuous,
		OnChange:   h.rec.onChange,
		OnNotice:   h.rec.onNotice,
		NewTicker:  h.tickers.New,
	})
	t.Cleanup(func() { h.p.Close() })
	return h
}

func reply(text string) func(context.Context, string) (string, error) {
	return func(context.Context, string) (string, error) { return text, nil }
}

func instantPlayback() *fakePlayback { return newPlayback(0, true) }
