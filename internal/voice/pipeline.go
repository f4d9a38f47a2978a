package voice

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/rcliao/smartlife/internal/assistant"
)

// Deps are the collaborators a pipeline owns for its lifetime.
type Deps struct {
	Recognizer  Recognizer
	Permission  Permission
	Chat        assistant.Chatter
	Synthesizer assistant.Synthesizer
	Player      Player
	Logger      zerolog.Logger
}

// Options tune pipeline behaviour.
type Options struct {
	// Continuous re-enters Listening after each spoken reply until the user
	// says a termination phrase.
	Continuous         bool
	TerminationPhrases []string
	// OnChange receives every state change, in order. It must not call
	// Activate, Speak or Close.
	OnChange func(Snapshot)
	// OnNotice receives failures surfaced to the user.
	OnNotice func(Notice)
	// NewTicker drives word highlighting. Nil uses real time.
	NewTicker func(time.Duration) Ticker
}

// DefaultTerminationPhrases end a continuous conversation.
var DefaultTerminationPhrases = []string{"thank you", "goodbye"}

// Snapshot is the pipeline state exposed to the UI.
type Snapshot struct {
	Seq             uint64   `json:"-"`
	Phase           Phase    `json:"phase"`
	TurnID          string   `json:"turn_id,omitempty"`
	Transcript      string   `json:"transcript,omitempty"`
	Reply           string   `json:"reply,omitempty"`
	Highlight       int      `json:"highlight"`
	Listening       bool     `json:"listening"`
	AwaitingReply   bool     `json:"awaiting_reply"`
	RenderingSpeech bool     `json:"rendering_speech"`
	CanActivate     bool     `json:"can_activate"`
	Active          bool     `json:"active"`
	History         []string `json:"history,omitempty"`
}

// Word returns the highlighted word of the reply, or "" when none is.
func (s Snapshot) Word() string {
	words := Words(s.Reply)
	if s.Highlight < 0 || s.Highlight >= len(words) {
		return ""
	}
	return words[s.Highlight]
}

// Pipeline runs one conversational turn at a time.
type Pipeline struct {
	deps      Deps
	opts      Options
	logger    zerolog.Logger
	phrases   []string
	ctx       context.Context
	cancelAll context.CancelFunc

	mu          sync.Mutex
	phase       Phase
	turnID      string
	transcript  string
	reply       string
	highlight   int
	history     []string
	active      bool
	starting    bool
	closed      bool
	gen         uint64
	seq         uint64
	playback    Playback
	highlighter *Highlighter

	notifyMu  sync.Mutex
	delivered uint64

	wg sync.WaitGroup
}

// New creates an idle pipeline.
func New(deps Deps, opts Options) *Pipeline {
	phrases := opts.TerminationPhrases
	if len(phrases) == 0 {
		phrases = DefaultTerminationPhrases
	}
	normalized := make([]string, 0, len(phrases))
	for _, ph := range phrases {
		if ph = strings.ToLower(strings.TrimSpace(ph)); ph != "" {
			normalized = append(normalized, ph)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Pipeline{
		deps:      deps,
		opts:      opts,
		logger:    deps.Logger.With().Str("component", "voice").Logger(),
		phrases:   normalized,
		ctx:       ctx,
		cancelAll: cancel,
		phase:     PhaseIdle,
		highlight: -1,
	}
}

// Snapshot returns the current state.
func (p *Pipeline) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

func (p *Pipeline) snapshotLocked() Snapshot {
	p.seq++
	return Snapshot{
		Seq:             p.seq,
		Phase:           p.phase,
		TurnID:          p.turnID,
		Transcript:      p.transcript,
		Reply:           p.reply,
		Highlight:       p.highlight,
		Listening:       p.phase == PhaseListening,
		AwaitingReply:   p.phase == PhaseAwaitingReply,
		RenderingSpeech: p.phase == PhaseSynthesizing || p.phase == PhaseSpeaking,
		CanActivate:     p.phase == PhaseIdle && !p.starting && !p.closed,
		Active:          p.active,
		History:         append([]string(nil), p.history...),
	}
}

// notify delivers snapshots to OnChange, dropping any older than one
// already delivered.
func (p *Pipeline) notify(snaps ...Snapshot) {
	if p.opts.OnChange == nil {
		return
	}
	p.notifyMu.Lock()
	defer p.notifyMu.Unlock()
	for _, s := range snaps {
		if s.Seq <= p.delivered {
			continue
		}
		p.delivered = s.Seq
		p.opts.OnChange(s)
	}
}

func (p *Pipeline) raise(n Notice) {
	p.logger.Warn().Err(n.Err).Str("stage", string(n.Stage)).Str("turn", n.TurnID).Msg("turn failed")
	if p.opts.OnNotice != nil {
		p.opts.OnNotice(n)
	}
}

// Activate handles a mic press. It starts a listening turn and returns true
// only when the pipeline is idle and the microphone is permitted; otherwise
// nothing changes. ctx bounds the permission request and the turn.
func (p *Pipeline) Activate(ctx context.Context) bool {
	p.mu.Lock()
	if p.closed || p.phase != PhaseIdle || p.starting {
		p.mu.Unlock()
		return false
	}
	p.starting = true
	p.mu.Unlock()

	granted, err := p.ensurePermission(ctx)

	p.mu.Lock()
	p.starting = false
	if p.closed {
		p.mu.Unlock()
		return false
	}
	if !granted {
		p.mu.Unlock()
		if err == nil {
			err = ErrPermissionDenied
		}
		p.raise(Notice{Stage: StagePermission, Err: err, Message: noticeMessage(StagePermission, ErrPermissionDenied)})
		return false
	}

	p.active = true
	turnCtx, release, gen := p.beginLocked(ctx)
	snap := p.enterListeningLocked()
	p.wg.Add(1)
	p.mu.Unlock()
	p.notify(snap)

	go func() {
		defer p.wg.Done()
		defer release()
		p.conversation(turnCtx, gen)
	}()
	return true
}

func (p *Pipeline) ensurePermission(ctx context.Context) (bool, error) {
	if p.deps.Permission == nil || p.deps.Permission.Granted() {
		return true, nil
	}
	ok, err := p.deps.Permission.Request(ctx)
	if err != nil {
		return false, err
	}
	return ok, nil
}

// Speak renders text without listening first, as when greeting the user.
// The pipeline returns to idle afterwards.
func (p *Pipeline) Speak(ctx context.Context, text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}

	p.mu.Lock()
	if p.closed || p.phase != PhaseIdle || p.starting {
		p.mu.Unlock()
		return false
	}
	turnCtx, release, gen := p.beginLocked(ctx)
	p.turnID = ulid.Make().String()
	p.enterSynthesizingLocked(text)
	snap := p.snapshotLocked()
	p.wg.Add(1)
	p.mu.Unlock()
	p.notify(snap)

	go func() {
		defer p.wg.Done()
		defer release()
		if p.render(turnCtx, gen, text) {
			p.finish(gen, false)
		}
	}()
	return true
}

// beginLocked starts a new generation with a context that ends when either
// ctx or the pipeline does.
func (p *Pipeline) beginLocked(ctx context.Context) (context.Context, func(), uint64) {
	p.gen++
	turnCtx, cancel := context.WithCancel(p.ctx)
	stop := context.AfterFunc(ctx, cancel)
	return turnCtx, func() {
		stop()
		cancel()
	}, p.gen
}

func (p *Pipeline) enterListeningLocked() Snapshot {
	p.turnID = ulid.Make().String()
	p.transcript = ""
	p.highlight = -1
	p.phase = PhaseListening
	return p.snapshotLocked()
}

// conversation runs turns until one ends the session.
func (p *Pipeline) conversation(ctx context.Context, gen uint64) {
	for {
		farewell, ok := p.turn(ctx, gen)
		if !ok {
			return
		}
		if !p.finish(gen, !farewell) {
			return
		}
	}
}

// turn runs one listening turn from Listening through Speaking.
func (p *Pipeline) turn(ctx context.Context, gen uint64) (farewell, ok bool) {
	text, err := p.deps.Recognizer.Listen(ctx)
	text = strings.TrimSpace(text)
	if err == nil && text == "" {
		err = ErrRecognitionEmpty
	}
	if err != nil {
		if !errors.Is(err, ErrRecognitionEmpty) {
			err = &TransientError{Stage: StageListen, Err: err}
		}
		p.fail(ctx, gen, StageListen, err)
		return false, false
	}

	if !p.update(gen, "", func() {
		p.transcript = text
		p.history = append(p.history, "You: "+text)
		p.phase = PhaseAwaitingReply
	}) {
		return false, false
	}

	reply, err := p.deps.Chat.Reply(ctx, text)
	if err != nil {
		p.fail(ctx, gen, StageChat, &TransientError{Stage: StageChat, Err: err})
		return false, false
	}

	if !p.update(gen, "", func() { p.enterSynthesizingLocked(reply) }) {
		return false, false
	}
	if !p.render(ctx, gen, reply) {
		return false, false
	}
	return p.isFarewell(text), true
}

func (p *Pipeline) enterSynthesizingLocked(text string) {
	p.reply = text
	p.highlight = -1
	p.history = append(p.history, "Assistant: "+text)
	p.phase = PhaseSynthesizing
}

// render synthesizes text and plays it, highlighting words as it goes.
func (p *Pipeline) render(ctx context.Context, gen uint64, text string) bool {
	speech, err := p.deps.Synthesizer.Synthesize(ctx, text)
	if err != nil {
		p.fail(ctx, gen, StageSynthesize, &TransientError{Stage: StageSynthesize, Err: err})
		return false
	}
	pb, err := p.deps.Player.Load(ctx, speech.Audio, speech.Format)
	if err != nil {
		p.fail(ctx, gen, StageSynthesize, &TransientError{Stage: StageSynthesize, Err: err})
		return false
	}

	hl := NewHighlighter(p.opts.NewTicker)
	p.mu.Lock()
	if p.closed || gen != p.gen {
		p.mu.Unlock()
		pb.Close()
		return false
	}
	prev := p.playback
	p.playback = pb
	p.highlighter = hl
	p.phase = PhaseSpeaking
	snap := p.snapshotLocked()
	p.mu.Unlock()
	if prev != nil {
		prev.Close()
	}
	p.notify(snap)

	p.logger.Debug().Str("turn", snap.TurnID).Dur("duration", pb.Duration()).Msg("speaking")
	hl.Start(ctx, text, pb.Duration(), func(i int) {
		p.update(gen, PhaseSpeaking, func() { p.highlight = i })
	})
	playErr := pb.Play(ctx)
	hl.Stop()

	p.mu.Lock()
	owned := p.playback == pb
	if owned {
		p.playback = nil
		p.highlighter = nil
	}
	p.mu.Unlock()
	if owned {
		pb.Close()
	}

	if playErr != nil {
		p.fail(ctx, gen, StagePlayback, &TransientError{Stage: StagePlayback, Err: playErr})
		return false
	}
	return true
}

// finish ends a turn at Idle. When relisten is set and the session is
// continuous it moves straight on to a new Listening turn and reports true.
func (p *Pipeline) finish(gen uint64, relisten bool) bool {
	p.mu.Lock()
	if p.closed || gen != p.gen {
		p.mu.Unlock()
		return false
	}
	p.phase = PhaseIdle
	p.highlight = -1
	next := relisten && p.active && p.opts.Continuous
	if !next {
		p.active = false
	}
	idle := p.snapshotLocked()
	if !next {
		p.mu.Unlock()
		p.notify(idle)
		return false
	}
	listening := p.enterListeningLocked()
	p.mu.Unlock()
	p.notify(idle, listening)
	return true
}

// update applies fn when gen is current and, if want is set, the pipeline
// is in that phase. It reports whether fn ran.
func (p *Pipeline) update(gen uint64, want Phase, fn func()) bool {
	p.mu.Lock()
	if p.closed || gen != p.gen || (want != "" && p.phase != want) {
		p.mu.Unlock()
		return false
	}
	fn()
	snap := p.snapshotLocked()
	p.mu.Unlock()
	p.notify(snap)
	return true
}

// fail returns the pipeline to Idle and surfaces err. Failures from a
// stale generation are dropped; a cancelled turn resets without a notice.
func (p *Pipeline) fail(ctx context.Context, gen uint64, stage Stage, err error) {
	p.mu.Lock()
	if p.closed || gen != p.gen {
		p.mu.Unlock()
		return
	}
	p.phase = PhaseIdle
	p.highlight = -1
	p.active = false
	turn := p.turnID
	snap := p.snapshotLocked()
	p.mu.Unlock()

	p.notify(snap)
	if ctx.Err() != nil {
		return
	}
	p.raise(Notice{TurnID: turn, Stage: stage, Err: err, Message: noticeMessage(stage, err)})
}

func (p *Pipeline) isFarewell(transcript string) bool {
	lower := strings.ToLower(transcript)
	for _, ph := range p.phrases {
		if strings.Contains(lower, ph) {
			return true
		}
	}
	return false
}

// Close tears the pipeline down: playback stops and is released, the
// highlighter and any running turn are cancelled and the recognizer is
// closed. It waits for the turn goroutine and is safe to call twice.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.gen++
	p.phase = PhaseIdle
	p.highlight = -1
	p.active = false
	pb, hl := p.playback, p.highlighter
	p.playback, p.highlighter = nil, nil
	p.mu.Unlock()

	p.cancelAll()
	if hl != nil {
		hl.Stop()
	}
	if pb != nil {
		pb.Close()
	}

	var err error
	if p.deps.Recognizer != nil {
		err = p.deps.Recognizer.Close()
	}
	p.wg.Wait()
	p.logger.Debug().Msg("pipeline closed")
	return err
}
