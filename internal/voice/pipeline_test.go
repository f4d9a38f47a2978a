package voice

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/smartlife/internal/assistant"
)

const waitFor = 2 * time.Second
const poll = 5 * time.Millisecond

func waitPhase(t *testing.T, p *Pipeline, want Phase) {
	t.Helper()
	require.Eventually(t, func() bool { return p.Snapshot().Phase == want }, waitFor, poll,
		"pipeline never reached %s", want)
}

func TestTurnHighlightsWordsInStepWithPlayback(t *testing.T) {
	var pb *fakePlayback
	h := newHarness(t, false,
		newFakeRecognizer(recResult{text: "play something happy"}),
		reply("Sure, playing something upbeat now!"),
		func() *fakePlayback {
			pb = newPlayback(4000*time.Millisecond, false)
			return pb
		})

	require.True(t, h.p.Activate(context.Background()))

	tk := h.tickers.next(t)
	waitPhase(t, h.p, PhaseSpeaking)
	assert.Equal(t, []time.Duration{800 * time.Millisecond}, h.tickers.intervals)

	snap := h.p.Snapshot()
	assert.Equal(t, "play something happy", snap.Transcript)
	assert.Equal(t, "Sure, playing something upbeat now!", snap.Reply)
	assert.True(t, snap.RenderingSpeech)
	assert.False(t, snap.CanActivate)
	require.Eventually(t, func() bool { return h.p.Snapshot().Highlight == 0 }, waitFor, poll)
	assert.Equal(t, "Sure,", h.p.Snapshot().Word())

	for k := 1; k <= 5; k++ {
		tk.tick(t)
		want := k
		if k == 5 {
			want = -1
		}
		require.Eventually(t, func() bool { return h.p.Snapshot().Highlight == want }, waitFor, poll, "word %d", k)
	}

	close(pb.release)
	waitPhase(t, h.p, PhaseIdle)

	final := h.p.Snapshot()
	assert.Equal(t, -1, final.Highlight)
	assert.True(t, final.CanActivate)
	assert.Equal(t, []Phase{PhaseListening, PhaseAwaitingReply, PhaseSynthesizing, PhaseSpeaking, PhaseIdle}, h.rec.phases())
	assert.Equal(t, []int{-1, 0, 1, 2, 3, 4, -1}, h.rec.highlights())
	assert.Equal(t, []string{"You: play something happy", "Assistant: Sure, playing something upbeat now!"}, final.History)
	assert.Empty(t, h.rec.noticeList())
	assert.Equal(t, int32(1), pb.closes.Load(), "playback released after completion")
}

func TestRecognizerErrorReturnsToIdle(t *testing.T) {
	h := newHarness(t, true,
		newFakeRecognizer(recResult{err: errors.New("ERROR_NO_MATCH")}),
		reply("unused"),
		instantPlayback)

	require.True(t, h.p.Activate(context.Background()))
	require.Eventually(t, func() bool { return len(h.rec.noticeList()) == 1 }, waitFor, poll)

	assert.Equal(t, []Phase{PhaseListening, PhaseIdle}, h.rec.phases())
	assert.Equal(t, int32(0), h.chat.calls.Load())

	n := h.rec.noticeList()[0]
	assert.Equal(t, StageListen, n.Stage)
	var terr *TransientError
	assert.True(t, errors.As(n.Err, &terr))
	assert.NotEmpty(t, n.Message)
	assert.Equal(t, int32(1), h.recog.listens.Load(), "no automatic retry")
}

func TestEmptyRecognitionIsReported(t *testing.T) {
	h := newHarness(t, false,
		newFakeRecognizer(recResult{text: "   "}),
		reply("unused"),
		instantPlayback)

	require.True(t, h.p.Activate(context.Background()))
	require.Eventually(t, func() bool { return len(h.rec.noticeList()) == 1 }, waitFor, poll)

	n := h.rec.noticeList()[0]
	assert.ErrorIs(t, n.Err, ErrRecognitionEmpty)
	assert.Equal(t, "Sorry, I didn't catch that.", n.Message)
	assert.Equal(t, PhaseIdle, h.p.Snapshot().Phase)
}

func TestChatFailureKeepsPreviousReply(t *testing.T) {
	calls := 0
	h := newHarness(t, false,
		newFakeRecognizer(recResult{text: "hello"}, recResult{text: "tell me more"}),
		func(context.Context, string) (string, error) {
			calls++
			if calls == 1 {
				return "Hi there!", nil
			}
			return "", &assistant.APIError{Provider: "openai", Status: 500, Body: "boom"}
		},
		instantPlayback)

	require.True(t, h.p.Activate(context.Background()))
	require.Eventually(t, func() bool {
		s := h.p.Snapshot()
		return s.Phase == PhaseIdle && s.Reply == "Hi there!"
	}, waitFor, poll)

	require.True(t, h.p.Activate(context.Background()))
	require.Eventually(t, func() bool { return len(h.rec.noticeList()) == 1 }, waitFor, poll)

	snap := h.p.Snapshot()
	assert.Equal(t, PhaseIdle, snap.Phase)
	assert.Equal(t, "Hi there!", snap.Reply)
	assert.Equal(t, "tell me more", snap.Transcript)

	n := h.rec.noticeList()[0]
	assert.Equal(t, StageChat, n.Stage)
	var apiErr *assistant.APIError
	assert.True(t, errors.As(n.Err, &apiErr))

	phases := h.rec.phases()
	assert.Equal(t, []Phase{PhaseListening, PhaseAwaitingReply, PhaseIdle}, phases[len(phases)-3:])
	assert.Equal(t, int32(1), h.synth.calls.Load())
}

func TestSynthesisFailureReturnsToIdle(t *testing.T) {
	h := newHarness(t, false,
		newFakeRecognizer(recResult{text: "hello"}),
		reply("Hi"),
		instantPlayback)
	h.synth.err = errors.New("quota exceeded")

	require.True(t, h.p.Activate(context.Background()))
	require.Eventually(t, func() bool { return len(h.rec.noticeList()) == 1 }, waitFor, poll)
	assert.Equal(t, StageSynthesize, h.rec.noticeList()[0].Stage)
	assert.Equal(t, PhaseIdle, h.p.Snapshot().Phase)
	assert.Empty(t, h.player.loaded())
}

func TestUndecodableAudioReturnsToIdle(t *testing.T) {
	h := newHarness(t, false,
		newFakeRecognizer(recResult{text: "hello"}),
		reply("Hi"),
		instantPlayback)
	h.player.err = errors.New("invalid data found when processing input")

	require.True(t, h.p.Activate(context.Background()))
	require.Eventually(t, func() bool { return len(h.rec.noticeList()) == 1 }, waitFor, poll)
	assert.Equal(t, StageSynthesize, h.rec.noticeList()[0].Stage)
	assert.NotContains(t, h.rec.phases(), PhaseSpeaking)
}

func TestActivateIgnoredWhileSpeaking(t *testing.T) {
	var pb *fakePlayback
	h := newHarness(t, false,
		newFakeRecognizer(recResult{text: "hello"}, recResult{text: "again"}),
		reply("Hi"),
		func() *fakePlayback {
			pb = newPlayback(time.Second, false)
			return pb
		})

	require.True(t, h.p.Activate(context.Background()))
	waitPhase(t, h.p, PhaseSpeaking)
	before := h.p.Snapshot()

	assert.False(t, h.p.Activate(context.Background()))
	assert.False(t, h.p.Speak(context.Background(), "interrupt"))
	after := h.p.Snapshot()
	assert.Equal(t, PhaseSpeaking, after.Phase)
	assert.Equal(t, before.TurnID, after.TurnID)
	assert.Equal(t, int32(1), h.recog.listens.Load(), "no duplicate recognizer start")

	close(pb.release)
	waitPhase(t, h.p, PhaseIdle)
}

func TestPermissionDenied(t *testing.T) {
	h := newHarness(t, false, newFakeRecognizer(), reply("unused"), instantPlayback)
	h.perm.granted = false
	h.perm.allow = false

	assert.False(t, h.p.Activate(context.Background()))
	assert.Equal(t, int32(1), h.perm.requests.Load())
	assert.Equal(t, PhaseIdle, h.p.Snapshot().Phase)
	assert.Equal(t, int32(0), h.recog.listens.Load())

	notices := h.rec.noticeList()
	require.Len(t, notices, 1)
	assert.Equal(t, StagePermission, notices[0].Stage)
	assert.ErrorIs(t, notices[0].Err, ErrPermissionDenied)
}

func TestPermissionGrantedOnRequest(t *testing.T) {
	h := newHarness(t, false,
		newFakeRecognizer(recResult{text: "hello"}),
		reply("Hi"),
		instantPlayback)
	h.perm.granted = false
	h.perm.allow = true

	require.True(t, h.p.Activate(context.Background()))
	assert.Equal(t, int32(1), h.perm.requests.Load())
	require.Eventually(t, func() bool { return h.p.Snapshot().Reply == "Hi" }, waitFor, poll)
}

func TestContinuousModeStopsOnTerminationPhrase(t *testing.T) {
	h := newHarness(t, true,
		newFakeRecognizer(recResult{text: "hello"}, recResult{text: "Thank you so much"}),
		func(_ context.Context, text string) (string, error) { return "re: " + text, nil },
		instantPlayback)

	require.True(t, h.p.Activate(context.Background()))
	require.Eventually(t, func() bool {
		s := h.p.Snapshot()
		return s.Phase == PhaseIdle && s.Reply == "re: Thank you so much"
	}, waitFor, poll)

	// The farewell turn is still answered, then the session ends.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(2), h.recog.listens.Load())
	assert.Equal(t, int32(2), h.synth.calls.Load())
	snap := h.p.Snapshot()
	assert.False(t, snap.Active)
	assert.True(t, snap.CanActivate)
	assert.Equal(t, []string{
		"You: hello", "Assistant: re: hello",
		"You: Thank you so much", "Assistant: re: Thank you so much",
	}, snap.History)
}

func TestSingleShotDoesNotRelisten(t *testing.T) {
	h := newHarness(t, false,
		newFakeRecognizer(recResult{text: "hello"}, recResult{text: "more"}),
		reply("Hi"),
		instantPlayback)

	require.True(t, h.p.Activate(context.Background()))
	require.Eventually(t, func() bool {
		s := h.p.Snapshot()
		return s.Phase == PhaseIdle && s.Reply == "Hi"
	}, waitFor, poll)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), h.recog.listens.Load())
}

func TestSpeakGreeting(t *testing.T) {
	h := newHarness(t, true, newFakeRecognizer(), reply("unused"), instantPlayback)

	require.True(t, h.p.Speak(context.Background(), "Hello! I'm your assistant."))
	require.Eventually(t, func() bool { return len(h.rec.phases()) == 3 }, waitFor, poll)

	assert.Equal(t, []Phase{PhaseSynthesizing, PhaseSpeaking, PhaseIdle}, h.rec.phases())
	assert.Equal(t, int32(0), h.recog.listens.Load())
	assert.Equal(t, []string{"Assistant: Hello! I'm your assistant."}, h.p.Snapshot().History)
	assert.False(t, h.p.Speak(context.Background(), "  "))
}

func TestCloseDuringSpeakingReleasesResources(t *testing.T) {
	var pb *fakePlayback
	h := newHarness(t, true,
		newFakeRecognizer(recResult{text: "hello"}),
		reply("one two three"),
		func() *fakePlayback {
			pb = newPlayback(3*time.Second, false)
			return pb
		})

	require.True(t, h.p.Activate(context.Background()))
	h.tickers.next(t)
	waitPhase(t, h.p, PhaseSpeaking)

	require.NoError(t, h.p.Close())
	assert.GreaterOrEqual(t, pb.closes.Load(), int32(1))
	assert.Equal(t, int32(1), h.recog.closes.Load())

	snap := h.p.Snapshot()
	assert.Equal(t, PhaseIdle, snap.Phase)
	assert.Equal(t, -1, snap.Highlight)
	assert.False(t, snap.CanActivate)

	assert.False(t, h.p.Activate(context.Background()))
	assert.NoError(t, h.p.Close())
	assert.Empty(t, h.rec.noticeList())
}

func TestCloseDropsLateChatReply(t *testing.T) {
	started := make(chan struct{})
	h := newHarness(t, false,
		newFakeRecognizer(recResult{text: "hello"}),
		func(ctx context.Context, _ string) (string, error) {
			close(started)
			<-ctx.Done()
			return "too late", nil
		},
		instantPlayback)

	require.True(t, h.p.Activate(context.Background()))
	<-started
	require.NoError(t, h.p.Close())

	snap := h.p.Snapshot()
	assert.Empty(t, snap.Reply)
	assert.Equal(t, int32(0), h.synth.calls.Load())
	assert.NotContains(t, h.rec.phases(), PhaseSynthesizing)
}

func TestCallerCancelResetsWithoutNotice(t *testing.T) {
	h := newHarness(t, false, newFakeRecognizer(), reply("unused"), instantPlayback)

	ctx, cancel := context.WithCancel(context.Background())
	require.True(t, h.p.Activate(ctx))
	waitPhase(t, h.p, PhaseListening)
	cancel()

	waitPhase(t, h.p, PhaseIdle)
	assert.Empty(t, h.rec.noticeList())
	assert.True(t, h.p.Activate(context.Background()), "pipeline reusable after cancel")
}

func TestPhaseStatus(t *testing.T) {
	assert.Equal(t, "Listening...", PhaseListening.Status())
	assert.Equal(t, "Tap the mic to talk", PhaseIdle.Status())
}
