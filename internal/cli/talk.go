package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rcliao/smartlife/internal/assistant"
	"github.com/rcliao/smartlife/internal/audio"
	"github.com/rcliao/smartlife/internal/voice"
)

func init() {
	RootCmd.AddCommand(newTalkCmd())
}

func newTalkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "talk",
		Short: "Talk to the assistant",
		Long: "Run the voice assistant in the terminal. Press Enter to speak; the reply is spoken " +
			"back with the current word highlighted. In continuous mode the assistant keeps listening " +
			"until you say a termination phrase. Ctrl-C stops everything.",
		Run: runTalk,
	}

	cmd.Flags().Bool("once", false, "Take a single turn and exit")
	cmd.Flags().Bool("greet", false, "Speak the greeting first")
	cmd.Flags().Bool("continuous", false, "Keep listening after each reply (default: voice.continuous from config)")
	return cmd
}

func runTalk(cmd *cobra.Command, args []string) {
	once, _ := cmd.Flags().GetBool("once")
	greet, _ := cmd.Flags().GetBool("greet")
	continuous := talkContinuous(cmd, cfg.Voice.Continuous)

	chat, err := assistant.NewChatter(cfg.Chat, logger)
	if err != nil {
		exitErr("chat", err)
	}
	synth, err := assistant.NewSynthesizer(cfg.Speech, logger)
	if err != nil {
		exitErr("speech", err)
	}
	transcriber, err := assistant.NewTranscriber(cfg.Transcription, logger)
	if err != nil {
		exitErr("transcription", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lines := audio.ReadLines(os.Stdin)
	perm := audio.NewPromptPermission(cfg.Voice.Microphone, lines, os.Stderr)
	if !perm.Granted() {
		if _, err := perm.Request(ctx); err != nil {
			exitErr("microphone permission", err)
		}
	}

	console := newTalkConsole(os.Stdout, os.Stderr, !textOutput())
	p := voice.New(voice.Deps{
		Recognizer:  audio.NewRecognizer(audio.NewRecorder(cfg.Voice.RecordCommand, cfg.Voice.CaptureSeconds, logger), transcriber, logger),
		Permission:  perm,
		Chat:        chat,
		Synthesizer: synth,
		Player:      audio.NewCommandPlayer(cfg.Voice.PlayCommand, cfg.Voice.ProbeCommand, "", logger),
		Logger:      logger,
	}, voice.Options{
		Continuous:         continuous,
		TerminationPhrases: cfg.Voice.TerminationPhrases,
		OnChange:           console.onChange,
		OnNotice:           console.onNotice,
	})
	defer p.Close()

	if greet && p.Speak(ctx, cfg.Voice.Greeting) {
		console.wait(ctx)
	}
	if once {
		console.drain()
		if p.Activate(ctx) {
			console.wait(ctx)
		}
		return
	}

	for {
		console.prompt()
		select {
		case <-ctx.Done():
			return
		case _, ok := <-lines:
			if !ok {
				return
			}
		}
		console.drain()
		if p.Activate(ctx) {
			console.wait(ctx)
		}
	}
}

// talkContinuous resolves whether the assistant relistens after a reply.
// A single turn never does; otherwise --continuous overrides the config.
func talkContinuous(cmd *cobra.Command, configured bool) bool {
	if once, _ := cmd.Flags().GetBool("once"); once {
		return false
	}
	if cmd.Flags().Changed("continuous") {
		continuous, _ := cmd.Flags().GetBool("continuous")
		return continuous
	}
	return configured
}

// talkConsole renders pipeline state on a terminal.
type talkConsole struct {
	out, errOut io.Writer
	jsonLines   bool

	mu        sync.Mutex
	lastPhase voice.Phase
	lastLine  string
	ended     chan struct{}
}

func newTalkConsole(out, errOut io.Writer, jsonLines bool) *talkConsole {
	return &talkConsole{
		out:       out,
		errOut:    errOut,
		jsonLines: jsonLines,
		lastPhase: voice.PhaseIdle,
		ended:     make(chan struct{}, 1),
	}
}

func (c *talkConsole) onChange(s voice.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if s.Phase == voice.PhaseIdle && !s.Active {
		select {
		case c.ended <- struct{}{}:
		default:
		}
	}

	if c.jsonLines {
		b, _ := json.Marshal(s)
		fmt.Fprintln(c.out, string(b))
		return
	}

	if s.Phase != c.lastPhase {
		if c.lastLine != "" {
			fmt.Fprintln(c.out)
			c.lastLine = ""
		}
		c.lastPhase = s.Phase
		if s.Phase == voice.PhaseAwaitingReply {
			fmt.Fprintf(c.out, "You: %s\n", s.Transcript)
		}
		fmt.Fprintf(c.out, "[%s]\n", s.Phase.Status())
	}
	if s.Phase == voice.PhaseSpeaking {
		line := highlightLine(s)
		if line != c.lastLine {
			fmt.Fprintf(c.out, "\r\033[K%s", line)
			c.lastLine = line
		}
	}
}

func (c *talkConsole) onNotice(n voice.Notice) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.errOut, "! %s\n", n.Message)
}

func (c *talkConsole) prompt() {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.errOut, "Press Enter to talk (Ctrl-C to quit).")
}

// drain drops an end-of-session signal left over from an earlier turn.
func (c *talkConsole) drain() {
	select {
	case <-c.ended:
	default:
	}
}

// wait blocks until the pipeline returns to idle with no session running.
func (c *talkConsole) wait(ctx context.Context) {
	select {
	case <-c.ended:
	case <-ctx.Done():
	}
}

// highlightLine brackets the highlighted word of the reply.
func highlightLine(s voice.Snapshot) string {
	words := voice.Words(s.Reply)
	if w := s.Word(); w != "" {
		words[s.Highlight] = "[" + w + "]"
	}
	return strings.Join(words, " ")
}
