package audio

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Permission modes.
const (
	PermissionGranted = "granted"
	PermissionDenied  = "denied"
	PermissionPrompt  = "prompt"
)

// ReadLines feeds the lines of r to the returned channel until r fails.
// Every reader of a shared terminal should take its input from one channel.
func ReadLines(r io.Reader) <-chan string {
	br := bufio.NewReader(r)
	ch := make(chan string)
	go func() {
		defer close(ch)
		for {
			line, err := br.ReadString('\n')
			if line != "" {
				ch <- line
			}
			if err != nil {
				return
			}
		}
	}()
	return ch
}

// PromptPermission gates the microphone. In prompt mode it asks on the
// terminal and remembers a grant for the process. A refusal is asked again
// on the next request.
type PromptPermission struct {
	mode  string
	lines <-chan string
	out   io.Writer

	mu      sync.Mutex
	granted bool
}

// NewPromptPermission reads answers from lines, as returned by ReadLines.
func NewPromptPermission(mode string, lines <-chan string, out io.Writer) *PromptPermission {
	return &PromptPermission{mode: mode, lines: lines, out: out}
}

func (p *PromptPermission) Granted() bool {
	switch p.mode {
	case PermissionGranted:
		return true
	case PermissionDenied:
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.granted
}

// Request asks for access. Only prompt mode reads an answer. A cancelled
// request leaves the next line for other readers.
func (p *PromptPermission) Request(ctx context.Context) (bool, error) {
	switch p.mode {
	case PermissionGranted:
		return true, nil
	case PermissionDenied:
		return false, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.granted {
		return true, nil
	}

	fmt.Fprint(p.out, "Allow SmartLife to use the microphone? [y/N] ")
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case line, ok := <-p.lines:
		if !ok {
			return false, io.EOF
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			p.granted = true
		}
		return p.granted, nil
	}
}
