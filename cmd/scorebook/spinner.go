package main

import (
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Spinner configuration constants
const (
	spinnerFrameWidth = 2                     // Unicode braille characters render ~2 columns
	spinnerAnimDelay  = 80 * time.Millisecond // Animation frame delay
	spinnerClearPad   = 5                     // Extra clearance for terminal variations
)

// spinner is a lightweight spinner for long-running jobs and syncs.
// It uses a goroutine with an atomic bool for thread-safe stop signaling.
type spinner struct {
	frames   []string
	current  int
	message  string
	done     atomic.Bool
	w        io.Writer
	clearLen int // length needed to clear the line
}

func newSpinner(w io.Writer, message string) *spinner {
	return &spinner{
		frames:   []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
		message:  message,
		w:        w,
		clearLen: spinnerFrameWidth + 1 + len(message),
	}
}

func (s *spinner) Start() {
	if !isTTY() {
		fmt.Fprintf(s.w, "%s...\n", s.message)
		return
	}

	go func() {
		spinnerStyle := lipgloss.NewStyle().Foreground(colorPrimary)
		for !s.done.Load() {
			frame := s.frames[s.current%len(s.frames)]
			fmt.Fprintf(s.w, "\r%s %s", spinnerStyle.Render(frame), s.message)
			s.current++
			time.Sleep(spinnerAnimDelay)
		}
	}()
}

func (s *spinner) Stop() {
	s.done.Store(true)
	if isTTY() {
		clearStr := "\r" + strings.Repeat(" ", s.clearLen+spinnerClearPad) + "\r"
		fmt.Fprint(s.w, clearStr)
	}
}
