// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package shared

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/term"
)

const spinnerInterval = 100 * time.Millisecond

var spinnerGlyphs = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner animates progress for long-running commands, redrawing one
// terminal line in place with the elapsed time. Off-terminal it prints
// the message once and stays silent until stopped.
type Spinner struct {
	out io.Writer
	tty bool

	mu      sync.Mutex
	running bool
	started time.Time
	quit    chan struct{}
	idle    chan struct{}
}

// NewSpinner creates a spinner writing to stdout.
func NewSpinner() *Spinner {
	return &Spinner{
		out: os.Stdout,
		tty: term.IsTerminal(int(os.Stdout.Fd())),
	}
}

// Start begins animating with the given message. Starting a running
// spinner is a no-op.
func (s *Spinner) Start(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true
	s.started = time.Now()

	if !s.tty {
		fmt.Fprintln(s.out, message)
		return
	}

	s.quit = make(chan struct{})
	s.idle = make(chan struct{})
	go s.spin(message, s.started, s.quit, s.idle)
}

// Stop ends the animation, clears the line, and returns the elapsed
// time since Start.
func (s *Spinner) Stop() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return 0
	}
	s.running = false
	elapsed := time.Since(s.started)

	if s.quit != nil {
		close(s.quit)
		<-s.idle
		s.quit = nil
		fmt.Fprint(s.out, "\r\x1b[2K")
	}
	return elapsed
}

// spin owns the animation loop. The message and start time never change
// while it runs, so it touches no locked state.
func (s *Spinner) spin(message string, started time.Time, quit, idle chan struct{}) {
	defer close(idle)

	ticker := time.NewTicker(spinnerInterval)
	defer ticker.Stop()

	frame := 0
	s.draw(message, started, frame)
	for {
		select {
		case <-quit:
			return
		case <-ticker.C:
			frame = (frame + 1) % len(spinnerGlyphs)
			s.draw(message, started, frame)
		}
	}
}

func (s *Spinner) draw(message string, started time.Time, frame int) {
	glyph := spinnerGlyphs[frame]
	if !ColorEnabled() {
		glyph = "..."
	}
	fmt.Fprintf(s.out, "\r\x1b[2K%s %s %s",
		message,
		Muted.Render(glyph),
		Muted.Render("("+elapsedLabel(time.Since(started))+")"))
}

// elapsedLabel renders a duration as "42s" or "3m 7s".
func elapsedLabel(d time.Duration) string {
	secs := int(d.Round(time.Second).Seconds())
	switch {
	case secs < 60:
		return fmt.Sprintf("%ds", secs)
	case secs%60 == 0:
		return fmt.Sprintf("%dm", secs/60)
	}
	return fmt.Sprintf("%dm %ds", secs/60, secs%60)
}
