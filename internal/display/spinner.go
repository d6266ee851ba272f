package display

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/mamatnurahmat/devops-tools/internal/deploy"
)

// stageMessages describes each pipeline state while it is running.
var stageMessages = map[deploy.State]string{
	deploy.ResolvingCredentials: "Resolving credentials",
	deploy.ResolvingReference:   "Resolving reference",
	deploy.BuildingImageName:    "Building image name",
	deploy.CheckingAvailability: "Checking registry",
	deploy.ReadingState:         "Reading deployment state",
	deploy.Deciding:             "Deciding",
}

// Spinner renders a live progress line with elapsed time to stderr.
// It runs an async render loop so the animation stays smooth between
// network calls.
type Spinner struct {
	frames  []string
	started time.Time
	out     io.Writer

	mu      sync.Mutex
	frame   int
	message string
	done    bool
	stopCh  chan struct{}

	// ANSI codes
	reset, dim, cyan, green, red string
}

// NewSpinner creates a spinner respecting color/emoji preferences.
// It starts the background render loop immediately.
func NewSpinner(noColor, noEmoji bool) *Spinner {
	return newSpinner(os.Stderr, noColor, noEmoji)
}

func newSpinner(out io.Writer, noColor, noEmoji bool) *Spinner {
	s := &Spinner{
		started: time.Now(),
		out:     out,
		stopCh:  make(chan struct{}),
	}

	if noEmoji {
		s.frames = []string{"|", "/", "-", "\\"}
	} else {
		s.frames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
	}

	if !noColor {
		s.reset = "\033[0m"
		s.dim = "\033[2m"
		s.cyan = "\033[36m"
		s.green = "\033[32m"
		s.red = "\033[31m"
	}

	go s.loop()
	return s
}

func (s *Spinner) loop() {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.render()
		}
	}
}

func (s *Spinner) render() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done || s.message == "" {
		return
	}
	elapsed := time.Since(s.started).Truncate(time.Second)
	frame := s.frames[s.frame%len(s.frames)]
	s.frame++

	fmt.Fprintf(s.out, "\r\033[K%s%s%s %s %s[%s]%s",
		s.cyan, frame, s.reset,
		s.message,
		s.dim, elapsed, s.reset,
	)
}

// Tick updates the spinner message. The animation continues asynchronously.
func (s *Spinner) Tick(message string) {
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()
}

// Observe follows pipeline progress. It is meant for deploy.Engine.Observer.
func (s *Spinner) Observe(state deploy.State) {
	if msg, ok := stageMessages[state]; ok {
		s.Tick(msg + "...")
	}
}

// ClearLine stops the animation and clears the spinner line.
func (s *Spinner) ClearLine() {
	s.mu.Lock()
	wasDone := s.done
	s.done = true
	s.mu.Unlock()

	if !wasDone {
		close(s.stopCh)
	}
	fmt.Fprint(s.out, "\r\033[K")
}

// Finish prints a success or failure line for a finished run.
func (s *Spinner) Finish(r *deploy.Result) {
	if r.State == deploy.Failed {
		step := "Run"
		if n := len(r.Steps); n >= 2 {
			step = stageMessages[r.Steps[n-2]]
		}
		s.Failure(step + " failed")
		return
	}
	s.Success("Done")
}

// Success prints a final success line.
func (s *Spinner) Success(message string) {
	s.ClearLine()
	fmt.Fprintf(s.out, "%s✅ %s%s %s[%s]%s\n",
		s.green, message, s.reset,
		s.dim, humanDuration(time.Since(s.started)), s.reset,
	)
}

// Failure prints a final failure line.
func (s *Spinner) Failure(message string) {
	s.ClearLine()
	fmt.Fprintf(s.out, "%s❌ %s%s %s[%s]%s\n",
		s.red, message, s.reset,
		s.dim, humanDuration(time.Since(s.started)), s.reset,
	)
}
