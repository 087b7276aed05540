package log

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// SpinnerStyle defines different spinner animations
type SpinnerStyle string

const (
	SpinnerDots SpinnerStyle = "dots"
	SpinnerLine SpinnerStyle = "line"
)

// Spinner redraws a single status line while a slow call runs
type Spinner struct {
	mu       sync.Mutex
	out      io.Writer
	chars    []string
	current  int
	interval time.Duration
	message  string
	start    time.Time
	running  bool
	stop     chan struct{}
	done     chan struct{}
}

// NewSpinner creates a spinner that draws message on out
func NewSpinner(out io.Writer, style SpinnerStyle, message string) *Spinner {
	s := &Spinner{
		out:      out,
		interval: 100 * time.Millisecond,
		message:  message,
	}

	switch style {
	case SpinnerLine:
		s.chars = []string{"-", "\\", "|", "/"}
	default:
		s.chars = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
	}
	return s
}

// Start draws the first frame and begins the animation
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true
	s.start = time.Now()
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.draw()

	go s.spin(s.stop, s.done)
}

// Stop clears the status line and prints final, if any
func (s *Spinner) Stop(final string) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stop)
	done := s.done
	s.mu.Unlock()

	<-done

	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprint(s.out, "\r\033[K")
	if final != "" {
		fmt.Fprintln(s.out, final)
	}
}

func (s *Spinner) spin(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			s.current = (s.current + 1) % len(s.chars)
			s.draw()
			s.mu.Unlock()
		}
	}
}

// draw must be called with mu held
func (s *Spinner) draw() {
	elapsed := time.Since(s.start).Truncate(time.Second)
	fmt.Fprintf(s.out, "\r%s %s (%v)", s.chars[s.current], s.message, elapsed)
}
