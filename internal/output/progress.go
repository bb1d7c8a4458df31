package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

// writerIsTTY returns true if the given writer exposes an Fd() method
// (e.g. *os.File) and that fd is a terminal. Plain io.Writer values such as
// *bytes.Buffer are never terminals.
func writerIsTTY(w io.Writer) bool {
	type fder interface {
		Fd() uintptr
	}
	if f, ok := w.(fder); ok {
		return isatty.IsTerminal(f.Fd())
	}
	return false
}

// IsTerminal reports whether w is a terminal. Spinners and progress bars
// animate only on terminals.
func IsTerminal(w io.Writer) bool {
	return writerIsTTY(w)
}

// ProgressBar tracks a known number of steps, such as surrogate databases.
// Example: [=========>          ] 45% Estimating pattern spectrum
type ProgressBar struct {
	total       int
	current     int
	description string
	width       int
	mu          sync.Mutex
	writer      io.Writer
}

// NewProgress creates a progress bar over total steps writing to stderr,
// so that it never mixes with results written to stdout.
func NewProgress(total int, description string) *ProgressBar {
	return &ProgressBar{
		total:       total,
		description: description,
		width:       40,
		writer:      os.Stderr,
	}
}

// SetWriter sets the output writer.
func (p *ProgressBar) SetWriter(w io.Writer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writer = w
}

// Increment advances the bar by one step. Safe to call from several
// goroutines.
func (p *ProgressBar) Increment() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current < p.total {
		p.current++
	}
	p.render()
}

// Current returns the number of finished steps.
func (p *ProgressBar) Current() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Finish completes the bar. A run that stopped early leaves the bar at its
// last position.
func (p *ProgressBar) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if writerIsTTY(p.writer) {
		p.render()
		fmt.Fprintln(p.writer)
		return
	}
	// Non-TTY output only gets the final line, which render already wrote
	// for a complete bar.
	if p.current < p.total {
		fmt.Fprintf(p.writer, "%s %3d%% %s\n", p.bar(), p.percent(), p.description)
	}
}

func (p *ProgressBar) percent() int {
	if p.total <= 0 {
		return 100
	}
	return p.current * 100 / p.total
}

func (p *ProgressBar) bar() string {
	filled := p.width
	if p.total > 0 {
		filled = p.current * p.width / p.total
	}

	var sb strings.Builder
	sb.WriteByte('[')
	for i := 0; i < p.width; i++ {
		switch {
		case i < filled-1:
			sb.WriteByte('=')
		case i == filled-1:
			sb.WriteByte('>')
		default:
			sb.WriteByte(' ')
		}
	}
	sb.WriteByte(']')
	return sb.String()
}

// render must be called with the lock held.
func (p *ProgressBar) render() {
	if writerIsTTY(p.writer) {
		fmt.Fprintf(p.writer, "\r%s %3d%% %s", p.bar(), p.percent(), p.description)
		return
	}
	if p.current == p.total {
		fmt.Fprintf(p.writer, "%s %3d%% %s\n", p.bar(), p.percent(), p.description)
	}
}

// Spinner animates while a mining run of unknown length is in progress.
// Example: |  Mining closed itemsets (3s elapsed)
type Spinner struct {
	message    string
	running    bool
	chars      []string
	mu         sync.Mutex
	writer     io.Writer
	ticker     *time.Ticker
	done       chan struct{}
	timeout    time.Duration
	startTime  time.Time
	showTiming bool
}

// NewSpinner creates a spinner writing to stderr. Call WithTimeout before
// Start to show the elapsed or remaining time.
func NewSpinner(message string) *Spinner {
	return &Spinner{
		message: message,
		chars:   []string{"|", "/", "-", "\\"},
		writer:  os.Stderr,
	}
}

// WithTimeout shows "(Ns remaining)" next to the message when timeout is
// positive and "(Ns elapsed)" otherwise. It returns the spinner for
// chaining.
func (s *Spinner) WithTimeout(timeout time.Duration) *Spinner {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeout = timeout
	s.showTiming = true
	return s
}

// SetWriter sets the output writer.
func (s *Spinner) SetWriter(w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writer = w
}

// Start begins the animation. On a non-TTY writer the message is printed
// once and no goroutine is started.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true
	s.startTime = time.Now()

	if !writerIsTTY(s.writer) {
		fmt.Fprintf(s.writer, "%s...\n", s.message)
		return
	}

	s.ticker = time.NewTicker(100 * time.Millisecond)
	s.done = make(chan struct{})
	go s.animate(s.ticker, s.done)
}

func (s *Spinner) animate(ticker *time.Ticker, done <-chan struct{}) {
	idx := 0
	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			if !s.running {
				s.mu.Unlock()
				return
			}
			fmt.Fprintf(s.writer, "\r%s  %s", s.chars[idx], s.formatMessage())
			idx = (idx + 1) % len(s.chars)
			s.mu.Unlock()
		case <-done:
			return
		}
	}
}

// formatMessage must be called with the lock held.
func (s *Spinner) formatMessage() string {
	if !s.showTiming {
		return s.message
	}
	elapsed := time.Since(s.startTime)
	if s.timeout > 0 {
		remaining := max(s.timeout-elapsed, 0)
		return fmt.Sprintf("%s (%ds remaining)", s.message, int(remaining.Seconds()))
	}
	return fmt.Sprintf("%s (%ds elapsed)", s.message, int(elapsed.Seconds()))
}

// Stop ends the animation and clears the line. Stopping twice is a no-op.
func (s *Spinner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.running = false
	if s.ticker != nil {
		s.ticker.Stop()
		close(s.done)
		s.ticker = nil
	}

	if writerIsTTY(s.writer) {
		fmt.Fprintf(s.writer, "\r%s\r", strings.Repeat(" ", len(s.formatMessage())+4))
	}
}

// StopWithMessage stops the spinner and prints a final message.
func (s *Spinner) StopWithMessage(message string) {
	s.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.writer, message)
}
