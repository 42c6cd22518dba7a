package console

import (
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/term"

	"github.com/Ning0612/filesync/internal/domain"
)

// ANSI color codes
const (
	reset  = "\033[0m"
	bold   = "\033[1m"
	red    = "\033[31m"
	green  = "\033[32m"
	yellow = "\033[33m"
	blue   = "\033[34m"
	cyan   = "\033[36m"
)

// Notifier prints notifications to a terminal, filtered by verbosity
type Notifier struct {
	mu        sync.Mutex
	out       io.Writer
	verbosity domain.Tier
	color     bool
}

// NewNotifier creates a notifier writing to out.
// Color is enabled only when out is a terminal and NO_COLOR is unset.
func NewNotifier(out io.Writer, verbosity int) *Notifier {
	return &Notifier{
		out:       out,
		verbosity: clampTier(verbosity),
		color:     colorEnabled(out),
	}
}

// SetColor forces color on or off
func (n *Notifier) SetColor(enabled bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.color = enabled
}

// Verbosity returns the current tier threshold
func (n *Notifier) Verbosity() domain.Tier {
	return n.verbosity
}

// Notify implements domain.Notifier
func (n *Notifier) Notify(msg string, tier domain.Tier, category domain.Category) {
	if tier > n.verbosity {
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.color {
		fmt.Fprintln(n.out, msg)
		return
	}
	fmt.Fprintf(n.out, "%s%s%s\n", colorFor(category), msg, reset)
}

// Bold prints a heading regardless of verbosity
func (n *Notifier) Bold(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.color {
		fmt.Fprintln(n.out, msg)
		return
	}
	fmt.Fprintf(n.out, "%s%s%s\n", bold, msg, reset)
}

func colorFor(c domain.Category) string {
	switch c {
	case domain.CategorySuccess:
		return green
	case domain.CategoryWarning:
		return yellow
	case domain.CategoryError:
		return red
	case domain.CategoryHighlight:
		return cyan
	default:
		return blue
	}
}

func clampTier(v int) domain.Tier {
	switch {
	case v <= 0:
		return domain.TierAlways
	case v == 1:
		return domain.TierNormal
	default:
		return domain.TierDetailed
	}
}

func colorEnabled(w io.Writer) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
