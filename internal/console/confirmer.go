package console

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Confirmer asks yes/no questions on a line-oriented input
type Confirmer struct {
	mu  sync.Mutex
	in  *bufio.Reader
	out io.Writer
}

// NewConfirmer creates a confirmer reading answers from in and
// writing prompts to out
func NewConfirmer(in io.Reader, out io.Writer) *Confirmer {
	return &Confirmer{in: bufio.NewReader(in), out: out}
}

// Confirm implements domain.Confirmer. It accepts y/yes/n/no in any case
// and asks again on anything else. Closed input returns io.EOF.
func (c *Confirmer) Confirm(prompt string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for {
		line, last, err := c.ask(prompt)
		if err != nil {
			return false, err
		}
		if answer, ok := parseAnswer(line); ok {
			return answer, nil
		}
		if last {
			// unterminated final line was not a valid answer
			fmt.Fprintln(c.out)
			return false, io.EOF
		}
	}
}

// Proceed implements domain.Proceeder. It asks once; only "y" goes ahead
// and any other answer, "yes" included, declines.
func (c *Confirmer) Proceed(prompt string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	line, _, err := c.ask(prompt)
	if err != nil {
		return false, err
	}
	return strings.ToLower(strings.TrimSpace(line)) == "y", nil
}

// ask prints the prompt and reads one line. last is set when the line was
// ended by EOF instead of a newline.
func (c *Confirmer) ask(prompt string) (line string, last bool, err error) {
	fmt.Fprintf(c.out, "%s [y/n]: ", prompt)

	line, err = c.in.ReadString('\n')
	switch {
	case err == nil:
		return line, false, nil
	case errors.Is(err, io.EOF) && line != "":
		return line, true, nil
	case errors.Is(err, io.EOF):
		fmt.Fprintln(c.out)
		return "", true, io.EOF
	default:
		fmt.Fprintln(c.out)
		return "", true, fmt.Errorf("failed to read answer: %w", err)
	}
}

func parseAnswer(line string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, true
	case "n", "no":
		return false, true
	}
	return false, false
}
