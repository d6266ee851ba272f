// Package prompter asks the operator yes/no questions on stderr so stdout
// stays free for command output.
package prompter

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Prompter reads answers from In and writes questions to Out.
type Prompter struct {
	In  io.Reader
	Out io.Writer
	// Interactive is false when stdin is not a terminal; Confirm then
	// returns the default without asking.
	Interactive bool
}

// New returns a Prompter on the process streams.
func New() *Prompter {
	return &Prompter{
		In:          os.Stdin,
		Out:         os.Stderr,
		Interactive: term.IsTerminal(int(os.Stdin.Fd())),
	}
}

// Confirm asks a yes/no question. An empty answer or EOF picks the default.
func (p *Prompter) Confirm(message string, defaultYes bool) (bool, error) {
	if !p.Interactive {
		return defaultYes, nil
	}
	return Confirm(p.In, p.Out, message, defaultYes)
}

// Confirm asks message on out and reads one line from in.
func Confirm(in io.Reader, out io.Writer, message string, defaultYes bool) (bool, error) {
	hint := "(y/N)"
	if defaultYes {
		hint = "(Y/n)"
	}
	fmt.Fprintf(out, "%s %s ", message, hint)

	response, err := bufio.NewReader(in).ReadString('\n')
	if err != nil {
		if err == io.EOF && strings.TrimSpace(response) == "" {
			fmt.Fprintln(out)
			return defaultYes, nil
		}
		if err != io.EOF {
			return false, fmt.Errorf("read answer: %w", err)
		}
	}

	switch strings.ToLower(strings.TrimSpace(response)) {
	case "":
		return defaultYes, nil
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
