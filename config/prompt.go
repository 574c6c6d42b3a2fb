package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Prompter asks the operator for a value that neither the command line nor
// the environment supplied.
type Prompter interface {
	Ask(key, question, defaultValue string) (string, error)
}

// TerminalPrompter reads answers line by line from an interactive terminal.
type TerminalPrompter struct {
	In  io.Reader
	Out io.Writer

	reader *bufio.Reader
}

// NewTerminalPrompter returns a stdin/stderr prompter when stdin is a
// terminal, nil otherwise. A nil prompter makes the resolver fall through
// to defaults, which keeps unattended runs non-blocking.
func NewTerminalPrompter() *TerminalPrompter {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil
	}
	return &TerminalPrompter{In: os.Stdin, Out: os.Stderr}
}

// Ask prints the question and returns the trimmed answer, or the default
// when the operator just hits enter.
func (p *TerminalPrompter) Ask(_, question, defaultValue string) (string, error) {
	if defaultValue != "" {
		fmt.Fprintf(p.Out, "%s [%s]: ", question, defaultValue)
	} else {
		fmt.Fprintf(p.Out, "%s: ", question)
	}

	if p.reader == nil {
		p.reader = bufio.NewReader(p.In)
	}

	line, err := p.reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed reading input: %w", err)
	}

	answer := strings.TrimSpace(line)
	if answer == "" {
		return defaultValue, nil
	}
	return answer, nil
}

// Confirm asks a yes/no question; anything but an explicit yes declines.
func Confirm(p Prompter, question string) (bool, error) {
	if p == nil {
		return false, nil
	}

	answer, err := p.Ask("", question+" Enter 'y' to confirm or ENTER to abort", "")
	if err != nil {
		return false, err
	}

	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}
