package session

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Confirmer asks the user a yes/no question.
type Confirmer interface {
	Confirm(prompt string) (bool, error)
}

// TerminalConfirmer prompts on a terminal. Without a terminal every answer is no.
type TerminalConfirmer struct {
	in         io.Reader
	out        io.Writer
	isTerminal func() bool
}

// NewTerminalConfirmer prompts on out and reads the answer from in.
func NewTerminalConfirmer(in *os.File, out io.Writer) *TerminalConfirmer {
	return &TerminalConfirmer{
		in:         in,
		out:        out,
		isTerminal: func() bool { return term.IsTerminal(int(in.Fd())) },
	}
}

// Confirm implements Confirmer.
func (c *TerminalConfirmer) Confirm(prompt string) (bool, error) {
	if !c.isTerminal() {
		return false, nil
	}

	fmt.Fprintf(c.out, "%s [y/N]: ", prompt)

	line, err := bufio.NewReader(c.in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}

	return false, nil
}

// StaticConfirmer always gives the same answer.
type StaticConfirmer bool

// Confirm implements Confirmer.
func (c StaticConfirmer) Confirm(string) (bool, error) {
	return bool(c), nil
}
