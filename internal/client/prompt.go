package client

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// Prompter asks for secrets, without echo when stdin is a terminal.
type Prompter struct {
	In  *os.File
	Out io.Writer

	lines *bufio.Reader
}

// Secret prints label and reads one line. On a terminal the input is not echoed.
func (p *Prompter) Secret(label string) (string, error) {
	if _, err := fmt.Fprint(p.Out, label+": "); err != nil {
		return "", err
	}
	if term.IsTerminal(int(p.In.Fd())) {
		b, err := readPassword(int(p.In.Fd()))
		fmt.Fprintln(p.Out)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	if p.lines == nil {
		p.lines = bufio.NewReader(p.In)
	}
	line, err := p.lines.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
