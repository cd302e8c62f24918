package storage

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Prompter reads answers to interactive questions. Passwords are read
// without echo when the input is a terminal.
type Prompter struct {
	in      *bufio.Scanner
	out     io.Writer
	inFile  *os.File
	isTerm  func(fd int) bool
	readPwd func(fd int) ([]byte, error)
}

// NewPrompter reads from in and writes questions to out.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	p := &Prompter{
		in:      bufio.NewScanner(in),
		out:     out,
		isTerm:  term.IsTerminal,
		readPwd: term.ReadPassword,
	}
	if f, ok := in.(*os.File); ok {
		p.inFile = f
	}
	return p
}

// Scanner exposes the underlying line scanner so a command loop can share
// it with the prompts.
func (p *Prompter) Scanner() *bufio.Scanner {
	return p.in
}

// Line prints label and returns the next trimmed input line.
func (p *Prompter) Line(label string) (string, error) {
	fmt.Fprint(p.out, label)
	if !p.in.Scan() {
		if err := p.in.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(p.in.Text()), nil
}

// Password prints label and reads a secret. Leading and trailing spaces
// are kept.
func (p *Prompter) Password(label string) (string, error) {
	if p.inFile != nil && p.isTerm(int(p.inFile.Fd())) {
		fmt.Fprint(p.out, label)
		b, err := p.readPwd(int(p.inFile.Fd()))
		fmt.Fprintln(p.out)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}

	fmt.Fprint(p.out, label)
	if !p.in.Scan() {
		if err := p.in.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimRight(p.in.Text(), "\r"), nil
}

// Confirm asks a yes/no question. Only "y" and "yes" count as yes.
func (p *Prompter) Confirm(question string) bool {
	answer, err := p.Line(question + " [y/N]: ")
	if err != nil {
		return false
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
