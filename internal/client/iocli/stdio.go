package iocli

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

type Stdio struct {
	in  io.Reader
	out io.Writer
}

// NewStdio создает IO поверх переданных потоков; nil означает os.Stdin/os.Stdout
func NewStdio(in io.Reader, out io.Writer) IO {
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}
	return &Stdio{in: in, out: out}
}

func (s *Stdio) Println(a ...any) {
	_, _ = fmt.Fprintln(s.out, a...)
}

func (s *Stdio) Printf(format string, a ...any) {
	_, _ = fmt.Fprintf(s.out, format, a...)
}

func (s *Stdio) Write(p []byte) (int, error) {
	return s.out.Write(p)
}

func (s *Stdio) ReadAll() ([]byte, error) {
	if f, ok := s.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return nil, fmt.Errorf("stdin is a terminal, pass payload with --data or through a pipe")
	}
	return io.ReadAll(s.in)
}

func (s *Stdio) IsTerminal() bool {
	f, ok := s.out.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
