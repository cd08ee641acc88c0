package terminal

import (
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/term"
)

// Console is the local side of an interactive session.
type Console interface {
	io.Reader
	io.Writer
	MakeRaw() error
	Restore() error
	Size() (cols, rows int, err error)
}

// ReadCanceler is implemented by consoles whose blocked reads can be stopped.
type ReadCanceler interface {
	CancelRead()
}

// StdConsole is a Console over the process stdin and stdout.
// Stdin is read through a process-wide pump, so a canceled console does not
// swallow input meant for the next one. Password prompts read stdin directly
// and must not run while a console is open.
type StdConsole struct {
	in    *os.File
	out   *os.File
	input *inputPump
	mu    sync.Mutex
	state *term.State

	cancel     chan struct{}
	cancelOnce sync.Once
}

// NewStdConsole creates a console bound to os.Stdin and os.Stdout.
func NewStdConsole() *StdConsole {
	return newStdConsole(os.Stdin, os.Stdout, stdinPump)
}

func newStdConsole(in, out *os.File, input *inputPump) *StdConsole {
	return &StdConsole{in: in, out: out, input: input, cancel: make(chan struct{})}
}

func (c *StdConsole) Read(p []byte) (int, error) {
	return c.input.read(p, c.cancel)
}

// CancelRead makes pending and future reads fail with ErrReadCanceled.
func (c *StdConsole) CancelRead() {
	c.cancelOnce.Do(func() { close(c.cancel) })
}

func (c *StdConsole) Write(p []byte) (int, error) {
	return c.out.Write(p)
}

// MakeRaw switches stdin to raw mode. It is a no-op when stdin is not a terminal.
func (c *StdConsole) MakeRaw() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	fd := int(c.in.Fd())
	if c.state != nil || !term.IsTerminal(fd) {
		return nil
	}

	state, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("failed to set raw mode: %w", err)
	}
	c.state = state
	return nil
}

// Restore returns stdin to the mode saved by MakeRaw.
func (c *StdConsole) Restore() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == nil {
		return nil
	}
	err := term.Restore(int(c.in.Fd()), c.state)
	c.state = nil
	return err
}

// Size reports the dimensions of the output terminal.
func (c *StdConsole) Size() (int, int, error) {
	return term.GetSize(int(c.out.Fd()))
}

// ReadPassword prompts on w and reads a line from stdin without echo.
func ReadPassword(w io.Writer, prompt string) (string, error) {
	fmt.Fprint(w, prompt)
	defer fmt.Fprintln(w)

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("cannot prompt for password: stdin is not a terminal")
	}

	password, err := term.ReadPassword(fd)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(password), nil
}
