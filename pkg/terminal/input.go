package terminal

import (
	"errors"
	"io"
	"os"
	"sync"
)

// ErrReadCanceled is returned by a console read that was stopped with CancelRead.
var ErrReadCanceled = errors.New("console read canceled")

const inputChunkSize = 4096

// inputPump reads its source on one long-lived goroutine. Readers wait on the
// pump instead of the source, so a reader can give up without leaving a read
// in flight: input that arrives afterwards is kept for the next reader.
type inputPump struct {
	src    io.Reader
	start  sync.Once
	chunks chan []byte
	err    error // Set before chunks is closed

	mu      sync.Mutex
	pending []byte
}

var stdinPump = newInputPump(os.Stdin)

func newInputPump(src io.Reader) *inputPump {
	return &inputPump{src: src, chunks: make(chan []byte)}
}

func (p *inputPump) run() {
	buf := make([]byte, inputChunkSize)
	for {
		n, err := p.src.Read(buf)
		if n > 0 {
			p.chunks <- append([]byte(nil), buf[:n]...)
		}
		if err != nil {
			p.err = err
			close(p.chunks)
			return
		}
	}
}

// read fills b from buffered or newly read input, or fails with ErrReadCanceled once cancel is closed.
func (p *inputPump) read(b []byte, cancel <-chan struct{}) (int, error) {
	p.start.Do(func() { go p.run() })

	p.mu.Lock()
	if len(p.pending) > 0 {
		n := copy(b, p.pending)
		p.pending = p.pending[n:]
		p.mu.Unlock()
		return n, nil
	}
	p.mu.Unlock()

	select {
	case <-cancel:
		return 0, ErrReadCanceled
	case chunk, ok := <-p.chunks:
		if !ok {
			return 0, p.err
		}
		n := copy(b, chunk)
		if n < len(chunk) {
			p.mu.Lock()
			p.pending = append(p.pending, chunk[n:]...)
			p.mu.Unlock()
		}
		return n, nil
	}
}
