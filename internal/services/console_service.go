package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/benmeehan/iotctl/internal/constants"
	"github.com/benmeehan/iotctl/internal/models"
	"github.com/benmeehan/iotctl/internal/utils"
	"github.com/benmeehan/iotctl/pkg/api"
	"github.com/benmeehan/iotctl/pkg/session"
	"github.com/benmeehan/iotctl/pkg/terminal"
)

// ConsoleIO is the local side of a console session.
type ConsoleIO struct {
	Console    terminal.Console
	Interrupts <-chan struct{} // Local interrupt requests, forwarded to the device
	Resizes    <-chan struct{} // Local window size changes
}

// ConsoleService opens interactive terminal sessions on devices.
type ConsoleService struct {
	Client       APIClient
	Store        session.Store
	GraceDelay   time.Duration
	Notices      io.Writer // Receives user facing status lines, stderr by default
	NewSessionID func() string
	Logger       zerolog.Logger
}

// NewConsoleService initializes a new ConsoleService.
func NewConsoleService(client APIClient, store session.Store, graceDelay time.Duration, logger zerolog.Logger) *ConsoleService {
	return &ConsoleService{
		Client:       client,
		Store:        store,
		GraceDelay:   graceDelay,
		Notices:      os.Stderr,
		NewSessionID: uuid.NewString,
		Logger:       logger,
	}
}

type consoleEventKind int

const (
	eventRemoteClosed consoleEventKind = iota
	eventStreamError
	eventLocalFault
)

type consoleEvent struct {
	kind consoleEventKind
	err  error
}

// outboundFrame is either data for the device or a request to close the stream.
type outboundFrame struct {
	data  []byte
	close bool
}

// consoleSession is the state of one open console.
type consoleSession struct {
	stream   api.Stream
	console  terminal.Console
	outbound chan outboundFrame
	events   chan consoleEvent
	closing  atomic.Bool
	logger   zerolog.Logger

	restoreOnce sync.Once
	closeOnce   sync.Once
}

// OpenConsole connects the local console to a shell on deviceID and blocks until the session ends.
// A remote close and a cancelled ctx end the session without error.
// Consoles implementing terminal.ReadCanceler have their input read stopped on return;
// with other consoles a read may still be blocked after OpenConsole returns.
func (s *ConsoleService) OpenConsole(ctx context.Context, deviceID string, cio ConsoleIO) (err error) {
	record, err := loadSession(s.Store)
	if err != nil {
		return err
	}

	sessionID := s.NewSessionID()
	streamPath := fmt.Sprintf(constants.EndpointTerminalStream,
		url.PathEscape(record.Username), url.PathEscape(deviceID), sessionID) + "?" + constants.TerminalStreamRawQuery

	s.Logger.Debug().Str("device", deviceID).Str("session", sessionID).Msg("Opening console")

	stream, err := s.Client.DialStream(ctx, streamPath)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return &StreamError{Err: notConfigured(err)}
	}

	sess := &consoleSession{
		stream:   stream,
		console:  cio.Console,
		outbound: make(chan outboundFrame, constants.OutboundQueueSize),
		events:   make(chan consoleEvent, 4),
		logger:   s.Logger,
	}
	defer sess.closeStream()
	defer sess.restore()

	defer func() {
		if r := recover(); r != nil {
			sess.restore()
			sess.closeStream()
			err = fmt.Errorf("console failed: %v", r)
		}
	}()

	if err := cio.Console.MakeRaw(); err != nil {
		return err
	}

	sessCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer wg.Wait()
	if rc, ok := cio.Console.(terminal.ReadCanceler); ok {
		defer rc.CancelRead()
	}
	defer cancel()

	geometry := s.geometryUpdate(record.Username, deviceID, sessionID, cio.Console)
	wg.Add(1)
	go func() {
		defer wg.Done()
		geometry.Run(sessCtx, s.Logger, "terminal geometry")
		for {
			select {
			case <-sessCtx.Done():
				return
			case <-cio.Resizes:
				wg.Add(1)
				go func() {
					defer wg.Done()
					geometry.Run(sessCtx, s.Logger, "terminal geometry")
				}()
			}
		}
	}()

	go sess.readStream()
	go sess.writeStream(sessCtx)
	go sess.pumpInput(sessCtx)
	go sess.forwardInterrupts(sessCtx, cio.Interrupts)

	select {
	case <-ctx.Done():
		s.Logger.Debug().Str("session", sessionID).Msg("Console terminated locally")
		return nil
	case ev := <-sess.events:
		sess.restore()
		switch ev.kind {
		case eventRemoteClosed:
			fmt.Fprintln(s.Notices, "Connection closed")
			select {
			case <-time.After(s.GraceDelay):
			case <-ctx.Done():
			}
			return nil
		case eventStreamError:
			return &StreamError{Err: ev.err}
		default:
			sess.closeStream()
			return ev.err
		}
	}
}

// geometryUpdate posts the local terminal size to the session params endpoint.
func (s *ConsoleService) geometryUpdate(username, deviceID, sessionID string, console terminal.Console) utils.NonCritical {
	path := fmt.Sprintf(constants.EndpointTerminalParams, url.PathEscape(username), url.PathEscape(deviceID), sessionID)

	return func(ctx context.Context) error {
		cols, rows, err := console.Size()
		if err != nil || cols <= 0 || rows <= 0 {
			cols, rows = constants.FallbackCols, constants.FallbackRows
		}

		params := models.TerminalParams{Size: models.TerminalSize{Cols: cols, Rows: rows}}
		return s.Client.Do(ctx, http.MethodPost, path, params, nil)
	}
}

func (c *consoleSession) restore() {
	c.restoreOnce.Do(func() {
		if err := c.console.Restore(); err != nil {
			c.logger.Error().Err(err).Msg("Failed to restore terminal mode")
		}
	})
}

func (c *consoleSession) closeStream() {
	c.closeOnce.Do(func() {
		if err := c.stream.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Stream close")
		}
	})
}

// report records the first terminal event of a goroutine without blocking.
func (c *consoleSession) report(ev consoleEvent) {
	select {
	case c.events <- ev:
	default:
	}
}

func (c *consoleSession) recoverFault() {
	if r := recover(); r != nil {
		c.report(consoleEvent{kind: eventLocalFault, err: fmt.Errorf("console failed: %v", r)})
	}
}

// enqueue hands a frame to the writer. It reports false once the session is over.
func (c *consoleSession) enqueue(ctx context.Context, frame outboundFrame) bool {
	select {
	case <-ctx.Done():
		return false
	case c.outbound <- frame:
		return true
	}
}

// readStream copies inbound frames verbatim to the local console.
func (c *consoleSession) readStream() {
	defer c.recoverFault()

	for {
		data, err := c.stream.ReadMessage()
		if err != nil {
			if errors.Is(err, api.ErrStreamClosed) || c.closing.Load() {
				c.report(consoleEvent{kind: eventRemoteClosed})
			} else {
				c.report(consoleEvent{kind: eventStreamError, err: err})
			}
			return
		}

		if _, err := c.console.Write(data); err != nil {
			c.report(consoleEvent{kind: eventLocalFault, err: fmt.Errorf("failed to write console output: %w", err)})
			return
		}
	}
}

// writeStream is the only goroutine writing data frames, which keeps them in input order.
func (c *consoleSession) writeStream(ctx context.Context) {
	defer c.recoverFault()

	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-c.outbound:
			if c.closing.Load() {
				continue
			}

			if frame.close {
				c.closing.Store(true)
				if err := c.stream.CloseGracefully(); err != nil {
					c.closeStream()
					continue
				}
				time.AfterFunc(constants.CloseHandshakeTimeout, c.closeStream)
				continue
			}

			if err := c.stream.WriteMessage(frame.data); err != nil {
				c.report(consoleEvent{kind: eventStreamError, err: err})
				return
			}
		}
	}
}

// pumpInput forwards local input. A lone EOT byte or end of input closes the stream instead.
func (c *consoleSession) pumpInput(ctx context.Context) {
	defer c.recoverFault()

	buf := make([]byte, constants.InputBufferSize)
	for {
		n, err := c.console.Read(buf)
		if n > 0 {
			if n == 1 && buf[0] == constants.ControlEndOfTransmission {
				c.enqueue(ctx, outboundFrame{close: true})
				return
			}

			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			if !c.enqueue(ctx, outboundFrame{data: chunk}) {
				return
			}
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				c.enqueue(ctx, outboundFrame{close: true})
				return
			}
			if ctx.Err() == nil && !errors.Is(err, terminal.ErrReadCanceled) {
				c.report(consoleEvent{kind: eventLocalFault, err: fmt.Errorf("failed to read console input: %w", err)})
			}
			return
		}
	}
}

// forwardInterrupts turns local interrupts into the interrupt byte on the ordered outbound queue.
func (c *consoleSession) forwardInterrupts(ctx context.Context, interrupts <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-interrupts:
			if !c.enqueue(ctx, outboundFrame{data: []byte{constants.ControlInterrupt}}) {
				return
			}
		}
	}
}
