package constants

import "time"

const (
	// ControlInterrupt is the byte sent into the stream for a local interrupt (Ctrl+C).
	ControlInterrupt byte = 0x03

	// ControlEndOfTransmission is the byte (Ctrl+D) that closes the console instead of being forwarded.
	ControlEndOfTransmission byte = 0x04

	// DefaultGraceDelay is how long the console waits after a remote close so pending output is flushed.
	DefaultGraceDelay = 500 * time.Millisecond

	// CloseHandshakeTimeout bounds the wait for the peer to answer a local close frame.
	CloseHandshakeTimeout = 2 * time.Second

	// InputBufferSize is the size of a single local input read.
	InputBufferSize = 4096

	// OutboundQueueSize bounds the ordered outbound frame queue.
	OutboundQueueSize = 64

	// FallbackCols and FallbackRows are used when the local terminal size cannot be read.
	FallbackCols = 80
	FallbackRows = 24
)
