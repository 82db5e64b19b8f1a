package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
)

// DefaultMaxMessageSize is the largest message a framer accepts unless told
// otherwise.
const DefaultMaxMessageSize = 512

var ErrMessageTooLarge = errors.New("message too large")

// Framer turns a byte stream into messages.  A message is complete once the
// data accumulated so far ends in a newline, so whatever the peer wrote in one
// go (possibly several commands) comes back as one message.
type Framer struct {
	r   io.Reader
	buf []byte
}

func NewFramer(r io.Reader, max int) *Framer {
	if max <= 0 {
		max = DefaultMaxMessageSize
	}

	return &Framer{
		r:   r,
		buf: make([]byte, 0, max),
	}
}

// Next blocks until a complete message has arrived.  It returns io.EOF if the
// peer went away between messages and io.ErrUnexpectedEOF if it went away in
// the middle of one.  The returned slice is only valid until the next call.
func (f *Framer) Next() ([]byte, error) {
	f.buf = f.buf[:0]

	for {
		if len(f.buf) == cap(f.buf) {
			return nil, ErrMessageTooLarge
		}

		n, err := f.r.Read(f.buf[len(f.buf):cap(f.buf)])
		f.buf = f.buf[:len(f.buf)+n]

		if n > 0 && f.buf[len(f.buf)-1] == '\n' {
			return f.buf, nil
		}

		if err == io.EOF {
			if len(f.buf) == 0 {
				return nil, io.EOF
			}
			return nil, io.ErrUnexpectedEOF
		}
		if err != nil {
			return nil, fmt.Errorf("reading message: %w", err)
		}
	}
}

// Split breaks a message into its newline delimited commands.  Blank commands
// are dropped.
func Split(msg []byte) []string {
	var commands []string
	for _, line := range bytes.Split(msg, []byte{'\n'}) {
		if len(line) == 0 {
			continue
		}
		commands = append(commands, string(line))
	}
	return commands
}

// CountCommands returns how many commands Split finds in a piece of client
// input, which is also how many replies a server sends back if all of them
// are valid.
func CountCommands(input string) int {
	var count int
	for _, line := range strings.Split(input, "\n") {
		if line != "" {
			count++
		}
	}
	return count
}
