package protocol

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strings"
)

// Client speaks the protocol from the other end of the connection.
type Client struct {
	conn   net.Conn
	reader *bufio.Reader
}

func Dial(addr string) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", addr, err)
	}
	return NewClient(conn), nil
}

func NewClient(conn net.Conn) *Client {
	return &Client{
		conn:   conn,
		reader: bufio.NewReader(conn),
	}
}

// Send writes input, which may hold several commands, in a single write and
// then waits for one reply per command.  When the server hangs up early (kill
// or a malformed command) the replies received so far are returned along with
// io.EOF.
func (c *Client) Send(input string) ([]string, error) {
	if !strings.HasSuffix(input, "\n") {
		input += "\n"
	}

	if _, err := io.WriteString(c.conn, input); err != nil {
		return nil, fmt.Errorf("sending: %w", err)
	}

	var replies []string
	for expected := CountCommands(input); len(replies) < expected; {
		line, err := c.reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				return replies, io.EOF
			}
			return replies, fmt.Errorf("receiving: %w", err)
		}

		replies = append(replies, strings.TrimSuffix(line, "\n"))
	}

	return replies, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}
