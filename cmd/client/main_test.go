package main

import (
	"bytes"
	"io"
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bbeck/locations/internal/protocol"
)

// server replies "ok" to every command and hangs up on "kill".
func server(t *testing.T, conn net.Conn) {
	t.Helper()

	go func() {
		defer conn.Close()

		f := protocol.NewFramer(conn, 0)
		for {
			msg, err := f.Next()
			if err != nil {
				return
			}

			for _, command := range protocol.Split(msg) {
				if command == "kill" {
					return
				}
				io.WriteString(conn, "ok\n")
			}
		}
	}()
}

func TestRepl(t *testing.T) {
	client, conn := net.Pipe()
	server(t, conn)

	var out bytes.Buffer
	in := strings.NewReader("add 1 2\nadd 3 4\n")
	require.NoError(t, repl(protocol.NewClient(client), in, &out))

	assert.Equal(t, "ok\nok\n", out.String())
}

func TestRepl_StopsWhenServerHangsUp(t *testing.T) {
	client, conn := net.Pipe()
	server(t, conn)

	var out bytes.Buffer
	in := strings.NewReader("list\nkill\nlist\n")
	require.NoError(t, repl(protocol.NewClient(client), in, &out))

	assert.Equal(t, "ok\n", out.String())
}
