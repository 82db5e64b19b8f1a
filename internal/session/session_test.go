package session

import (
	"bufio"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bbeck/locations/internal"
	"github.com/bbeck/locations/internal/location"
	"github.com/bbeck/locations/internal/protocol"
)

type harness struct {
	t        *testing.T
	registry *location.Registry
	metrics  *internal.Metrics
	conn     net.Conn
	reader   *bufio.Reader
	done     chan error
}

func start(t *testing.T, handler *Handler) *harness {
	t.Helper()

	client, server := net.Pipe()
	h := &harness{
		t:        t,
		registry: handler.Registry,
		metrics:  handler.Metrics,
		conn:     client,
		reader:   bufio.NewReader(client),
		done:     make(chan error, 1),
	}

	go func() {
		err := handler.Serve(server)
		server.Close()
		h.done <- err
	}()

	t.Cleanup(func() { client.Close() })
	return h
}

func newHandler() *Handler {
	return &Handler{
		Registry:       location.NewRegistry(location.DefaultCapacity),
		MaxMessageSize: protocol.DefaultMaxMessageSize,
		MaxCoordinate:  protocol.DefaultMaxCoordinate,
		Metrics:        internal.NewMetrics(),
	}
}

func (h *harness) send(s string) {
	h.t.Helper()

	_, err := io.WriteString(h.conn, s)
	require.NoError(h.t, err)
}

func (h *harness) expect(lines ...string) {
	h.t.Helper()

	for _, line := range lines {
		actual, err := h.reader.ReadString('\n')
		require.NoError(h.t, err)
		assert.Equal(h.t, line, actual)
	}
}

// closed waits for the session to end and checks that the client saw nothing
// but the connection closing.
func (h *harness) closed() error {
	h.t.Helper()

	_, err := h.reader.ReadString('\n')
	assert.Equal(h.t, io.EOF, err)

	select {
	case err := <-h.done:
		return err
	case <-time.After(5 * time.Second):
		h.t.Fatal("session did not end")
		return nil
	}
}

func TestServe_EndToEnd(t *testing.T) {
	h := start(t, newHandler())

	h.send("add 1 2\n")
	h.expect("1 2 added\n")

	h.send("add 1 2\n")
	h.expect("1 2 already exists\n")

	h.send("rm 1 2\nlist\n")
	h.expect("1 2 removed\n", "none\n")

	h.conn.Close()
	assert.NoError(t, <-h.done)
}

func TestServe_AllCommands(t *testing.T) {
	h := start(t, newHandler())

	h.send("list\nquery 5 5\n")
	h.expect("none\n", "none\n")

	h.send("add 0 0\nadd 0 2\nadd 2 0\nadd 2 2\n")
	h.expect("0 0 added\n", "0 2 added\n", "2 0 added\n", "2 2 added\n")

	h.send("query 1 1\n")
	h.expect("0 0\n")

	h.send("rm 0 2\nrm 7 7\nlist\n")
	h.expect("0 2 removed\n", "7 7 does not exist\n", "0 0 2 0 2 2\n")

	h.send("add 0 2\nlist\n")
	h.expect("0 2 added\n", "0 0 2 0 2 2 0 2\n")
}

func TestServe_CommandSplitAcrossWrites(t *testing.T) {
	h := start(t, newHandler())

	h.send("add 9999")
	h.send(" 0\n")
	h.expect("9999 0 added\n")
}

func TestServe_LimitExceeded(t *testing.T) {
	handler := newHandler()
	handler.Registry = location.NewRegistry(2)
	h := start(t, handler)

	h.send("add 1 1\nadd 2 2\nadd 3 3\n")
	h.expect("1 1 added\n", "2 2 added\n", "limit exceeded\n")

	assert.Equal(t, 2, h.registry.Len())
}

func TestServe_InvalidCommandClosesSession(t *testing.T) {
	tests := []string{
		"add 1 a\n",
		"add 10000 1\n",
		"list all\n",
		"hello\n",
		"add 1 2 3\n",
		"   \n",
	}

	for _, input := range tests {
		t.Run(strings.TrimSpace(input), func(t *testing.T) {
			h := start(t, newHandler())

			h.send(input)
			assert.ErrorIs(t, h.closed(), protocol.ErrInvalidCommand)
			assert.Equal(t, 0, h.registry.Len())
		})
	}
}

func TestServe_FirstInvalidCommandWins(t *testing.T) {
	h := start(t, newHandler())

	h.send("add 1 1\nbogus\nadd 2 2\n")
	h.expect("1 1 added\n")

	assert.ErrorIs(t, h.closed(), protocol.ErrInvalidCommand)
	assert.Equal(t, []location.Point{{X: 1, Y: 1}}, h.registry.Points())
}

func TestServe_Kill(t *testing.T) {
	h := start(t, newHandler())

	h.send("add 1 1\nkill\nadd 2 2\n")
	h.expect("1 1 added\n")

	assert.ErrorIs(t, h.closed(), internal.ErrShutdown)
	assert.Equal(t, 1, h.registry.Len())
}

func TestServe_MessageTooLarge(t *testing.T) {
	handler := newHandler()
	handler.MaxMessageSize = 16
	h := start(t, handler)

	// The server hangs up before reading the whole thing, so the write itself
	// may fail.
	io.WriteString(h.conn, "add "+strings.Repeat("1", 30)+" 1\n")

	assert.ErrorIs(t, h.closed(), protocol.ErrMessageTooLarge)
	assert.Equal(t, 0, h.registry.Len())
}

func TestServe_DisconnectMidMessage(t *testing.T) {
	h := start(t, newHandler())

	h.send("add 1")
	h.conn.Close()

	assert.ErrorIs(t, <-h.done, io.ErrUnexpectedEOF)
}

func TestServe_IdleTimeout(t *testing.T) {
	handler := newHandler()
	handler.IdleTimeout = 50 * time.Millisecond
	h := start(t, handler)

	h.send("list\n")
	h.expect("none\n")

	err := h.closed()
	var netErr net.Error
	require.ErrorAs(t, err, &netErr)
	assert.True(t, netErr.Timeout())
}

func TestServe_SharedRegistry(t *testing.T) {
	handler := newHandler()
	first := start(t, handler)
	second := start(t, handler)

	first.send("add 4 4\n")
	first.expect("4 4 added\n")

	second.send("add 4 4\nquery 0 0\n")
	second.expect("4 4 already exists\n", "4 4\n")
}

func TestServe_Metrics(t *testing.T) {
	handler := newHandler()
	h := start(t, handler)

	h.send("add 1 1\nadd 1 1\nadd 2 2\nrm 3 3\n")
	h.expect("1 1 added\n", "1 1 already exists\n", "2 2 added\n", "3 3 does not exist\n")

	commands := h.metrics.Commands
	assert.Equal(t, 2.0, testutil.ToFloat64(commands.WithLabelValues("add", "added")))
	assert.Equal(t, 1.0, testutil.ToFloat64(commands.WithLabelValues("add", "already_exists")))
	assert.Equal(t, 1.0, testutil.ToFloat64(commands.WithLabelValues("rm", "not_found")))
	assert.Equal(t, 2.0, testutil.ToFloat64(h.metrics.Locations))
}

func TestNew(t *testing.T) {
	cfg := internal.DefaultConfig()
	cfg.IdleTimeout = time.Minute
	registry := location.NewRegistry(cfg.MaxLocations)

	handler := New(registry, cfg, internal.DiscardLogger(), nil)
	assert.Same(t, registry, handler.Registry)
	assert.Equal(t, protocol.DefaultMaxMessageSize, handler.MaxMessageSize)
	assert.Equal(t, protocol.DefaultMaxCoordinate, handler.MaxCoordinate)
	assert.Equal(t, time.Minute, handler.IdleTimeout)
}
