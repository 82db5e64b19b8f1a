package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/go-stack/stack"
	"github.com/inconshreveable/log15"
	"github.com/jpillora/backoff"
	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"

	"github.com/bbeck/locations/internal/protocol"
)

// ErrShutdown is returned by a handler to stop the server from accepting any
// more connections.
var ErrShutdown = errors.New("server shutdown requested")

var errSessionPanic = errors.New("session panicked")

// Handler serves a single connection.  It does not need to close the
// connection, the server does that once the handler returns.
type Handler func(conn net.Conn) error

type TCPServer struct {
	Handler Handler

	// Concurrent serves every connection in its own goroutine instead of one
	// connection at a time.  MaxConnections, if positive, limits how many are
	// served at once.
	Concurrent     bool
	MaxConnections int

	Logger  log15.Logger
	Metrics *Metrics
}

func Listen(cfg Config) (net.Listener, error) {
	addr, err := net.ResolveTCPAddr(cfg.Network(), cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("error resolving TCP address: %w", err)
	}

	listener, err := net.ListenTCP(cfg.Network(), addr)
	if err != nil {
		return nil, fmt.Errorf("error listening for TCP connections: %w", err)
	}

	return listener, nil
}

func RunTCPServer(ctx context.Context, cfg Config, server *TCPServer) error {
	listener, err := Listen(cfg)
	if err != nil {
		return err
	}

	server.logger().Info("listening", "addr", listener.Addr(), "concurrent", server.Concurrent)
	return server.Serve(ctx, listener)
}

// Serve accepts connections from listener until a handler asks for a shutdown,
// the listener is closed or ctx is cancelled.  A shutdown or a closed listener
// return nil, cancellation returns ctx.Err().  The listener is always closed
// on return.
func (s *TCPServer) Serve(ctx context.Context, listener net.Listener) error {
	defer listener.Close()

	if s.Concurrent {
		return s.serveConcurrent(ctx, listener)
	}
	return s.serveSequential(ctx, listener)
}

func (s *TCPServer) serveSequential(ctx context.Context, listener net.Listener) error {
	stop := context.AfterFunc(ctx, func() { listener.Close() })
	defer stop()

	b := newAcceptBackoff()
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			if !s.retry(ctx, b, err) {
				return ctx.Err()
			}
			continue
		}
		b.Reset()

		if err := s.serve(ctx, conn); errors.Is(err, ErrShutdown) {
			s.logger().Info("shutdown requested, no longer accepting connections")
			return nil
		}
	}
}

func (s *TCPServer) serveConcurrent(ctx context.Context, listener net.Listener) error {
	if s.MaxConnections > 0 {
		listener = netutil.LimitListener(listener, s.MaxConnections)
	}

	// A shutdown from any session cancels gctx, which closes the listener and
	// every other active connection.
	g, gctx := errgroup.WithContext(ctx)
	stop := context.AfterFunc(gctx, func() { listener.Close() })
	defer stop()

	b := newAcceptBackoff()
	for {
		conn, err := listener.Accept()
		if err != nil {
			if gctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			if !s.retry(gctx, b, err) {
				break
			}
			continue
		}
		b.Reset()

		g.Go(func() error {
			if err := s.serve(gctx, conn); errors.Is(err, ErrShutdown) {
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); errors.Is(err, ErrShutdown) {
		s.logger().Info("shutdown requested, no longer accepting connections")
		return nil
	}
	return ctx.Err()
}

func (s *TCPServer) serve(ctx context.Context, conn net.Conn) (err error) {
	logger := s.logger().New("remote", conn.RemoteAddr().String())
	logger.Info("connection opened")
	s.Metrics.SessionOpened()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer func() {
		stop()
		conn.Close()

		if r := recover(); r != nil {
			logger.Error("session panicked", "panic", r, "stack", stack.Trace().TrimRuntime())
			err = fmt.Errorf("%w: %v", errSessionPanic, r)
		}

		reason := closeReason(err)
		s.Metrics.SessionClosed(reason)
		logger.Info("connection closed", "reason", reason)
		if err != nil {
			logger.Debug("session ended with error", "err", err)
		}
	}()

	return s.Handler(conn)
}

func (s *TCPServer) retry(ctx context.Context, b *backoff.Backoff, err error) bool {
	d := b.Duration()
	s.logger().Warn("error accepting connection", "err", err, "retry", d)

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (s *TCPServer) logger() log15.Logger {
	if s.Logger == nil {
		return DiscardLogger()
	}
	return s.Logger
}

func newAcceptBackoff() *backoff.Backoff {
	return &backoff.Backoff{
		Min:    5 * time.Millisecond,
		Max:    time.Second,
		Factor: 2,
	}
}

func closeReason(err error) string {
	var netErr net.Error
	switch {
	case err == nil, errors.Is(err, io.ErrUnexpectedEOF):
		return "disconnect"
	case errors.Is(err, ErrShutdown):
		return "kill"
	case errors.Is(err, protocol.ErrInvalidCommand):
		return "invalid_command"
	case errors.Is(err, protocol.ErrMessageTooLarge):
		return "message_too_large"
	case errors.Is(err, errSessionPanic):
		return "panic"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "timeout"
	default:
		return "transport"
	}
}
