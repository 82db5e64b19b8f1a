// Package session runs the protocol for a single client connection against
// the shared location registry.
package session

import (
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/inconshreveable/log15"

	"github.com/bbeck/locations/internal"
	"github.com/bbeck/locations/internal/location"
	"github.com/bbeck/locations/internal/protocol"
)

type Handler struct {
	Registry *location.Registry

	MaxMessageSize int
	MaxCoordinate  int

	// IdleTimeout, if positive, closes a session whose client sends nothing
	// for that long.  By default a silent client is waited on forever.
	IdleTimeout time.Duration

	Logger  log15.Logger
	Metrics *internal.Metrics
}

func New(registry *location.Registry, cfg internal.Config, logger log15.Logger, metrics *internal.Metrics) *Handler {
	return &Handler{
		Registry:       registry,
		MaxMessageSize: cfg.MaxMessageSize,
		MaxCoordinate:  cfg.MaxCoordinate,
		IdleTimeout:    cfg.IdleTimeout,
		Logger:         logger,
		Metrics:        metrics,
	}
}

// Serve runs the protocol until the client disconnects, misbehaves or asks
// for the server to be killed.  A clean disconnect returns nil, a kill returns
// internal.ErrShutdown and everything else returns the reason the session
// was closed.
func (h *Handler) Serve(conn net.Conn) error {
	logger := h.logger().New("remote", conn.RemoteAddr().String())
	framer := protocol.NewFramer(conn, h.MaxMessageSize)

	for {
		if h.IdleTimeout > 0 {
			if err := conn.SetReadDeadline(time.Now().Add(h.IdleTimeout)); err != nil {
				return fmt.Errorf("setting read deadline: %w", err)
			}
		}

		msg, err := framer.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		// The first malformed command ends the session, whatever follows it
		// in the same message is dropped without a reply.
		for _, line := range protocol.Split(msg) {
			command := protocol.ParseBounded(line, h.maxCoordinate())
			switch command.Verb {
			case protocol.Invalid:
				logger.Debug("invalid command", "command", line)
				return fmt.Errorf("%w: %q", protocol.ErrInvalidCommand, line)

			case protocol.Kill:
				logger.Info("kill requested")
				return internal.ErrShutdown
			}

			result := h.execute(command)
			logger.Debug("command", "verb", command.Verb, "x", command.Point.X, "y", command.Point.Y, "outcome", result.Outcome)

			if _, err := io.WriteString(conn, protocol.Format(result)); err != nil {
				return fmt.Errorf("writing response: %w", err)
			}
		}
	}
}

func (h *Handler) execute(command protocol.Command) location.Result {
	var result location.Result
	switch command.Verb {
	case protocol.Add:
		result = h.Registry.Add(command.Point)
	case protocol.Remove:
		result = h.Registry.Remove(command.Point)
	case protocol.Query:
		result = h.Registry.Nearest(command.Point)
	case protocol.List:
		result = h.Registry.Render()
	}

	h.Metrics.CommandExecuted(command.Verb.String(), result.Outcome.String(), h.Registry.Len())
	return result
}

func (h *Handler) maxCoordinate() int {
	if h.MaxCoordinate <= 0 {
		return protocol.DefaultMaxCoordinate
	}
	return h.MaxCoordinate
}

func (h *Handler) logger() log15.Logger {
	if h.Logger == nil {
		return internal.DiscardLogger()
	}
	return h.Logger
}
