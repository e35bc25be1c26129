// Package sink implements a minimal capturing SMTP server. It accepts what
// the generator sends, parses each message and hands it to a Handler.
package sink

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"
)

// shutdownTimeout is the maximum time to wait for in-flight connections
// during graceful shutdown.
const shutdownTimeout = 30 * time.Second

// DefaultMaxMessageSize is the SIZE advertised when none is configured (10 MB).
const DefaultMaxMessageSize = 10 * 1024 * 1024

// ServerConfig holds the configuration for a sink server.
type ServerConfig struct {
	// ListenAddr is the address to listen on (e.g., "127.0.0.1:2500").
	ListenAddr string

	// Hostname is the server hostname used in the greeting and EHLO.
	Hostname string

	// Handler receives every accepted message.
	Handler Handler

	// RejectRecipients lists recipients refused with 550 at RCPT. An entry
	// starting with "@" matches a whole domain.
	RejectRecipients []string

	// MaxMessageSize bounds DATA; larger messages get 552.
	MaxMessageSize int
}

// Server accepts SMTP connections and records what they deliver.
type Server struct {
	config ServerConfig

	mu       sync.Mutex
	listener net.Listener

	// wg tracks in-flight session goroutines for graceful shutdown.
	wg sync.WaitGroup
}

// New creates a new sink Server with the given configuration.
func New(cfg ServerConfig) *Server {
	if cfg.Hostname == "" {
		cfg.Hostname = "localhost"
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = DefaultMaxMessageSize
	}
	if cfg.Handler == nil {
		cfg.Handler = Discard{}
	}
	return &Server{config: cfg}
}

// ListenAndServe listens on the configured address and serves until the
// context is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until the context is cancelled. On
// cancellation it stops accepting and waits up to 30 seconds for in-flight
// sessions to complete.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	slog.Info("SMTP sink listening",
		"addr", ln.Addr().String(),
		"handler", s.config.Handler.Name(),
		"rejected_recipients", len(s.config.RejectRecipients),
	)

	go func() {
		<-ctx.Done()
		slog.Info("shutting down SMTP sink")
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				s.waitForSessions()
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				s.waitForSessions()
				return nil
			}
			slog.Error("accept error", "error", err)
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			NewSession(conn, s.config, s.rejects).Handle(ctx)
		}()
	}
}

// rejects reports whether a recipient is configured to be refused.
func (s *Server) rejects(addr string) bool {
	addr = strings.ToLower(addr)
	for _, pattern := range s.config.RejectRecipients {
		pattern = strings.ToLower(strings.TrimSpace(pattern))
		if pattern == "" {
			continue
		}
		if strings.HasPrefix(pattern, "@") {
			if strings.HasSuffix(addr, pattern) {
				return true
			}
			continue
		}
		if addr == pattern {
			return true
		}
	}
	return false
}

// waitForSessions waits for all in-flight sessions to complete,
// with a maximum timeout to prevent indefinite blocking.
func (s *Server) waitForSessions() {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("all sessions completed")
	case <-time.After(shutdownTimeout):
		slog.Warn("shutdown timeout reached, forcing close")
	}
}

// Addr returns the listener address, or empty string if not listening.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
