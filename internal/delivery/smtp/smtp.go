// Package smtp implements a Transport that hands each message to an SMTP
// server over its own plain session.
package smtp

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strconv"
	"time"

	gosmtp "github.com/emersion/go-smtp"

	"github.com/shineum/slurpgen/internal/compose"
	"github.com/shineum/slurpgen/internal/failure"
)

// DefaultHelo is the name announced in EHLO when none is configured.
const DefaultHelo = "localhost"

// Config holds the target endpoint of an SMTP transport.
type Config struct {
	Host string
	Port int
	// Helo is the name sent with EHLO/HELO.
	Helo string
	// Timeout bounds each command and the DATA submission. Zero keeps the
	// client defaults.
	Timeout time.Duration
}

// Transport delivers messages over one SMTP session per message.
type Transport struct {
	addr    string
	helo    string
	timeout time.Duration
	dial    func(addr string) (*gosmtp.Client, error)
}

// New creates a Transport for the configured endpoint.
func New(cfg Config) *Transport {
	helo := cfg.Helo
	if helo == "" {
		helo = DefaultHelo
	}
	return &Transport{
		addr:    net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		helo:    helo,
		timeout: cfg.Timeout,
		dial:    gosmtp.Dial,
	}
}

// Addr returns the host:port the transport dials.
func (t *Transport) Addr() string {
	return t.addr
}

// Send opens a session, greets, sets the envelope to the message's single
// sender and recipient, streams DATA and quits. The connection is closed on
// every path. A QUIT failure after accepted DATA is only logged since the
// message is already delivered.
func (t *Transport) Send(ctx context.Context, msg *compose.Message) error {
	raw, err := msg.Bytes()
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c, err := t.dial(t.addr)
	if err != nil {
		return failure.New(failure.Connection, "dial "+t.addr, err)
	}
	defer c.Close()

	if t.timeout > 0 {
		c.CommandTimeout = t.timeout
		c.SubmissionTimeout = t.timeout
	}

	if err := c.Hello(t.helo); err != nil {
		return classify("hello", err)
	}
	if err := c.Mail(msg.EnvelopeFrom(), nil); err != nil {
		return classify("mail from", err)
	}
	if err := c.Rcpt(msg.EnvelopeTo(), nil); err != nil {
		return classify("rcpt to", err)
	}

	w, err := c.Data()
	if err != nil {
		return classify("data", err)
	}
	if _, err := w.Write(raw); err != nil {
		_ = w.Close()
		return classify("data", err)
	}
	if err := w.Close(); err != nil {
		return classify("data", err)
	}

	if err := c.Quit(); err != nil {
		slog.Warn("SMTP QUIT failed after accepted message",
			"target", t.addr,
			"subject", msg.Subject,
			"error", err,
		)
	}

	slog.Debug("message delivered",
		"transport", t.Name(),
		"target", t.addr,
		"shape", msg.Shape.String(),
		"bytes", len(raw),
	)
	return nil
}

// Name returns the transport name.
func (t *Transport) Name() string {
	return "smtp"
}

// classify maps a client error to the failure taxonomy: replies from the
// server are protocol errors carrying the reply code, anything else means
// the connection itself broke.
func classify(op string, err error) error {
	var smtpErr *gosmtp.SMTPError
	if errors.As(err, &smtpErr) {
		return failure.WithCode(failure.Protocol, op, smtpErr.Code, err)
	}
	return failure.New(failure.Connection, op, err)
}
