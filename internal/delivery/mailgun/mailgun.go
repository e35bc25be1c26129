// Package mailgun implements a Transport that relays composed messages
// through the Mailgun MIME messages API.
package mailgun

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/mailgun/mailgun-go/v4"

	"github.com/shineum/slurpgen/internal/compose"
	"github.com/shineum/slurpgen/internal/failure"
)

// Config holds the Mailgun sending domain and credentials.
type Config struct {
	Domain string
	APIKey string
	// APIBase overrides the API endpoint, e.g. mailgun.APIBaseEU.
	APIBase string
}

// Transport sends messages via Mailgun.
type Transport struct {
	mg mailgun.Mailgun
}

// New creates a Transport for the configured domain.
func New(cfg Config) *Transport {
	mg := mailgun.NewMailgun(cfg.Domain, cfg.APIKey)
	if cfg.APIBase != "" {
		mg.SetAPIBase(cfg.APIBase)
	}
	return &Transport{mg: mg}
}

// Send uploads the serialised message as-is with the single recipient as
// the envelope destination.
func (t *Transport) Send(ctx context.Context, msg *compose.Message) error {
	raw, err := msg.Bytes()
	if err != nil {
		return err
	}

	m := mailgun.NewMIMEMessage(io.NopCloser(bytes.NewReader(raw)), msg.EnvelopeTo())

	status, id, err := t.mg.Send(ctx, m)
	if err != nil {
		var respErr *mailgun.UnexpectedResponseError
		if errors.As(err, &respErr) {
			return failure.WithCode(failure.Protocol, "mailgun send", respErr.Actual, err)
		}
		return failure.New(failure.Connection, "mailgun send", err)
	}

	slog.Debug("message accepted by Mailgun",
		"transport", t.Name(),
		"shape", msg.Shape.String(),
		"message_id", id,
		"status", status,
	)
	return nil
}

// Name returns the transport name.
func (t *Transport) Name() string {
	return "mailgun"
}
