// Package stdout implements a Transport that dumps raw messages to an
// io.Writer instead of delivering them.
package stdout

import (
	"context"
	"fmt"
	"io"

	"github.com/shineum/slurpgen/internal/compose"
	"github.com/shineum/slurpgen/internal/failure"
)

// separator frames each dumped message.
const separator = "========================================\n"

// Transport prints each serialised message between separator lines.
type Transport struct {
	writer io.Writer
}

// NewWithWriter creates a new stdout Transport that writes to the given writer.
func NewWithWriter(w io.Writer) *Transport {
	return &Transport{writer: w}
}

// Send writes the raw RFC 5322 bytes, envelope first.
func (t *Transport) Send(ctx context.Context, msg *compose.Message) error {
	raw, err := msg.Bytes()
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := fmt.Fprintf(t.writer, "%sMAIL FROM:<%s>\nRCPT TO:<%s>\n\n%s\n%s",
		separator, msg.EnvelopeFrom(), msg.EnvelopeTo(), raw, separator); err != nil {
		return failure.New(failure.Connection, "write message", err)
	}
	return nil
}

// Name returns the transport name.
func (t *Transport) Name() string {
	return "stdout"
}
