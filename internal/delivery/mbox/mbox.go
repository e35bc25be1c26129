// Package mbox implements a Transport that appends each message to an mbox
// file, so a run can be inspected offline without a live server.
package mbox

import (
	"bytes"
	"context"
	"os"
	"sync"
	"time"

	gombox "github.com/emersion/go-mbox"

	"github.com/shineum/slurpgen/internal/compose"
	"github.com/shineum/slurpgen/internal/failure"
)

// Transport appends messages to a single mbox file.
type Transport struct {
	path string
	now  func() time.Time

	mu sync.Mutex
}

// New creates a Transport writing to path. The file is created on first send.
func New(path string) *Transport {
	return &Transport{path: path, now: time.Now}
}

// Path returns the mbox file path.
func (t *Transport) Path() string {
	return t.path
}

// Send appends the message with a "From " separator line built from the
// envelope sender. Line endings are stored as LF, as mbox readers expect.
func (t *Transport) Send(ctx context.Context, msg *compose.Message) error {
	raw, err := msg.Bytes()
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	f, err := os.OpenFile(t.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return failure.New(failure.Connection, "open mbox "+t.path, err)
	}
	defer f.Close()

	mw := gombox.NewWriter(f)
	w, err := mw.CreateMessage(msg.EnvelopeFrom(), t.now())
	if err != nil {
		return failure.New(failure.Connection, "create mbox message", err)
	}
	if _, err := w.Write(bytes.ReplaceAll(raw, []byte("\r\n"), []byte("\n"))); err != nil {
		return failure.New(failure.Connection, "write mbox message", err)
	}
	if err := mw.Close(); err != nil {
		return failure.New(failure.Connection, "close mbox writer", err)
	}
	if err := f.Close(); err != nil {
		return failure.New(failure.Connection, "close mbox "+t.path, err)
	}
	return nil
}

// Name returns the transport name.
func (t *Transport) Name() string {
	return "mbox"
}
