package stdout

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shineum/slurpgen/internal/compose"
	"github.com/shineum/slurpgen/internal/failure"
)

func plainMessage(t *testing.T) *compose.Message {
	t.Helper()
	c := compose.New(compose.Config{From: "sender@example.com", To: "alice@example.com"})
	msg, err := c.Compose(compose.PlainText, compose.Content{Index: 2, Now: time.Unix(0, 0).UTC()})
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	return msg
}

type brokenWriter struct{}

func (brokenWriter) Write([]byte) (int, error) { return 0, errors.New("pipe closed") }

func TestSend_DumpsRawMessage(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	tr := NewWithWriter(&buf)

	if err := tr.Send(context.Background(), plainMessage(t)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := buf.String()
	if !strings.HasPrefix(output, separator) {
		t.Error("output should start with separator line")
	}
	if !strings.HasSuffix(output, separator) {
		t.Error("output should end with separator line")
	}
	if !strings.Contains(output, "MAIL FROM:<sender@example.com>\nRCPT TO:<alice@example.com>\n") {
		t.Error("output missing envelope")
	}
	if !strings.Contains(output, "Subject: Text Mail #2\r\n") {
		t.Error("output missing Subject header")
	}
	if !strings.Contains(output, "MIME-Version: 1.0\r\n") {
		t.Error("output missing MIME-Version header")
	}
}

func TestSend_WriteFailure(t *testing.T) {
	t.Parallel()

	err := NewWithWriter(brokenWriter{}).Send(context.Background(), plainMessage(t))
	if !failure.Is(err, failure.Connection) {
		t.Errorf("got %v, want connection failure", err)
	}
}

func TestName(t *testing.T) {
	t.Parallel()

	if got := NewWithWriter(&bytes.Buffer{}).Name(); got != "stdout" {
		t.Errorf("Name: got %q, want %q", got, "stdout")
	}
}
