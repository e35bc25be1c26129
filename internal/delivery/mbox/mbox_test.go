package mbox

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	gombox "github.com/emersion/go-mbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shineum/slurpgen/internal/compose"
	"github.com/shineum/slurpgen/internal/failure"
	"github.com/shineum/slurpgen/internal/parser"
	"github.com/shineum/slurpgen/internal/quote"
)

var testNow = time.Date(2024, time.March, 9, 14, 30, 5, 0, time.UTC)

func composeAll(t *testing.T) []*compose.Message {
	t.Helper()
	c := compose.New(compose.Config{
		From:           "someone@another.com",
		To:             "bob@bobtestingmailslurper.com",
		AttachmentPath: "screenshot.png",
		ReadFile: func(string) ([]byte, error) {
			return []byte("\x89PNG\r\n\x1a\n"), nil
		},
	})
	var msgs []*compose.Message
	for _, shape := range compose.All() {
		msg, err := c.Compose(shape, compose.Content{
			Quote: quote.Quote{Text: "Stay hungry", Attribution: "Steve Jobs"},
			Now:   testNow,
		})
		require.NoError(t, err)
		msgs = append(msgs, msg)
	}
	return msgs
}

func TestSend_AppendsReadableMessages(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "run.mbox")
	tr := New(path)
	tr.now = func() time.Time { return testNow }
	assert.Equal(t, path, tr.Path())

	msgs := composeAll(t)
	for _, msg := range msgs {
		require.NoError(t, tr.Send(context.Background(), msg))
	}

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	r := gombox.NewReader(f)
	var subjects []string
	for {
		mr, err := r.NextMessage()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		raw, err := io.ReadAll(mr)
		require.NoError(t, err)

		parsed, err := parser.Parse(raw)
		require.NoError(t, err)
		subjects = append(subjects, parsed.Subject)
		assert.Equal(t, "someone@another.com", parsed.From)
	}

	want := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		want = append(want, msg.Subject)
	}
	assert.Equal(t, want, subjects)
}

func TestSend_AppendsAcrossTransports(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "run.mbox")
	msg := composeAll(t)[1]

	require.NoError(t, New(path).Send(context.Background(), msg))
	require.NoError(t, New(path).Send(context.Background(), msg))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	r := gombox.NewReader(f)
	count := 0
	for {
		_, err := r.NextMessage()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		count++
	}
	assert.Equal(t, 2, count)
}

func TestSend_UnwritablePath(t *testing.T) {
	t.Parallel()

	tr := New(filepath.Join(t.TempDir(), "missing-dir", "run.mbox"))
	err := tr.Send(context.Background(), composeAll(t)[0])
	require.Error(t, err)
	assert.True(t, failure.Is(err, failure.Connection), "got %v", err)
	assert.Equal(t, "mbox", tr.Name())
}
