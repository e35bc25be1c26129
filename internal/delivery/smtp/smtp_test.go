package smtp

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	gosmtp "github.com/emersion/go-smtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shineum/slurpgen/internal/compose"
	"github.com/shineum/slurpgen/internal/failure"
	"github.com/shineum/slurpgen/internal/sink"
)

const (
	testFrom = "someone@another.com"
	testTo   = "bob@bobtestingmailslurper.com"
)

var testNow = time.Date(2024, time.March, 9, 14, 30, 5, 0, time.UTC)

func composeMessage(t *testing.T, shape compose.Shape, to string) *compose.Message {
	t.Helper()
	c := compose.New(compose.Config{
		From:           testFrom,
		To:             to,
		AttachmentPath: "screenshot.png",
		ReadFile: func(string) ([]byte, error) {
			return []byte("\x89PNG\r\n\x1a\n"), nil
		},
	})
	msg, err := c.Compose(shape, compose.Content{Index: 1, Now: testNow})
	require.NoError(t, err)
	return msg
}

// startSink runs a capture sink on a loopback port and returns a Config
// pointing at it.
func startSink(t *testing.T, cfg sink.ServerConfig) Config {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = sink.New(cfg).Serve(ctx, ln)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return Config{Host: host, Port: port, Helo: "slurpgen.test", Timeout: 5 * time.Second}
}

func TestSend_DeliversToSink(t *testing.T) {
	t.Parallel()

	collector := sink.NewCollector()
	cfg := startSink(t, sink.ServerConfig{Handler: collector})
	tr := New(cfg)

	for _, shape := range compose.All() {
		require.NoError(t, tr.Send(context.Background(), composeMessage(t, shape, testTo)), shape.String())
	}

	msgs := collector.Messages()
	require.Len(t, msgs, len(compose.All()))
	for i, shape := range compose.All() {
		got := msgs[i]
		assert.Equal(t, testFrom, got.MailFrom, shape.String())
		assert.Equal(t, []string{testTo}, got.RcptTo, shape.String())
		assert.Equal(t, shape.AttachmentCount(), len(got.Attachments), shape.String())
	}
	assert.Equal(t, "Text Mail #1", msgs[1].Subject)
	assert.Equal(t, "HTML+Attachment Mail 2", msgs[4].Subject)
	assert.Equal(t, "smtp", tr.Name())
}

func TestSend_DisplayNameSenderUsesBareEnvelope(t *testing.T) {
	t.Parallel()

	collector := sink.NewCollector()
	tr := New(startSink(t, sink.ServerConfig{Handler: collector}))

	c := compose.New(compose.Config{
		From: "Some One <someone@another.com>",
		To:   "Bob <bob@bobtestingmailslurper.com>",
	})
	msg, err := c.Compose(compose.PlainText, compose.Content{Index: 2, Now: testNow})
	require.NoError(t, err)
	require.NoError(t, tr.Send(context.Background(), msg))

	msgs := collector.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, testFrom, msgs[0].MailFrom)
	assert.Equal(t, []string{testTo}, msgs[0].RcptTo)
	assert.Equal(t, "Some One <someone@another.com>", msgs[0].From)
}

func TestSend_RejectedRecipientIsProtocolError(t *testing.T) {
	t.Parallel()

	collector := sink.NewCollector()
	cfg := startSink(t, sink.ServerConfig{
		Handler:          collector,
		RejectRecipients: []string{"@bounce.test"},
	})

	err := New(cfg).Send(context.Background(), composeMessage(t, compose.PlainText, "nobody@bounce.test"))
	require.Error(t, err)

	var fe *failure.Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, failure.Protocol, fe.Kind)
	assert.Equal(t, 550, fe.Code)
	assert.Equal(t, "rcpt to", fe.Op)
	assert.Zero(t, collector.Len())
}

func TestSend_UnreachableIsConnectionError(t *testing.T) {
	t.Parallel()

	// Grab a free port, then close it so nothing is listening.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	tr := New(Config{Host: "127.0.0.1", Port: port})
	err = tr.Send(context.Background(), composeMessage(t, compose.PlainText, testTo))
	require.Error(t, err)
	assert.True(t, failure.Is(err, failure.Connection), "got %v", err)
	assert.Equal(t, net.JoinHostPort("127.0.0.1", strconv.Itoa(port)), tr.Addr())
}

func TestSend_DroppedConnectionIsConnectionError(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	// Greets, accepts EHLO, then hangs up on MAIL.
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r := bufio.NewReader(conn)
		conn.Write([]byte("220 flaky ESMTP\r\n"))
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			if strings.HasPrefix(strings.ToUpper(line), "MAIL") {
				return
			}
			conn.Write([]byte("250 flaky\r\n"))
		}
	}()

	port := ln.Addr().(*net.TCPAddr).Port
	err = New(Config{Host: "127.0.0.1", Port: port, Timeout: 2 * time.Second}).
		Send(context.Background(), composeMessage(t, compose.PlainText, testTo))
	require.Error(t, err)
	assert.True(t, failure.Is(err, failure.Connection), "got %v", err)
}

func TestSend_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dialed := false
	tr := New(Config{Host: "127.0.0.1", Port: 1})
	tr.dial = func(string) (*gosmtp.Client, error) {
		dialed = true
		return nil, nil
	}

	err := tr.Send(ctx, composeMessage(t, compose.PlainText, testTo))
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, dialed)
}

func TestNew_DefaultHelo(t *testing.T) {
	t.Parallel()

	tr := New(Config{Host: "::1", Port: 2500})
	assert.Equal(t, DefaultHelo, tr.helo)
	assert.Equal(t, "[::1]:2500", tr.Addr())
}
