package sink

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/shineum/slurpgen/internal/email"
)

// Handler receives every message the sink accepts.
type Handler interface {
	// Receive records one parsed message. A non-nil error makes the sink
	// answer DATA with a temporary failure.
	Receive(ctx context.Context, msg *email.Email) error

	// Name returns the human-readable name of this handler.
	Name() string
}

// Discard drops every message.
type Discard struct{}

// Receive implements Handler.
func (Discard) Receive(context.Context, *email.Email) error { return nil }

// Name implements Handler.
func (Discard) Name() string { return "discard" }

// Printer writes a human-readable summary of each message.
type Printer struct {
	mu sync.Mutex
	writer io.Writer
}

// NewPrinterWithWriter creates a Printer that writes to the given writer.
func NewPrinterWithWriter(w io.Writer) *Printer {
	return &Printer{writer: w}
}

// Receive prints the summary. Output errors are not reported to the client.
func (p *Printer) Receive(_ context.Context, msg *email.Email) error {
	var b strings.Builder

	b.WriteString("========================================\n")
	fmt.Fprintf(&b, "Envelope: %s -> %s\n", msg.MailFrom, strings.Join(msg.RcptTo, ", "))
	fmt.Fprintf(&b, "From: %s\n", msg.From)
	fmt.Fprintf(&b, "To: %s\n", strings.Join(msg.To, ", "))
	if len(msg.Cc) > 0 {
		fmt.Fprintf(&b, "Cc: %s\n", strings.Join(msg.Cc, ", "))
	}
	fmt.Fprintf(&b, "Subject: %s\n", msg.Subject)
	if msg.DateHeader != "" {
		fmt.Fprintf(&b, "Date: %s\n", msg.DateHeader)
	}
	fmt.Fprintf(&b, "Layout: %s (%s)\n", msg.ContentType, strings.Join(msg.Layout, ", "))
	b.WriteString("Body:\n")

	body := msg.TextBody
	if body == "" {
		body = msg.HtmlBody
	}
	b.WriteString(body + "\n")

	if len(msg.Attachments) > 0 {
		attachments := make([]string, 0, len(msg.Attachments))
		for _, att := range msg.Attachments {
			attachments = append(attachments, fmt.Sprintf("%s (%s)", att.Filename, formatSize(len(att.Content))))
		}
		fmt.Fprintf(&b, "Attachments: %s\n", strings.Join(attachments, ", "))
	}

	b.WriteString("========================================\n")

	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = fmt.Fprint(p.writer, b.String())
	return nil
}

// Name returns the handler name.
func (p *Printer) Name() string {
	return "printer"
}

// Collector keeps every received message in memory, in arrival order.
type Collector struct {
	mu       sync.Mutex
	messages []*email.Email
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Receive appends the message.
func (c *Collector) Receive(_ context.Context, msg *email.Email) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msg)
	return nil
}

// Name returns the handler name.
func (c *Collector) Name() string {
	return "collector"
}

// Messages returns a snapshot of the received messages.
func (c *Collector) Messages() []*email.Email {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*email.Email(nil), c.messages...)
}

// Len returns the number of received messages.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

// formatSize formats a byte count into a human-readable string.
func formatSize(bytes int) string {
	const (
		kb = 1024
		mb = kb * 1024
	)

	switch {
	case bytes >= mb:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(mb))
	case bytes >= kb:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(kb))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
