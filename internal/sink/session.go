package sink

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/shineum/slurpgen/internal/parser"
)

// Session states for the SMTP state machine.
const (
	stateConnected = iota
	stateGreeted
	stateMailFrom
	stateRcptTo
)

// idleTimeout is the maximum time a session can remain idle before being closed.
const idleTimeout = 60 * time.Second

// Session represents a single SMTP client connection and manages the
// SMTP protocol state machine.
type Session struct {
	conn     net.Conn
	reader   *bufio.Reader
	writer   *bufio.Writer
	state    int
	handler  Handler
	hostname string
	maxSize  int
	rejects  func(addr string) bool

	// Current transaction
	mailFrom string
	rcptTo   []string
}

// NewSession creates a new SMTP session for the given connection. rejects
// may be nil, in which case every recipient is accepted.
func NewSession(conn net.Conn, cfg ServerConfig, rejects func(addr string) bool) *Session {
	if rejects == nil {
		rejects = func(string) bool { return false }
	}
	maxSize := cfg.MaxMessageSize
	if maxSize <= 0 {
		maxSize = DefaultMaxMessageSize
	}
	handler := cfg.Handler
	if handler == nil {
		handler = Discard{}
	}
	return &Session{
		conn:     conn,
		reader:   bufio.NewReader(conn),
		writer:   bufio.NewWriter(conn),
		state:    stateConnected,
		handler:  handler,
		hostname: cfg.Hostname,
		maxSize:  maxSize,
		rejects:  rejects,
	}
}

// Handle runs the SMTP session, processing commands until the client
// disconnects or an error occurs.
func (s *Session) Handle(ctx context.Context) {
	defer s.conn.Close()

	s.writeLine("220 %s ESMTP slurpgen sink", s.hostname)

	for {
		select {
		case <-ctx.Done():
			s.writeLine("421 Service shutting down")
			return
		default:
		}

		if err := s.conn.SetDeadline(time.Now().Add(idleTimeout)); err != nil {
			slog.Error("failed to set connection deadline", "error", err)
			return
		}

		line, err := s.reader.ReadString('\n')
		if err != nil {
			if err != io.EOF {
				slog.Debug("connection read error", "error", err)
			}
			return
		}

		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			continue
		}

		cmd, arg := parseCommand(line)
		if done := s.handleCommand(ctx, cmd, arg); done {
			return
		}
	}
}

// handleCommand processes a single SMTP command and returns true if the session should end.
func (s *Session) handleCommand(ctx context.Context, cmd, arg string) bool {
	switch cmd {
	case "EHLO", "HELO":
		s.handleEHLO(cmd, arg)
	case "MAIL":
		s.handleMAIL(arg)
	case "RCPT":
		s.handleRCPT(arg)
	case "DATA":
		return s.handleDATA(ctx)
	case "RSET":
		s.resetTransaction()
		s.writeLine("250 OK")
	case "NOOP":
		s.writeLine("250 OK")
	case "QUIT":
		s.writeLine("221 Bye")
		return true
	default:
		s.writeLine("500 Unrecognized command")
	}
	return false
}

// handleEHLO processes EHLO/HELO commands.
func (s *Session) handleEHLO(cmd, arg string) {
	if arg == "" {
		s.writeLine("501 Syntax: %s hostname", cmd)
		return
	}

	s.resetTransaction()
	s.state = stateGreeted

	if cmd == "HELO" {
		s.writeLine("250 %s Hello %s", s.hostname, arg)
		return
	}

	s.writeLine("250-%s Hello %s", s.hostname, arg)
	s.writeLine("250-SIZE %d", s.maxSize)
	s.writeLine("250 OK")
}

// handleMAIL processes the MAIL FROM command.
func (s *Session) handleMAIL(arg string) {
	if s.state < stateGreeted {
		s.writeLine("503 Send EHLO/HELO first")
		return
	}
	if s.state >= stateMailFrom {
		s.writeLine("503 Sender already specified")
		return
	}

	if !strings.HasPrefix(strings.ToUpper(arg), "FROM:") {
		s.writeLine("501 Syntax: MAIL FROM:<address>")
		return
	}

	addr := extractAddress(arg[5:])
	if addr == "" {
		s.writeLine("501 Syntax: MAIL FROM:<address>")
		return
	}

	s.mailFrom = addr
	s.rcptTo = nil
	s.state = stateMailFrom
	s.writeLine("250 OK")
}

// handleRCPT processes the RCPT TO command.
func (s *Session) handleRCPT(arg string) {
	if s.state < stateMailFrom {
		s.writeLine("503 Send MAIL FROM first")
		return
	}

	if !strings.HasPrefix(strings.ToUpper(arg), "TO:") {
		s.writeLine("501 Syntax: RCPT TO:<address>")
		return
	}

	addr := extractAddress(arg[3:])
	if addr == "" {
		s.writeLine("501 Syntax: RCPT TO:<address>")
		return
	}

	if s.rejects(addr) {
		slog.Info("recipient rejected", "rcpt", addr)
		s.writeLine("550 5.1.1 Mailbox unavailable: %s", addr)
		return
	}

	s.rcptTo = append(s.rcptTo, addr)
	s.state = stateRcptTo
	s.writeLine("250 OK")
}

// handleDATA reads the message up to the lone-dot terminator, parses it and
// hands it to the handler. It returns true when the connection broke.
func (s *Session) handleDATA(ctx context.Context) bool {
	if s.state < stateRcptTo {
		s.writeLine("503 Send RCPT TO first")
		return false
	}

	s.writeLine("354 Start mail input; end with <CRLF>.<CRLF>")

	var data strings.Builder
	oversized := false
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			slog.Error("error reading DATA", "error", err)
			return true
		}

		if strings.TrimRight(line, "\r\n") == "." {
			break
		}

		// Undo dot-stuffing.
		if strings.HasPrefix(line, ".") {
			line = line[1:]
		}

		if data.Len()+len(line) > s.maxSize {
			oversized = true
			continue
		}
		data.WriteString(line)
	}

	if oversized {
		s.writeLine("552 Message exceeds fixed maximum message size")
		s.resetTransaction()
		return false
	}

	raw := []byte(data.String())
	msg, err := parser.Parse(raw)
	if err != nil {
		slog.Error("failed to parse message", "error", err)
		s.writeLine("554 Failed to process message")
		s.resetTransaction()
		return false
	}

	msg.MailFrom = s.mailFrom
	msg.RcptTo = append([]string(nil), s.rcptTo...)
	if msg.From == "" {
		msg.From = s.mailFrom
	}
	if len(msg.To) == 0 {
		msg.To = msg.RcptTo
	}

	if err := s.handler.Receive(ctx, msg); err != nil {
		slog.Error("handler failed",
			"handler", s.handler.Name(),
			"error", err,
		)
		s.writeLine("451 Temporary failure, please try again later")
		s.resetTransaction()
		return false
	}

	slog.Debug("message captured",
		"from", msg.MailFrom,
		"rcpt", strings.Join(msg.RcptTo, ","),
		"subject", msg.Subject,
		"size", msg.Size,
	)
	s.writeLine("250 OK message captured")
	s.resetTransaction()
	return false
}

// resetTransaction clears the current mail transaction without affecting
// the greeting.
func (s *Session) resetTransaction() {
	s.mailFrom = ""
	s.rcptTo = nil
	if s.state >= stateGreeted {
		s.state = stateGreeted
	}
}

// writeLine writes a formatted line to the client, followed by \r\n.
func (s *Session) writeLine(format string, args ...interface{}) {
	line := fmt.Sprintf(format, args...)
	if _, err := s.writer.WriteString(line + "\r\n"); err != nil {
		slog.Error("failed to write to client", "error", err)
		return
	}
	if err := s.writer.Flush(); err != nil {
		slog.Error("failed to flush to client", "error", err)
	}
}

// parseCommand splits an SMTP command line into the command verb and its argument.
func parseCommand(line string) (string, string) {
	parts := strings.SplitN(line, " ", 2)
	cmd := strings.ToUpper(parts[0])
	arg := ""
	if len(parts) > 1 {
		arg = parts[1]
	}
	return cmd, arg
}

// extractAddress extracts an email address from an SMTP parameter,
// handling both angle-bracket and bare formats. ESMTP parameters after
// the address are ignored.
func extractAddress(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "<") {
		end := strings.Index(s, ">")
		if end < 0 {
			return ""
		}
		return s[1:end]
	}

	if i := strings.IndexByte(s, ' '); i >= 0 {
		s = s[:i]
	}
	return s
}
