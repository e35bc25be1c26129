// Package failure defines the error taxonomy shared by every stage of a run:
// quote fetching, message composition and message delivery.
package failure

import (
	"errors"
	"fmt"
)

// Kind classifies why an operation failed.
type Kind int

const (
	// Unknown is reported for errors that carry no Kind.
	Unknown Kind = iota
	// Network means the quote service could not be reached.
	Network
	// Format means the quote service answered with something unusable.
	Format
	// AttachmentRead means the local attachment source could not be read.
	AttachmentRead
	// Connection means the delivery endpoint was unreachable or the
	// connection broke mid-session.
	Connection
	// Protocol means the delivery endpoint rejected the envelope or data.
	Protocol
)

var kindNames = map[Kind]string{
	Unknown:        "unknown",
	Network:        "network",
	Format:         "format",
	AttachmentRead: "attachment-read",
	Connection:     "connection",
	Protocol:       "protocol",
}

// String returns the lower-case name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is a classified failure. Op names the operation that failed
// ("dial", "rcpt", "fetch quote", ...). Code holds the remote status code
// when there is one (SMTP reply code, HTTP status), zero otherwise.
type Error struct {
	Kind Kind
	Op   string
	Code int
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.String() + " error"
	if e.Op != "" {
		msg += " during " + e.Op
	}
	if e.Code != 0 {
		msg += fmt.Sprintf(" (code %d)", e.Code)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// New wraps err as a failure of the given kind.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// WithCode wraps err as a failure of the given kind with a remote status code.
func WithCode(kind Kind, op string, code int, err error) *Error {
	return &Error{Kind: kind, Op: op, Code: code, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or Unknown.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Unknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
