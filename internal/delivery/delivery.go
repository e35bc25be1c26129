// Package delivery defines the interface for message transports.
package delivery

import (
	"context"

	"github.com/shineum/slurpgen/internal/compose"
)

// Transport is the interface that delivery backends must implement.
// Each transport makes exactly one attempt per message; retries are the
// caller's business.
type Transport interface {
	// Send delivers a composed message. Failures are *failure.Error values
	// classified as Connection or Protocol.
	Send(ctx context.Context, msg *compose.Message) error

	// Name returns the human-readable name of this transport.
	Name() string
}
