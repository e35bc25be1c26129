// Package driver sequences a run: for each planned step it composes one
// message and hands it to the transport, stopping at the first failure.
package driver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shineum/slurpgen/internal/compose"
	"github.com/shineum/slurpgen/internal/delivery"
	"github.com/shineum/slurpgen/internal/quote"
)

// DefaultCount is how many times each repeating shape is sent.
const DefaultCount = 5

// QuoteSource provides the quote for Alternative messages.
type QuoteSource interface {
	Fetch(ctx context.Context) (quote.Quote, error)
}

// Composer builds a message for one step.
type Composer interface {
	Compose(shape compose.Shape, content compose.Content) (*compose.Message, error)
}

// Step is one planned send.
type Step struct {
	Shape compose.Shape
	Index int
}

// String returns "plain-text #3" for repeating shapes and the bare shape
// name otherwise.
func (s Step) String() string {
	if s.Shape.Repeats() {
		return fmt.Sprintf("%s #%d", s.Shape, s.Index)
	}
	return s.Shape.String()
}

// Plan expands a shape sequence into steps. Repeating shapes expand to
// indexes 0..count-1 in place; the others appear once. A count below one
// drops the repeating shapes entirely.
func Plan(shapes []compose.Shape, count int) []Step {
	var steps []Step
	for _, shape := range shapes {
		if !shape.Repeats() {
			steps = append(steps, Step{Shape: shape})
			continue
		}
		for i := 0; i < count; i++ {
			steps = append(steps, Step{Shape: shape, Index: i})
		}
	}
	return steps
}

// Report summarises a run.
type Report struct {
	Planned int
	Sent    int
}

// StepError reports the step that stopped a run.
type StepError struct {
	Step Step
	// Number is the 1-based position of the step in the plan.
	Number int
	Total  int
	Err    error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d/%d (%s): %v", e.Number, e.Total, e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Config holds the collaborators of a Driver.
type Config struct {
	Composer  Composer
	Transport delivery.Transport

	// Quotes is consulted for Alternative steps. When nil the fallback
	// quote is used without fetching.
	Quotes QuoteSource
	// Fallback substitutes quote.Fallback when fetching fails instead of
	// aborting the run.
	Fallback bool

	// Delay is waited between consecutive sends.
	Delay time.Duration

	// Now defaults to time.Now.
	Now func() time.Time
}

// Driver runs plans against a single transport.
type Driver struct {
	composer  Composer
	transport delivery.Transport
	quotes    QuoteSource
	fallback  bool
	delay     time.Duration
	now       func() time.Time
}

// New creates a Driver.
func New(cfg Config) *Driver {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Driver{
		composer:  cfg.Composer,
		transport: cfg.Transport,
		quotes:    cfg.Quotes,
		fallback:  cfg.Fallback,
		delay:     cfg.Delay,
		now:       now,
	}
}

// Run executes steps strictly in order. Each step completes its delivery
// before the next is composed. The first failure is returned as a
// *StepError and no later step is attempted.
func (d *Driver) Run(ctx context.Context, steps []Step) (Report, error) {
	report := Report{Planned: len(steps)}

	slog.Info("run started",
		"transport", d.transport.Name(),
		"steps", len(steps),
	)

	for i, step := range steps {
		if i > 0 && d.delay > 0 {
			if err := sleepWithContext(ctx, d.delay); err != nil {
				return report, &StepError{Step: step, Number: i + 1, Total: len(steps), Err: err}
			}
		}
		if err := ctx.Err(); err != nil {
			return report, &StepError{Step: step, Number: i + 1, Total: len(steps), Err: err}
		}

		if err := d.runStep(ctx, step); err != nil {
			slog.Error("step failed",
				"step", i+1,
				"shape", step.Shape.String(),
				"index", step.Index,
				"error", err,
			)
			return report, &StepError{Step: step, Number: i + 1, Total: len(steps), Err: err}
		}
		report.Sent++
	}

	slog.Info("run finished",
		"transport", d.transport.Name(),
		"sent", report.Sent,
	)
	return report, nil
}

func (d *Driver) runStep(ctx context.Context, step Step) error {
	content := compose.Content{Index: step.Index, Now: d.now()}

	if step.Shape.NeedsQuote() {
		q, err := d.fetchQuote(ctx)
		if err != nil {
			return err
		}
		content.Quote = q
	}

	msg, err := d.composer.Compose(step.Shape, content)
	if err != nil {
		return err
	}

	if err := d.transport.Send(ctx, msg); err != nil {
		return err
	}

	slog.Info("message sent",
		"shape", step.Shape.String(),
		"index", step.Index,
		"subject", msg.Subject,
		"transport", d.transport.Name(),
	)
	return nil
}

func (d *Driver) fetchQuote(ctx context.Context) (quote.Quote, error) {
	if d.quotes == nil {
		return quote.Fallback, nil
	}

	q, err := d.quotes.Fetch(ctx)
	if err == nil {
		return q, nil
	}
	if !d.fallback || ctx.Err() != nil {
		return quote.Quote{}, err
	}

	slog.Warn("quote fetch failed, using fallback quote",
		"error", err,
		"attribution", quote.Fallback.Attribution,
	)
	return quote.Fallback, nil
}

// sleepWithContext waits for the specified duration or until the context is cancelled.
func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
