// Package executor fans a prompt out into N concurrent upstream calls and
// joins the settled outcomes. One failed call never aborts its siblings and
// never fails the batch on its own.
package executor

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hung319/magicstudio2api/internal/models"
)

// Generator is the single upstream primitive the executor drives.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Metrics receives one observation per settled upstream call.
type Metrics interface {
	RecordUpstreamCall(outcome string, duration time.Duration)
}

// Executor runs generation batches against one upstream.
type Executor struct {
	upstream Generator
	metrics  Metrics
}

func New(upstream Generator, metrics Metrics) *Executor {
	return &Executor{upstream: upstream, metrics: metrics}
}

// Execute issues count independent calls and waits for all of them to settle.
// The returned batch always holds exactly count outcomes; callers decide
// whether a partially failed batch is usable.
func (e *Executor) Execute(ctx context.Context, prompt string, count int) models.BatchResult {
	if count < 1 {
		count = 1
	}

	outcomes := make(models.BatchResult, count)
	var g errgroup.Group
	for i := 0; i < count; i++ {
		slot := i
		g.Go(func() error {
			start := time.Now()
			b64, err := e.upstream.Generate(ctx, prompt)
			if err != nil {
				outcomes[slot] = models.Rejected(err.Error())
				e.record("rejected", time.Since(start))
				return nil
			}
			outcomes[slot] = models.Fulfilled(b64)
			e.record("fulfilled", time.Since(start))
			return nil
		})
	}
	// Tasks store their outcome and return nil, so Wait is a settle-all
	// join rather than a first-error short circuit.
	_ = g.Wait()

	return outcomes
}

func (e *Executor) record(outcome string, duration time.Duration) {
	if e.metrics == nil {
		return
	}
	e.metrics.RecordUpstreamCall(outcome, duration)
}

// apiError wraps an error with an HTTP status code so callers can map it
// directly to OpenAI-compatible responses.
type apiError struct {
	status int
	msg    string
}

func (e apiError) Error() string { return e.msg }

// NewAPIError creates an error tied to an HTTP status code.
func NewAPIError(status int, msg string) error {
	return apiError{status: status, msg: msg}
}

// AsAPIError extracts the HTTP status information when available.
func AsAPIError(err error) (int, string, bool) {
	var apiErr apiError
	if errors.As(err, &apiErr) {
		return apiErr.status, apiErr.msg, true
	}
	return 0, "", false
}
