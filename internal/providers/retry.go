package providers

import (
	"context"
	"errors"
	"math"
	"time"

	"golang.org/x/time/rate"

	"github.com/tycode-ai/tycode/internal/events"
)

// RetryConfig bounds RetryingProvider's exponential backoff curve.
type RetryConfig struct {
	MaxAttempts  int
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	RateLimit    rate.Limit // calls/sec ceiling applied before every attempt, including the first
	RateBurst    int
}

// DefaultRetryConfig matches spec §4.7 step 3's "retry with exponential
// backoff... up to a bounded max" for transient errors, with a
// conservative steady-state call rate so a burst of actor turns doesn't
// immediately trip a vendor's own rate limiter.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 5,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    30 * time.Second,
		RateLimit:   rate.Limit(2),
		RateBurst:   4,
	}
}

// RetryingProvider wraps a Provider with exponential backoff over
// TransientError and a steady-state rate limiter, emitting a
// RetryAttempt event (spec §4.7 step 3) before each retried attempt.
// ErrInputTooLong is never retried here: the chat actor owns that path
// (trigger compaction, retry at the actor level, not the provider level).
//
// Grounded on the teacher's internal/agent retry wrapper pattern
// (bounded exponential backoff around a transient-vs-permanent error
// split) generalized with a token-bucket limiter from
// oasis/goclaw's rate-limited client wrapper, since the teacher has no
// independent client-side limiter of its own.
type RetryingProvider struct {
	Inner   Provider
	Config  RetryConfig
	Sink    *events.Sink
	limiter *rate.Limiter
}

// NewRetryingProvider constructs a RetryingProvider ready for use.
func NewRetryingProvider(inner Provider, cfg RetryConfig, sink *events.Sink) *RetryingProvider {
	return &RetryingProvider{
		Inner:   inner,
		Config:  cfg,
		Sink:    sink,
		limiter: rate.NewLimiter(cfg.RateLimit, cfg.RateBurst),
	}
}

func (p *RetryingProvider) Converse(ctx context.Context, req Request) (Response, error) {
	maxAttempts := p.Config.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := p.limiter.Wait(ctx); err != nil {
			return Response{}, err
		}

		resp, err := p.Inner.Converse(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if errors.Is(err, ErrInputTooLong) {
			return Response{}, err
		}

		var transient *TransientError
		if !errors.As(err, &transient) {
			return Response{}, err
		}

		if attempt == maxAttempts {
			break
		}

		delay := p.backoffDelay(attempt, transient.RetryAfter)
		p.emitRetry(req.Model, attempt, maxAttempts, delay, transient.Err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Response{}, ctx.Err()
		case <-timer.C:
		}
	}

	return Response{}, lastErr
}

func (p *RetryingProvider) backoffDelay(attempt int, retryAfterSeconds int) time.Duration {
	if retryAfterSeconds > 0 {
		return time.Duration(retryAfterSeconds) * time.Second
	}

	base := p.Config.BaseDelay
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	max := p.Config.MaxDelay
	if max <= 0 {
		max = 30 * time.Second
	}

	delay := time.Duration(float64(base) * math.Pow(2, float64(attempt-1)))
	if delay > max {
		delay = max
	}
	return delay
}

func (p *RetryingProvider) emitRetry(model string, attempt, maxAttempts int, delay time.Duration, cause error) {
	if p.Sink == nil {
		return
	}
	reason := ""
	if cause != nil {
		reason = cause.Error()
	}
	p.Sink.Send(events.Event{
		Kind: events.KindRetryAttempt,
		Payload: events.RetryAttemptPayload{
			Attempt:     attempt,
			MaxAttempts: maxAttempts,
			Delay:       delay,
			Reason:      reason,
		},
	})
}
