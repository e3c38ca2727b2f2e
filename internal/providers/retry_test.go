package providers

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/tycode-ai/tycode/internal/events"
)

type scriptedProvider struct {
	responses []Response
	errs      []error
	calls     int
}

func (p *scriptedProvider) Converse(ctx context.Context, req Request) (Response, error) {
	i := p.calls
	p.calls++
	if i < len(p.errs) && p.errs[i] != nil {
		return Response{}, p.errs[i]
	}
	if i < len(p.responses) {
		return p.responses[i], nil
	}
	return Response{}, errors.New("scriptedProvider: no more scripted responses")
}

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
		RateLimit:   rate.Inf,
		RateBurst:   100,
	}
}

func TestRetryingProvider_SucceedsAfterTransientErrors(t *testing.T) {
	inner := &scriptedProvider{
		errs:      []error{&TransientError{Err: errors.New("rate limited")}, &TransientError{Err: errors.New("rate limited")}},
		responses: []Response{{}, {}, {Message: Envelope{Role: "assistant"}}},
	}
	sink := events.NewSink(10)
	p := NewRetryingProvider(inner, fastRetryConfig(), sink)

	resp, err := p.Converse(context.Background(), Request{Model: "test-model"})
	if err != nil {
		t.Fatalf("Converse: %v", err)
	}
	if resp.Message.Role != "assistant" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if inner.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", inner.calls)
	}
}

func TestRetryingProvider_InputTooLongNotRetried(t *testing.T) {
	inner := &scriptedProvider{errs: []error{ErrInputTooLong}}
	p := NewRetryingProvider(inner, fastRetryConfig(), nil)

	_, err := p.Converse(context.Background(), Request{})
	if !errors.Is(err, ErrInputTooLong) {
		t.Fatalf("expected ErrInputTooLong, got %v", err)
	}
	if inner.calls != 1 {
		t.Fatalf("expected exactly 1 attempt for InputTooLong, got %d", inner.calls)
	}
}

func TestRetryingProvider_NonTransientErrorNotRetried(t *testing.T) {
	boom := errors.New("boom: malformed request")
	inner := &scriptedProvider{errs: []error{boom}}
	p := NewRetryingProvider(inner, fastRetryConfig(), nil)

	_, err := p.Converse(context.Background(), Request{})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom to propagate unwrapped, got %v", err)
	}
	if inner.calls != 1 {
		t.Fatalf("expected exactly 1 attempt for a non-transient error, got %d", inner.calls)
	}
}

func TestRetryingProvider_ExhaustsMaxAttempts(t *testing.T) {
	transient := &TransientError{Err: errors.New("still rate limited")}
	inner := &scriptedProvider{errs: []error{transient, transient, transient}}
	cfg := fastRetryConfig()
	cfg.MaxAttempts = 3

	sink := events.NewSink(10)
	p := NewRetryingProvider(inner, cfg, sink)

	_, err := p.Converse(context.Background(), Request{})
	if err == nil {
		t.Fatalf("expected error after exhausting retries")
	}
	if inner.calls != 3 {
		t.Fatalf("expected exactly MaxAttempts=3 calls, got %d", inner.calls)
	}

	history := sink.History()
	retryEvents := 0
	for _, e := range history {
		if e.Kind == events.KindRetryAttempt {
			retryEvents++
		}
	}
	if retryEvents != 2 {
		t.Fatalf("expected 2 RetryAttempt events (before attempts 2 and 3), got %d", retryEvents)
	}
}

func TestRetryingProvider_RetryAfterOverridesBackoffCurve(t *testing.T) {
	p := &RetryingProvider{Config: RetryConfig{BaseDelay: time.Second, MaxDelay: time.Minute}}
	if got := p.backoffDelay(1, 7); got != 7*time.Second {
		t.Fatalf("expected RetryAfter to override backoff curve, got %v", got)
	}
}

func TestRetryingProvider_BackoffDelayEscalatesAndCaps(t *testing.T) {
	p := &RetryingProvider{Config: RetryConfig{BaseDelay: time.Second, MaxDelay: 3 * time.Second}}
	if got := p.backoffDelay(1, 0); got != time.Second {
		t.Fatalf("attempt 1: expected 1s, got %v", got)
	}
	if got := p.backoffDelay(2, 0); got != 2*time.Second {
		t.Fatalf("attempt 2: expected 2s, got %v", got)
	}
	if got := p.backoffDelay(10, 0); got != 3*time.Second {
		t.Fatalf("attempt 10: expected capped at 3s, got %v", got)
	}
}
