package chat

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/openai/openai-go/v3"

	"github.com/rcliao/chat-memory/internal/model"
)

// DefaultMaxRetries is used when RetryCompleter.MaxRetries is negative.
const DefaultMaxRetries = 3

// RetryCompleter retries transient failures of the wrapped completer with
// exponential backoff. MaxRetries zero makes a single attempt.
type RetryCompleter struct {
	Next            Completer
	MaxRetries      int
	InitialInterval time.Duration // zero keeps the backoff default
	Logger          *slog.Logger
}

func (r *RetryCompleter) Complete(ctx context.Context, msgs []model.Message, maxTokens int) (string, error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	retries := r.MaxRetries
	if retries < 0 {
		retries = DefaultMaxRetries
	}
	var policy backoff.BackOff = &backoff.StopBackOff{}
	if retries > 0 {
		exp := backoff.NewExponentialBackOff()
		if r.InitialInterval > 0 {
			exp.InitialInterval = r.InitialInterval
		}
		// WithMaxRetries treats zero as unlimited
		policy = backoff.WithMaxRetries(exp, uint64(retries))
	}
	b := backoff.WithContext(policy, ctx)

	var reply string
	attempt := 0
	op := func() error {
		attempt++
		out, err := r.Next.Complete(ctx, msgs, maxTokens)
		if err != nil {
			if !Retryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		reply = out
		return nil
	}
	notify := func(err error, wait time.Duration) {
		logger.Warn("completion failed, retrying", "attempt", attempt, "wait", wait, "err", err)
	}
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		return "", err
	}
	return reply, nil
}

// Retryable reports whether a completion error may succeed on retry:
// rate limits, server errors and transport failures.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrEmptyCompletion) {
		return true
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}
	return true
}
