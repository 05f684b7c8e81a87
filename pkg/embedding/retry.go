package embedding

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	openai "github.com/sashabaranov/go-openai"
)

// RetryEmbedder decorates an Embedder with bounded exponential backoff on
// transient failures (rate limits, server errors, network errors). The
// caller's context is the overall timeout budget; non-transient errors
// surface immediately.
type RetryEmbedder struct {
	inner      Embedder
	maxElapsed time.Duration
}

// WithRetry wraps an embedder with retries. maxElapsed bounds the total
// retry window; zero selects one minute.
func WithRetry(inner Embedder, maxElapsed time.Duration) *RetryEmbedder {
	if maxElapsed <= 0 {
		maxElapsed = time.Minute
	}
	return &RetryEmbedder{inner: inner, maxElapsed: maxElapsed}
}

// EmbedDocuments retries the batch as a whole. Partial results are never
// kept across attempts.
func (r *RetryEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	var vectors [][]float32
	err := r.retry(ctx, func() error {
		var err error
		vectors, err = r.inner.EmbedDocuments(ctx, texts)
		return err
	})
	if err != nil {
		return nil, err
	}
	return vectors, nil
}

// EmbedQuery retries a single-query embedding.
func (r *RetryEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	err := r.retry(ctx, func() error {
		var err error
		vec, err = r.inner.EmbedQuery(ctx, text)
		return err
	})
	if err != nil {
		return nil, err
	}
	return vec, nil
}

func (r *RetryEmbedder) retry(ctx context.Context, op func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = r.maxElapsed

	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if !isTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(policy, ctx))
}

// isTransient classifies rate-limit, server-side and network errors as
// retryable. Everything else (bad request, auth, malformed response) is
// permanent.
func isTransient(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return errors.Is(err, context.DeadlineExceeded)
}
