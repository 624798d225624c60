package camunda

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"certificate-workers/internal/common/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func testClient(maxRetries int) *Client {
	return &Client{config: &ClientConfig{
		ConnectionTimeout: time.Second,
		MessageTTL:        DefaultMessageTTL,
		RetryConfig:       &RetryConfig{MaxRetries: maxRetries, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond},
	}}
}

func TestIsRetryableZeebeError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"unavailable", status.Error(codes.Unavailable, "gateway down"), true},
		{"deadline", status.Error(codes.DeadlineExceeded, "slow"), true},
		{"resource exhausted", status.Error(codes.ResourceExhausted, "backpressure"), true},
		{"not found", status.Error(codes.NotFound, "no such job"), false},
		{"invalid argument", status.Error(codes.InvalidArgument, "bad variables"), false},
		{"plain connection refused", stderrors.New("dial tcp: connection refused"), true},
		{"plain other", stderrors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isRetryableZeebeError(tt.err))
		})
	}
}

func TestMapZeebeError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want errors.ErrorCode
	}{
		{"deadline", status.Error(codes.DeadlineExceeded, "slow"), errors.ErrCodeTimeout},
		{"context deadline", context.DeadlineExceeded, errors.ErrCodeTimeout},
		{"not found", status.Error(codes.NotFound, "missing"), errors.ErrCodeNotFound},
		{"already exists", status.Error(codes.AlreadyExists, "dup"), errors.ErrorCode("BUSINESS_RULE_VIOLATION")},
		{"unauthenticated", status.Error(codes.Unauthenticated, "token"), errors.ErrCodeForbidden},
		{"other", stderrors.New("boom"), errors.ErrCodeExternalServiceError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errors.CodeOf(mapZeebeError(tt.err, "publish", 0)))
		})
	}
}

func TestExecuteWithRetry(t *testing.T) {
	t.Run("retries transient failures", func(t *testing.T) {
		calls := 0
		out, err := testClient(3).ExecuteWithRetry(context.Background(), func(context.Context) (interface{}, error) {
			calls++
			if calls < 3 {
				return nil, status.Error(codes.Unavailable, "gateway down")
			}
			return "ok", nil
		}, "topology")
		require.NoError(t, err)
		assert.Equal(t, "ok", out)
		assert.Equal(t, 3, calls)
	})

	t.Run("stops on permanent failure", func(t *testing.T) {
		calls := 0
		_, err := testClient(3).ExecuteWithRetry(context.Background(), func(context.Context) (interface{}, error) {
			calls++
			return nil, status.Error(codes.InvalidArgument, "bad")
		}, "publish")
		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		calls := 0
		_, err := testClient(2).ExecuteWithRetry(context.Background(), func(context.Context) (interface{}, error) {
			calls++
			return nil, status.Error(codes.Unavailable, "down")
		}, "publish")
		require.Error(t, err)
		assert.Equal(t, 3, calls)
		assert.True(t, errors.FromError(err).Retryable)
	})
}

func TestMessageID(t *testing.T) {
	assert.Equal(t, "certificate-issued:app-1", MessageID("certificate-issued", "app-1"))
}
