package issuance

import (
	"context"
	"errors"
	"testing"

	"certificate-workers/internal/common/logger"
	"certificate-workers/internal/common/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaga_CompensatesInReverse(t *testing.T) {
	var trail []string
	record := func(s string) func(context.Context) error {
		return func(context.Context) error {
			trail = append(trail, s)
			return nil
		}
	}
	boom := errors.New("boom")
	before := testutil.ToFloat64(metrics.IssuanceCompensations.WithLabelValues("saga-test-b"))

	err := NewSaga("test", logger.NewTestLogger(t)).Add(
		Step{Name: "saga-test-a", Run: record("run a"), Compensate: record("undo a")},
		Step{Name: "saga-test-no-undo", Run: record("run n")},
		Step{Name: "saga-test-b", Run: record("run b"), Compensate: record("undo b")},
		Step{Name: "saga-test-c", Run: func(context.Context) error { return boom }, Compensate: record("undo c")},
		Step{Name: "saga-test-d", Run: record("run d")},
	).Execute(context.Background())

	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "saga-test-c", stepErr.Step)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"run a", "run n", "run b", "undo b", "undo a"}, trail)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.IssuanceCompensations.WithLabelValues("saga-test-b")))
}

func TestSaga_HaltSkipsRemainingSteps(t *testing.T) {
	ran := false
	err := NewSaga("test", logger.NewNoOpLogger()).Add(
		Step{Name: "stop", Run: func(context.Context) error { return errHalt }},
		Step{Name: "never", Run: func(context.Context) error { ran = true; return nil }},
	).Execute(context.Background())

	assert.NoError(t, err)
	assert.False(t, ran)
}

func TestSaga_CompensationSurvivesCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	compensated := false

	err := NewSaga("test", logger.NewNoOpLogger()).Add(
		Step{
			Name: "upload",
			Run:  func(context.Context) error { return nil },
			Compensate: func(ctx context.Context) error {
				compensated = ctx.Err() == nil
				return nil
			},
		},
		Step{
			Name: "insert",
			Run: func(context.Context) error {
				cancel()
				return context.Canceled
			},
		},
	).Execute(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, compensated)
}

func TestSaga_CompensationFailureIsNotReturned(t *testing.T) {
	boom := errors.New("insert failed")
	err := NewSaga("test", logger.NewNoOpLogger()).Add(
		Step{
			Name:       "upload",
			Run:        func(context.Context) error { return nil },
			Compensate: func(context.Context) error { return errors.New("delete failed") },
		},
		Step{Name: "insert", Run: func(context.Context) error { return boom }},
	).Execute(context.Background())

	assert.ErrorIs(t, err, boom)
}
