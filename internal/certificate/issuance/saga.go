// Package issuance turns an approved application into a stored, anchored certificate.
package issuance

import (
	"context"
	"errors"
	"fmt"

	"certificate-workers/internal/common/logger"
	"certificate-workers/internal/common/metrics"
)

// errHalt ends a saga early without failure and without compensation.
var errHalt = errors.New("saga halted")

// Step is one named action. Compensate, when set, undoes Run after a later step fails.
type Step struct {
	Name       string
	Run        func(ctx context.Context) error
	Compensate func(ctx context.Context) error
}

// StepError reports which step failed.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

type Saga struct {
	name   string
	steps  []Step
	logger logger.Logger
}

func NewSaga(name string, log logger.Logger) *Saga {
	return &Saga{name: name, logger: log}
}

func (s *Saga) Add(steps ...Step) *Saga {
	s.steps = append(s.steps, steps...)
	return s
}

// Execute runs the steps in order. When a step fails, the compensations of the steps that
// already completed run in reverse order and the step's error is returned as a *StepError.
// Compensation failures are logged and counted, never returned.
func (s *Saga) Execute(ctx context.Context) error {
	done := make([]Step, 0, len(s.steps))

	for _, step := range s.steps {
		err := step.Run(ctx)
		if errors.Is(err, errHalt) {
			return nil
		}
		if err != nil {
			s.compensate(ctx, done, step.Name)
			return &StepError{Step: step.Name, Err: err}
		}
		done = append(done, step)
	}
	return nil
}

func (s *Saga) compensate(ctx context.Context, done []Step, failed string) {
	// Compensations must run even if the caller's context is what failed the step.
	ctx = context.WithoutCancel(ctx)

	for i := len(done) - 1; i >= 0; i-- {
		step := done[i]
		if step.Compensate == nil {
			continue
		}
		metrics.IssuanceCompensations.WithLabelValues(step.Name).Inc()
		if err := step.Compensate(ctx); err != nil {
			s.logger.Error("compensation failed", map[string]interface{}{
				"saga":       s.name,
				"step":       step.Name,
				"failedStep": failed,
				"error":      err,
			})
			continue
		}
		s.logger.Warn("compensated step", map[string]interface{}{
			"saga":       s.name,
			"step":       step.Name,
			"failedStep": failed,
		})
	}
}
