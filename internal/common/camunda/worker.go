// internal/common/camunda/worker.go
package camunda

import (
	"context"
	"strings"
	"time"

	"certificate-workers/internal/common/config"
	"certificate-workers/internal/common/errors"
	"certificate-workers/internal/common/logger"
	"certificate-workers/internal/common/metrics"
	"certificate-workers/internal/common/validation"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

// JobHandler is implemented by every task-type handler.
type JobHandler interface {
	Handle(client worker.JobClient, job entities.Job)
}

// JobRecorder receives per-job outcomes. *observability.Observability implements it.
type JobRecorder interface {
	RecordJobProcessed(ctx context.Context, status string)
	RecordJobDuration(ctx context.Context, duration time.Duration, status string)
}

const (
	jobStatusHandled  = "handled"
	jobStatusRejected = "rejected"
)

// Starter opens job workers with registry-driven input validation and metrics around each job.
type Starter struct {
	client     zbc.Client
	validator  *validation.Validator
	errHandler *errors.ErrorHandler
	recorder   JobRecorder
	logger     logger.Logger
	workers    []worker.JobWorker
}

func NewStarter(client zbc.Client, validator *validation.Validator, log logger.Logger) *Starter {
	return &Starter{
		client:     client,
		validator:  validator,
		errHandler: errors.NewErrorHandler(log),
		logger:     log,
	}
}

// WithRecorder attaches an OpenTelemetry job recorder.
func (s *Starter) WithRecorder(r JobRecorder) *Starter {
	s.recorder = r
	return s
}

// Start opens a job worker for taskType unless it is disabled in wcfg.
func (s *Starter) Start(taskType string, wcfg config.WorkerConfig, handler JobHandler) {
	if !wcfg.Enabled {
		s.logger.Info("worker disabled", map[string]interface{}{"taskType": taskType})
		return
	}

	jw := s.client.NewJobWorker().
		JobType(taskType).
		Handler(s.Wrap(taskType, handler)).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(config.GetDuration(wcfg.Timeout)).
		Open()
	s.workers = append(s.workers, jw)

	s.logger.Info("worker started", map[string]interface{}{
		"taskType":      taskType,
		"maxJobsActive": wcfg.MaxJobsActive,
		"timeout_ms":    wcfg.Timeout,
	})
}

// Wrap returns the zeebe handler func: variables are checked against the registry schema before
// the handler runs, and invalid input is thrown as an INVALID_INPUT BPMN error.
func (s *Starter) Wrap(taskType string, handler JobHandler) worker.JobHandler {
	return func(client worker.JobClient, job entities.Job) {
		metrics.WorkerJobsActive.WithLabelValues(taskType).Inc()
		start := time.Now()
		status := jobStatusHandled
		defer func() {
			elapsed := time.Since(start)
			metrics.WorkerJobsActive.WithLabelValues(taskType).Dec()
			metrics.WorkerJobDuration.WithLabelValues(taskType).Observe(elapsed.Seconds())
			if s.recorder != nil {
				s.recorder.RecordJobProcessed(context.Background(), status)
				s.recorder.RecordJobDuration(context.Background(), elapsed, status)
			}
		}()

		if s.validator != nil {
			if res := s.validator.Validate(taskType, []byte(job.Variables)); !res.Valid {
				status = jobStatusRejected
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				Fail(ctx, client, job, taskType, s.errHandler, errors.NewInvalidInputError(strings.Join(res.GetErrorMessages(), "; ")))
				return
			}
		}

		handler.Handle(client, job)
	}
}

// Close stops every worker opened by this starter.
func (s *Starter) Close() {
	for _, w := range s.workers {
		w.Close()
		w.AwaitClose()
	}
}

// Complete sends the job's output variables and counts the completion.
func Complete(ctx context.Context, client worker.JobClient, job entities.Job, taskType string, output interface{}) error {
	cmd, err := client.NewCompleteJobCommand().JobKey(job.Key).VariablesFromObject(output)
	if err != nil {
		return err
	}
	if _, err := cmd.Send(ctx); err != nil {
		return err
	}
	metrics.WorkerJobsCompleted.WithLabelValues(taskType).Inc()
	return nil
}

// Fail routes err through the error handler (retry or BPMN error) and counts the failure.
func Fail(ctx context.Context, client worker.JobClient, job entities.Job, taskType string, h *errors.ErrorHandler, err error) {
	se := h.HandleJobError(ctx, client, job, err)
	metrics.WorkerJobsFailed.WithLabelValues(taskType, string(se.Code)).Inc()
}
