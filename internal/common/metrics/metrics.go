// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	// Certificate lifecycle

	CertificatesIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "certificates_issued_total",
			Help: "Certificates persisted by the issuer",
		},
	)

	CertificatesRevoked = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "certificates_revoked_total",
			Help: "Certificates moved to REVOKED",
		},
	)

	IssuanceCompensations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "certificate_issuance_compensations_total",
			Help: "Compensating actions run after a failed issuance step",
		},
		[]string{"step"},
	)

	LedgerOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "certificate_ledger_operations_total",
			Help: "Ledger calls by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	VerificationVerdicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "certificate_verification_verdicts_total",
			Help: "Verification verdicts by reason code",
		},
		[]string{"valid", "reason"},
	)
)
