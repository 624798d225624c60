package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"certificate-workers/internal/common/config"
	"certificate-workers/internal/common/logger"
	"certificate-workers/pkg/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ok(context.Context) error { return nil }

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	newRouter(nil, logger.NewNoOpLogger()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)
}

func TestReadiness(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]readinessCheck
		wantStatus int
		wantBody   string
	}{
		{
			name:       "all dependencies up",
			checks:     map[string]readinessCheck{"postgres": ok, "redis": ok},
			wantStatus: http.StatusOK,
			wantBody:   "ready",
		},
		{
			name: "ledger unreachable",
			checks: map[string]readinessCheck{
				"postgres": ok,
				"ledger":   func(context.Context) error { return errors.New("connection refused") },
			},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   "not ready",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			newRouter(tt.checks, logger.NewTestLogger(t)).
				ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			var body struct {
				Status string            `json:"status"`
				Checks map[string]string `json:"checks"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantBody, body.Status)
			assert.Len(t, body.Checks, len(tt.checks))
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	rec := httptest.NewRecorder()
	newRouter(nil, logger.NewNoOpLogger()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTimeoutFor(t *testing.T) {
	cfg := &config.Config{Workers: map[string]config.WorkerConfig{
		"issue-certificate":  {Enabled: true, Timeout: 45000},
		"verify-certificate": {Enabled: true},
	}}

	reg := &registry.ActivityRegistry{Activities: []registry.Activity{
		{ID: "certificate.lifecycle.issue", TaskType: "issue-certificate", Timeout: "20s"},
		{ID: "certificate.public.verify", TaskType: "verify-certificate", Timeout: "15s"},
	}}

	assert.Equal(t, 45*time.Second, timeoutFor(cfg, reg, "issue-certificate", time.Minute))
	assert.Equal(t, 15*time.Second, timeoutFor(cfg, reg, "verify-certificate", 10*time.Second))
	assert.Equal(t, 10*time.Second, timeoutFor(cfg, &registry.ActivityRegistry{}, "verify-certificate", 10*time.Second))
	// unknown workers fall back to the 30s worker default
	assert.Equal(t, 30*time.Second, timeoutFor(cfg, reg, "unknown", time.Second))
}
