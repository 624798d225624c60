package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"certificate-workers/internal/certificate/signature"
	"certificate-workers/pkg/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// ==========================================
// Keys
// ==========================================

func TestKeygenAndSign(t *testing.T) {
	out, err := run(t, "keygen", "--bits", "2048", "--key-id", "approver-1")
	require.NoError(t, err)

	var kp signature.KeyPair
	require.NoError(t, json.Unmarshal([]byte(out), &kp))
	assert.NotEmpty(t, kp.PublicKey)
	assert.Contains(t, string(kp.PublicJWK), `"kid":"approver-1"`)

	keyFile := filepath.Join(t.TempDir(), "approver.key")
	require.NoError(t, os.WriteFile(keyFile, []byte(kp.PrivateKey+"\n"), 0o600))

	out, err = run(t, "sign", "--application", "app-1", "--approver", "t-1",
		"--action", "approve", "--timestamp", "1717243200000", "--key-file", keyFile)
	require.NoError(t, err)

	var signed signOutput
	require.NoError(t, json.Unmarshal([]byte(out), &signed))
	assert.Equal(t, int64(1717243200000), signed.SignedTimestamp)
	assert.Contains(t, signed.Payload, "action=APPROVE")

	ok, err := signature.Verify(signed.Payload, signed.Signature, kp.PublicKey)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSign_MissingFlags(t *testing.T) {
	_, err := run(t, "sign", "--application", "app-1")
	require.Error(t, err)
}

// ==========================================
// Registry
// ==========================================

func TestRegistry_AddUpdateValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "configs", "activity-registry.json")

	_, err := run(t, "--registry", path, "registry", "add",
		"--id", "certificate.lifecycle.issue", "--display-name", "Issue Certificate",
		"--category", "certificate", "--task-type", "issue-certificate")
	require.NoError(t, err)

	_, err = run(t, "--registry", path, "registry", "add",
		"--id", "certificate.lifecycle.issue", "--display-name", "Again",
		"--category", "certificate", "--task-type", "issue-again")
	assert.ErrorContains(t, err, "already exists")

	_, err = run(t, "--registry", path, "registry", "update",
		"--id", "certificate.lifecycle.issue", "--field", "status", "--value", "verified")
	require.NoError(t, err)

	out, err := run(t, "--registry", path, "registry", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "Found 1 activities")

	reg, err := registry.LoadRegistry(path)
	require.NoError(t, err)
	assert.Equal(t, registry.StatusVerified, reg.Activities[0].ImplementationStatus)
	assert.NotEmpty(t, reg.LastUpdated)
}

func TestRegistry_Update_Errors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "activity-registry.json")
	require.NoError(t, addActivity(path, registry.Activity{
		ID: "certificate.audit.query", DisplayName: "Query Audit", Category: "audit", TaskType: "query-verification-audit",
	}))

	tests := []struct {
		name    string
		id      string
		field   string
		value   string
		wantErr string
	}{
		{"unknown activity", "certificate.audit.missing", "status", "x", "not found"},
		{"unknown field", "certificate.audit.query", "owner", "x", "unknown field"},
		{"bad retries", "certificate.audit.query", "retries", "three", "invalid retries"},
		{"bad status", "certificate.audit.query", "status", "done", "invalid status"},
		{"bad timeout", "certificate.audit.query", "timeout", "soon", "invalid timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorContains(t, updateActivity(path, tt.id, tt.field, tt.value), tt.wantErr)
		})
	}
}

func TestValidateRegistry(t *testing.T) {
	tests := []struct {
		name    string
		reg     registry.ActivityRegistry
		wantErr string
	}{
		{"empty", registry.ActivityRegistry{}, "no activities"},
		{
			name: "missing display name",
			reg: registry.ActivityRegistry{Activities: []registry.Activity{
				{ID: "certificate.lifecycle.issue", TaskType: "issue-certificate", Category: "certificate"},
			}},
			wantErr: "DisplayName",
		},
		{
			name: "bad naming",
			reg: registry.ActivityRegistry{Activities: []registry.Activity{
				{ID: "Issue", DisplayName: "Issue", TaskType: "issue-certificate", Category: "certificate"},
			}},
			wantErr: "Issue",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorContains(t, validateRegistry(&tt.reg), tt.wantErr)
		})
	}
}

func TestShippedRegistryIsValid(t *testing.T) {
	reg, err := registry.LoadRegistry("../../configs/activity-registry.json")
	require.NoError(t, err)
	require.NoError(t, validateRegistry(reg))
	assert.Len(t, reg.Activities, 9)
}
