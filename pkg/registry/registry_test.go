package registry

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_SaveLoadAndLookup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")
	reg := &ActivityRegistry{
		Version: "1.0.0",
		Activities: []Activity{
			{ID: "certificate.lifecycle.issue", TaskType: "issue-certificate", Retries: 3},
			{ID: "certificate.public.verify", TaskType: "verify-certificate"},
		},
	}
	require.NoError(t, reg.Save(path))
	assert.NotEmpty(t, reg.LastUpdated)

	loaded, err := LoadRegistry(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"issue-certificate", "verify-certificate"}, loaded.TaskTypes())

	a, ok := loaded.FindByTaskType("issue-certificate")
	require.True(t, ok)
	assert.Equal(t, 3, a.Retries)

	_, ok = loaded.FindByTaskType("missing")
	assert.False(t, ok)
}

func TestActivity_Helpers(t *testing.T) {
	reg := &ActivityRegistry{Activities: []Activity{
		{ID: "certificate.lifecycle.issue", TaskType: "issue-certificate", Timeout: "45s"},
		{ID: "certificate.public.verify", TaskType: "verify-certificate", Timeout: "soon"},
	}}

	a, ok := reg.FindByID("certificate.lifecycle.issue")
	require.True(t, ok)
	assert.Equal(t, 45*time.Second, a.TimeoutDuration())

	b, ok := reg.FindByID("certificate.public.verify")
	require.True(t, ok)
	assert.Zero(t, b.TimeoutDuration())

	_, ok = reg.FindByID("missing")
	assert.False(t, ok)

	assert.True(t, ValidStatus(StatusImplemented))
	assert.False(t, ValidStatus("done"))
}

func TestLoadRegistry_BadJSON(t *testing.T) {
	_, err := LoadRegistry(filepath.Join("testdata", "does-not-exist.json"))
	assert.Error(t, err)
}
