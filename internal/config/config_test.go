package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_PORT", "")
	t.Setenv("LOCK_BACKEND", "")
	t.Setenv("CRM_ASSIGNMENT_POLICY", "")
	t.Setenv("DOWNSTREAM_CONNECT_TIMEOUT_SECONDS", "")
	t.Setenv("DOWNSTREAM_READ_TIMEOUT_SECONDS", "")
	t.Setenv("CRM_SOURCE_SERVICE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.App.Addr())
	assert.Equal(t, LockBackendLocal, cfg.Redis.LockBackend)
	assert.Equal(t, AssignmentPolicyNonBlank, cfg.Requests.AssignmentPolicy)
	assert.Equal(t, 10*time.Second, cfg.Downstream.ConnectTimeout())
	assert.Equal(t, 30*time.Second, cfg.Downstream.ReadTimeout())
	assert.Equal(t, "my-crm-service", cfg.Downstream.SourceService)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("OTHER_SERVICE_URL", "http://other.local/")
	t.Setenv("LOCK_BACKEND", "REDIS")
	t.Setenv("CRM_ASSIGNMENT_POLICY", "legacy_blank")
	t.Setenv("DOWNSTREAM_READ_TIMEOUT_SECONDS", "5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://other.local/api/external/actions", cfg.Downstream.ExternalActionsURL())
	assert.Equal(t, LockBackendRedis, cfg.Redis.LockBackend)
	assert.Equal(t, AssignmentPolicyLegacyBlank, cfg.Requests.AssignmentPolicy)
	assert.Equal(t, 5*time.Second, cfg.Downstream.ReadTimeout())
}

func TestLoadRejectsUnknownLockBackend(t *testing.T) {
	t.Setenv("LOCK_BACKEND", "zookeeper")

	_, err := Load()
	assert.ErrorContains(t, err, "LOCK_BACKEND")
}

func TestLoadRejectsBadRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "one")

	_, err := Load()
	assert.ErrorContains(t, err, "REDIS_DB")
}
