package config

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.LoadDefaults()

	assert.Equal(t, ":8080", cfg.EndpointAddrHTTP)
	assert.Equal(t, "docs-source", cfg.SourceContainer)
	assert.Equal(t, "docs-target", cfg.TargetContainer)
	assert.Equal(t, 24*time.Hour, cfg.SessionIdleThreshold)
	assert.Equal(t, 24*time.Hour, cfg.TargetRetentionThreshold)
	assert.Equal(t, 30*time.Minute, cfg.TranslationWaitTimeout)
	assert.NotEmpty(t, cfg.DatabaseDSN)
}

func TestJsonConfig_Unmarshal(t *testing.T) {
	raw := `{
		"endpoint_addr_http": ":9090",
		"database_dsn": "postgres://x",
		"secret_key": "k",
		"source_container": "src",
		"target_container": "dst",
		"session_idle_threshold": "12h",
		"target_retention_threshold": "72h",
		"translator_endpoint": "https://translator.example.com",
		"translator_api_key": "apikey",
		"translation_poll_interval": "10s",
		"translation_wait_timeout": "45m",
		"s3_root_user": "root",
		"s3_root_password": "pass",
		"s3_region": "eu-west-1",
		"s3_base_endpoint": "http://minio:9000/"
	}`

	c := &JsonConfig{}
	require.NoError(t, json.Unmarshal([]byte(raw), c))

	assert.Equal(t, ":9090", c.EndpointAddrHTTP)
	assert.Equal(t, 12*time.Hour, c.SessionIdleThreshold.Duration)
	assert.Equal(t, 72*time.Hour, c.TargetRetentionThreshold.Duration)
	assert.Equal(t, 10*time.Second, c.TranslationPollInterval.Duration)
	assert.Equal(t, 45*time.Minute, c.TranslationWaitTimeout.Duration)
	assert.Equal(t, "eu-west-1", c.S3Region)
}
