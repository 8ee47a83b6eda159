package config

import (
	"encoding/json"
	"os"

	"github.com/babelscrib/babelscrib/internal/flagx"
	"github.com/babelscrib/babelscrib/internal/timex"
)

// JsonConfig is the intermediate DTO used only for reading JSON
// configuration files. Interval fields use timex.Duration, which accepts
// both string values such as "24h" and integer nanoseconds. After
// unmarshalling, its fields are copied into the runtime Config.
type JsonConfig struct {
	EndpointAddrHTTP         string         `json:"endpoint_addr_http"`
	DatabaseDSN              string         `json:"database_dsn"`
	SecretKey                string         `json:"secret_key"`
	SourceContainer          string         `json:"source_container"`
	TargetContainer          string         `json:"target_container"`
	SessionIdleThreshold     timex.Duration `json:"session_idle_threshold"`
	TargetRetentionThreshold timex.Duration `json:"target_retention_threshold"`
	TranslatorEndpoint       string         `json:"translator_endpoint"`
	TranslatorAPIKey         string         `json:"translator_api_key"`
	TranslationPollInterval  timex.Duration `json:"translation_poll_interval"`
	TranslationWaitTimeout   timex.Duration `json:"translation_wait_timeout"`
	S3RootUser               string         `json:"s3_root_user"`
	S3RootPassword           string         `json:"s3_root_password"`
	S3Region                 string         `json:"s3_region"`
	S3BaseEndpoint           string         `json:"s3_base_endpoint"`
}

// parseJson loads configuration values from the JSON file named by the
// -c/-config flags into the provided Config. If no file is named, nothing is
// loaded. An unreadable or invalid file panics: a half-applied config is
// worse than a failed start.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()

	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	config.EndpointAddrHTTP = c.EndpointAddrHTTP
	config.DatabaseDSN = c.DatabaseDSN
	config.SecretKey = c.SecretKey
	config.SourceContainer = c.SourceContainer
	config.TargetContainer = c.TargetContainer
	config.SessionIdleThreshold = c.SessionIdleThreshold.Duration
	config.TargetRetentionThreshold = c.TargetRetentionThreshold.Duration
	config.TranslatorEndpoint = c.TranslatorEndpoint
	config.TranslatorAPIKey = c.TranslatorAPIKey
	config.TranslationPollInterval = c.TranslationPollInterval.Duration
	config.TranslationWaitTimeout = c.TranslationWaitTimeout.Duration
	config.S3RootUser = c.S3RootUser
	config.S3RootPassword = c.S3RootPassword
	config.S3Region = c.S3Region
	config.S3BaseEndpoint = c.S3BaseEndpoint
}
