package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/wardrobe/internal/flagx"
	"github.com/dmitrijs2005/wardrobe/internal/timex"
)

// JsonConfig is the DTO read from the JSON configuration file. Durations use
// timex.Duration so both "15m" and integer nanoseconds are accepted.
// Empty or missing fields keep the current value.
type JsonConfig struct {
	EndpointAddrHTTP   string         `json:"endpoint_addr_http"`
	EndpointAddrHealth string         `json:"endpoint_addr_health"`
	DatabaseDSN        string         `json:"database_dsn"`
	SecretKey          string         `json:"secret_key"`
	S3RootUser         string         `json:"s3_root_user"`
	S3RootPassword     string         `json:"s3_root_password"`
	S3Bucket           string         `json:"s3_bucket"`
	S3Region           string         `json:"s3_region"`
	S3BaseEndpoint     string         `json:"s3_base_endpoint"`
	PresignTTL         timex.Duration `json:"presign_ttl"`
	ShutdownTimeout    timex.Duration `json:"shutdown_timeout"`
	LogLevel           string         `json:"log_level"`
	LogFormat          string         `json:"log_format"`
}

// parseJson loads configuration values from the file given by the -c or
// -config flag. Without the flag nothing is loaded. The function panics if
// the file cannot be read or contains invalid JSON.
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

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	for _, f := range []struct {
		dst *string
		v   string
	}{
		{&config.EndpointAddrHTTP, c.EndpointAddrHTTP},
		{&config.EndpointAddrHealth, c.EndpointAddrHealth},
		{&config.DatabaseDSN, c.DatabaseDSN},
		{&config.SecretKey, c.SecretKey},
		{&config.S3RootUser, c.S3RootUser},
		{&config.S3RootPassword, c.S3RootPassword},
		{&config.S3Bucket, c.S3Bucket},
		{&config.S3Region, c.S3Region},
		{&config.S3BaseEndpoint, c.S3BaseEndpoint},
		{&config.LogLevel, c.LogLevel},
		{&config.LogFormat, c.LogFormat},
	} {
		if f.v != "" {
			*f.dst = f.v
		}
	}

	if c.PresignTTL.Duration > 0 {
		config.PresignTTL = c.PresignTTL.Duration
	}
	if c.ShutdownTimeout.Duration > 0 {
		config.ShutdownTimeout = c.ShutdownTimeout.Duration
	}
}
