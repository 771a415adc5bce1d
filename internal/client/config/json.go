package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/wardrobe/internal/flagx"
	"github.com/dmitrijs2005/wardrobe/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
// It relies on timex.Duration so JSON can specify intervals either as
// strings like "3s" or as integer nanoseconds. Only fields present in the
// file are copied into the runtime Config.
type JsonConfig struct {
	APIBaseURL          *string         `json:"api_base_url"`
	HealthEndpointAddr  *string         `json:"health_endpoint_addr"`
	SessionSecret       *string         `json:"session_secret"`
	IdentityTestMode    *bool           `json:"identity_test_mode"`
	DatabasePath        *string         `json:"database_path"`
	DeviceKeyPath       *string         `json:"device_key_path"`
	GoogleClientID      *string         `json:"google_client_id"`
	GoogleClientSecret  *string         `json:"google_client_secret"`
	GoogleRedirectURL   *string         `json:"google_redirect_url"`
	OnlineCheckInterval *timex.Duration `json:"online_check_interval"`
	RequestTimeout      *timex.Duration `json:"request_timeout"`
	GoogleSignInTimeout *timex.Duration `json:"google_sign_in_timeout"`
	LogLevel            *string         `json:"log_level"`
	LogFormat           *string         `json:"log_format"`
}

// parseJson overlays Config with values loaded from the JSON file given
// via -c or -config. It panics on read or unmarshal errors.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	setString(&cfg.APIBaseURL, jc.APIBaseURL)
	setString(&cfg.HealthEndpointAddr, jc.HealthEndpointAddr)
	setString(&cfg.SessionSecret, jc.SessionSecret)
	setString(&cfg.DatabasePath, jc.DatabasePath)
	setString(&cfg.DeviceKeyPath, jc.DeviceKeyPath)
	setString(&cfg.GoogleClientID, jc.GoogleClientID)
	setString(&cfg.GoogleClientSecret, jc.GoogleClientSecret)
	setString(&cfg.GoogleRedirectURL, jc.GoogleRedirectURL)
	setString(&cfg.LogLevel, jc.LogLevel)
	setString(&cfg.LogFormat, jc.LogFormat)

	if jc.IdentityTestMode != nil {
		cfg.IdentityTestMode = *jc.IdentityTestMode
	}
	if jc.OnlineCheckInterval != nil {
		cfg.OnlineCheckInterval = jc.OnlineCheckInterval.Duration
	}
	if jc.RequestTimeout != nil {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
	if jc.GoogleSignInTimeout != nil {
		cfg.GoogleSignInTimeout = jc.GoogleSignInTimeout.Duration
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
