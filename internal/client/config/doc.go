// Package config loads runtime configuration for the wardrobe CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Environment variables, optionally seeded from a dotenv file given with
//     -env (default ./.env when it exists). Existing variables win over the file.
//  3. Optional JSON file selected via flags: -c or -config.
//  4. Command-line flags (see parseFlags), which override earlier values.
//
// Environment
//
//	WARDROBE_API_URL, WARDROBE_HEALTH_ADDR, WARDROBE_SESSION_SECRET,
//	WARDROBE_DB, WARDROBE_DEVICE_KEY, WARDROBE_TEST_MODE,
//	WARDROBE_LOG_LEVEL, WARDROBE_LOG_FORMAT,
//	GOOGLE_CLIENT_ID, GOOGLE_CLIENT_SECRET, GOOGLE_REDIRECT_URL
//
// # JSON schema
//
// The JSON loader uses timex.Duration for intervals, so values can be either
// strings like "3s" or integer nanoseconds:
//
//	{
//	  "api_base_url": "http://127.0.0.1:8080",
//	  "health_endpoint_addr": "127.0.0.1:50051",
//	  "online_check_interval": "3s",
//	  "request_timeout": "15s",
//	  "identity_test_mode": true
//	}
package config
