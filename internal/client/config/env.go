package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"

	"github.com/dmitrijs2005/wardrobe/internal/flagx"
	"github.com/joho/godotenv"
)

const defaultEnvFile = ".env"

// loadEnvFile loads the dotenv file named by -env, or ./.env when present.
// Variables already set in the process environment are not overridden.
func loadEnvFile() {
	path := flagx.EnvFileFlags()
	explicit := path != ""
	if !explicit {
		path = defaultEnvFile
	}

	err := godotenv.Load(path)
	if err == nil {
		return
	}
	if !explicit && errors.Is(err, fs.ErrNotExist) {
		return
	}
	panic(err)
}

// parseEnv overlays Config with WARDROBE_* and GOOGLE_* variables.
func parseEnv(cfg *Config) {
	loadEnvFile()

	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}

	str("WARDROBE_API_URL", &cfg.APIBaseURL)
	str("WARDROBE_HEALTH_ADDR", &cfg.HealthEndpointAddr)
	str("WARDROBE_SESSION_SECRET", &cfg.SessionSecret)
	str("WARDROBE_DB", &cfg.DatabasePath)
	str("WARDROBE_DEVICE_KEY", &cfg.DeviceKeyPath)
	str("WARDROBE_LOG_LEVEL", &cfg.LogLevel)
	str("WARDROBE_LOG_FORMAT", &cfg.LogFormat)
	str("GOOGLE_CLIENT_ID", &cfg.GoogleClientID)
	str("GOOGLE_CLIENT_SECRET", &cfg.GoogleClientSecret)
	str("GOOGLE_REDIRECT_URL", &cfg.GoogleRedirectURL)

	if v, ok := os.LookupEnv("WARDROBE_TEST_MODE"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			panic(err)
		}
		cfg.IdentityTestMode = b
	}
}
