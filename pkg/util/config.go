package util

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ReadConfig loads ./data/config.yaml when present and lets environment variables
// override every key. A missing file is not an error.
func ReadConfig() error {
	viper.SetConfigName("config")
	viper.AddConfigPath("./data/")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	SetConfigDefaults()

	err := viper.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("fatal error config file: %w", err)
	}
	return nil
}

func SetConfigDefaults() {
	viper.SetDefault("API_PORT", 6060)
	viper.SetDefault("API_TIMEOUT", "30s")
	viper.SetDefault("USE_RATE_LIMIT", false)
	viper.SetDefault("RATE_LIMIT_RPS", 20)
	viper.SetDefault("RATE_LIMIT_BURST", 40)
	viper.SetDefault("CORS_ALLOWED_ORIGINS", []string{"*"})
	viper.SetDefault("HTTP_SERVER_READ_TIMEOUT", 10*time.Second)
	viper.SetDefault("HTTP_SERVER_WRITE_TIMEOUT", 5*time.Second)
	viper.SetDefault("HTTP_SERVER_IDLE_TIMEOUT", 60*time.Second)
	viper.SetDefault("HTTP_SERVER_READ_HEADER_TIMEOUT", 5*time.Second)

	viper.SetDefault("BACKEND_URL", "http://backend:8000")
	viper.SetDefault("BACKEND_TOKEN", "")
	viper.SetDefault("BACKEND_TIMEOUT", 5*time.Second)
	viper.SetDefault("BACKEND_PAGE_LIMIT", 100)

	viper.SetDefault("GEOCODER_BASE_URL", "https://api.mapbox.com")
	viper.SetDefault("GEOCODER_RPS", 5)
	viper.SetDefault("GEOCODER_TIMEOUT", 10*time.Second)
	viper.SetDefault("GEOCODER_CONCURRENCY", 1)

	viper.SetDefault("GEOLOCATION_TIMEOUT", 10*time.Second)
	viper.SetDefault("GEOLOCATION_MAX_AGE", 60*time.Second)

	viper.SetDefault("NEARBY_LIMIT", 12)
	viper.SetDefault("LOG_LEVEL", "info")
}

// MapboxToken returns the first configured mapbox access token.
func MapboxToken() string {
	return strings.TrimSpace(FirstNonBlank(
		viper.GetString("MAPBOX_TOKEN"),
		viper.GetString("NEXT_PUBLIC_MAPBOX_TOKEN"),
		viper.GetString("NEXT_PUBLIC_MAP_BOX_TOKEN"),
		viper.GetString("MAP_BOX_TOKEN"),
	))
}
