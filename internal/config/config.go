package config

import (
	"os"
	"strconv"
)

type Config struct {
	Port             string
	Environment      string
	Capacity         int
	ReservedCapacity int
	MinSpacesLeft    int
	OTelServiceName  string
	OTelEndpoint     string
}

// Load reads the configuration from the environment, falling back to the
// defaults of the reference facility: 15 spaces, 5 of them reserved, 5
// always kept free. The layout is validated by the car park constructor,
// not here.
func Load() *Config {
	return &Config{
		Port:             envOr("APP_PORT", "8080"),
		Environment:      envOr("APP_ENV", "development"),
		Capacity:         envOrInt("CARPARK_CAPACITY", 15),
		ReservedCapacity: envOrInt("CARPARK_RESERVED_CAPACITY", 5),
		MinSpacesLeft:    envOrInt("CARPARK_MIN_SPACES_LEFT", 5),
		OTelServiceName:  envOr("OTEL_SERVICE_NAME", "car-park-service"),
		OTelEndpoint:     envOr("OTEL_EXPORTER_OTLP_ENDPOINT", "http://localhost:4318"),
	}
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
