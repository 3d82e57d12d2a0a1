package config

import (
	"os"
	"strconv"
)

// Config holds the service configuration, read from the environment.
type Config struct {
	Environment string
	Port        string

	// Model
	DescriptorURI   string // JSON descriptor naming the model artifact and labels
	ONNXLibraryPath string // onnxruntime shared library, empty for the default lookup
	DisplaySize     uint   // renderer output size in pixels, 0 disables the renderer

	// Observability
	SentryDSN string

	// Storage of generated images
	// - "none": images are only returned
	// - "file": written under StoreDir
	// - "s3": uploaded to Bucket
	StoreBackend string
	StoreDir     string
	Bucket       string
}

func Load() *Config {
	return &Config{
		Environment:     getEnv("ENVIRONMENT", "development"),
		Port:            getEnv("PORT", "8080"),
		DescriptorURI:   getEnv("CVAE_DESCRIPTOR", "models/manifest.json"),
		ONNXLibraryPath: getEnv("ONNXRUNTIME_LIB", ""),
		DisplaySize:     getEnvUint("DISPLAY_SIZE", 0),
		SentryDSN:       getEnv("SENTRY_DSN", ""),
		StoreBackend:    getEnv("STORE_BACKEND", "none"),
		StoreDir:        getEnv("STORE_DIR", "generated"),
		Bucket:          getEnv("BUCKET", ""),
	}
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return defaultValue
}

func getEnvUint(key string, defaultValue uint) uint {
	value, err := strconv.ParseUint(os.Getenv(key), 10, 32)
	if err != nil {
		return defaultValue
	}
	return uint(value)
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
