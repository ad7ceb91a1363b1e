package utils

import "os"

// GetEnvVariable returns the environment variable value or the fallback.
func GetEnvVariable(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
