package common

import (
	"fmt"
	"os"
	"strings"
)

// Env gets an environment variable with a default value.
func Env(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// EnvBool gets an environment variable as a boolean with a default value.
func EnvBool(key, def string) bool {
	v := strings.ToLower(Env(key, def))
	return v == "1" || v == "t" || v == "true" || v == "yes" || v == "on"
}

// MustEnv returns the value of a required environment variable. Secrets
// (DB_PASSWORD, SECRET_KEY, ...) carry no in-repo defaults: a missing one
// is a startup configuration error, not something to paper over.
func MustEnv(key string) (string, error) {
	v := os.Getenv(key)
	if v == "" {
		return "", fmt.Errorf("required environment variable %s is not set", key)
	}
	return v, nil
}

// MustSecret returns a required secret from the environment, following
// "@/path" values to a file on disk.
func MustSecret(key string) (string, error) {
	v, err := MustEnv(key)
	if err != nil {
		return "", err
	}
	return ReadSecretMaybeFile(v)
}

// ReadSecretMaybeFile reads a secret from a file if the value starts with "@".
func ReadSecretMaybeFile(value string) (string, error) {
	if strings.HasPrefix(value, "@") {
		path := strings.TrimPrefix(value, "@")
		content, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(content)), nil
	}
	return value, nil
}
