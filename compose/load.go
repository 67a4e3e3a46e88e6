package compose

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// LoadOptions controls manifest loading.
type LoadOptions struct {
	// EnvFile overrides the default `.env` sitting next to the manifest.
	EnvFile string
	// Lookup overrides the variable source entirely (tests use this).
	// When nil, the process environment wins over the env file.
	Lookup Lookup
}

// Load reads, interpolates, parses and validates a manifest file.
// Variable resolution mirrors the compose convention: the process
// environment takes precedence over the env file beside the manifest.
func Load(path string, opts LoadOptions) (*Manifest, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	lookup := opts.Lookup
	if lookup == nil {
		fileVars, err := loadEnvFile(path, opts.EnvFile)
		if err != nil {
			return nil, err
		}
		lookup = func(name string) (string, bool) {
			if v, ok := os.LookupEnv(name); ok {
				return v, true
			}
			v, ok := fileVars[name]
			return v, ok
		}
	}

	interpolated, err := Interpolate(src, lookup)
	if err != nil {
		return nil, err
	}

	return Parse(interpolated)
}

// loadEnvFile reads the env file, tolerating its absence when the
// default location is used.
func loadEnvFile(manifestPath, envFile string) (map[string]string, error) {
	path := envFile
	explicit := path != ""
	if !explicit {
		path = filepath.Join(filepath.Dir(manifestPath), ".env")
	}

	vars, err := godotenv.Read(path)
	if err != nil {
		if !explicit && os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("read env file %s: %w", path, err)
	}
	return vars, nil
}
