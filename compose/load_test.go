package compose

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const loadYAML = `
services:
  db:
    image: mariadb:11
    environment:
      MARIADB_PASSWORD: ${DB_PASSWORD}
      MARIADB_DATABASE: ${DB_DATABASE:-cookbook}
`

func writeStack(t *testing.T, envFile string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "compose.yaml")
	require.NoError(t, os.WriteFile(path, []byte(loadYAML), 0o644))
	if envFile != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(envFile), 0o644))
	}
	return path
}

func TestLoadReadsDefaultEnvFile(t *testing.T) {
	path := writeStack(t, "DB_PASSWORD=from-file\n")

	m, err := Load(path, LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, "from-file", m.Services["db"].Environment["MARIADB_PASSWORD"])
	assert.Equal(t, "cookbook", m.Services["db"].Environment["MARIADB_DATABASE"])
}

func TestLoadProcessEnvWinsOverFile(t *testing.T) {
	path := writeStack(t, "DB_PASSWORD=from-file\n")
	t.Setenv("DB_PASSWORD", "from-env")

	m, err := Load(path, LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, "from-env", m.Services["db"].Environment["MARIADB_PASSWORD"])
}

func TestLoadMissingSecretFails(t *testing.T) {
	path := writeStack(t, "")

	_, err := Load(path, LoadOptions{Lookup: func(string) (string, bool) { return "", false }})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_PASSWORD")
}

// TestLoadDeployManifest loads the real stack definition and checks that
// credentials pass through to the services verbatim.
func TestLoadDeployManifest(t *testing.T) {
	vars := map[string]string{
		"DB_ROOT_PASSWORD": "root-pw",
		"DB_DATABASE":      "cookbook",
		"DB_USER":          "cook",
		"DB_PASSWORD":      "db-pw",
		"SECRET_KEY":       "signing-key",
	}
	m, err := Load(filepath.Join("..", "deploy", "compose.yaml"), LoadOptions{
		Lookup: func(name string) (string, bool) {
			v, ok := vars[name]
			return v, ok
		},
	})
	require.NoError(t, err)

	pma := m.Services["phpmyadmin"].Environment
	assert.Equal(t, "cook", pma["PMA_USER"])
	assert.Equal(t, "db-pw", pma["PMA_PASSWORD"])
	assert.Equal(t, "cookbook", pma["PMA_DB"])

	db := m.Services["mariadb"]
	assert.Equal(t, "root-pw", db.Environment["MARIADB_ROOT_PASSWORD"])
	require.NotNil(t, db.Healthcheck)

	be := m.Services["backend"]
	assert.Equal(t, ConditionHealthy, be.DependsOn["mariadb"].Condition)
	assert.Equal(t, "signing-key", be.Environment["SECRET_KEY"])
	assert.Equal(t, "matzeds/cookbook-backend", be.Image)

	assert.Equal(t, ConditionStarted, m.Services["frontend"].DependsOn["backend"].Condition)
	assert.Equal(t, ConditionHealthy, m.Services["phpmyadmin"].DependsOn["mariadb"].Condition)
}

func TestLoadExplicitEnvFileMustExist(t *testing.T) {
	path := writeStack(t, "")

	_, err := Load(path, LoadOptions{EnvFile: filepath.Join(t.TempDir(), "nope.env")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "env file")
}
