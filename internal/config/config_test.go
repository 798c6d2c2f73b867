package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapLookup(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	s, err := FromEnv(mapLookup(nil))
	require.NoError(t, err)
	assert.Equal(t, Defaults(), s)
	assert.Equal(t, "mysql", s.DB.Driver)
	assert.Equal(t, "none", s.Metrics.Backend)
	assert.Equal(t, time.Second, s.Geocode.Interval)
}

func TestFromEnv_Values(t *testing.T) {
	s, err := FromEnv(mapLookup(map[string]string{
		"DB_DRIVER":             "postgres",
		"DB_HOST":               " db.internal ",
		"DB_USER":               "refocus",
		"DB_PASS":               "pw",
		"DB_NAME":               "refocus",
		"DB_PORT":               "5432",
		"DB_PARAMS":             "sslmode=disable&application_name=refocus",
		"REFOCUS_FEEDS":         "cdc_state_trends, ,google_mobility",
		"REFOCUS_SCHEDULE":      "0 6 * * *",
		"REFOCUS_VERBOSE":       "yes",
		"REFOCUS_CREATE_TABLES": "on",
		"METRICS_BACKEND":       "Prometheus",
		"PUSHGATEWAY_URL":       "http://pgw:9091",
		"HTTP_TIMEOUT":          "90s",
		"GEOCODE_INTERVAL":      "1.5",
	}))
	require.NoError(t, err)
	assert.Equal(t, "db.internal", s.DB.Host)
	assert.Equal(t, 5432, s.DB.Port)
	assert.Equal(t, map[string]string{"sslmode": "disable", "application_name": "refocus"}, s.DB.Params)
	assert.Equal(t, []string{"cdc_state_trends", "google_mobility"}, s.Feeds)
	assert.True(t, s.Verbose)
	assert.True(t, s.CreateTables)
	assert.Equal(t, "prometheus", s.Metrics.Backend)
	assert.Equal(t, 90*time.Second, s.HTTP.Timeout)
	assert.Equal(t, 1500*time.Millisecond, s.Geocode.Interval)
}

func TestFromEnv_DebugProgress(t *testing.T) {
	s, err := FromEnv(mapLookup(map[string]string{"DEBUG_PROGRESS": ""}))
	require.NoError(t, err)
	assert.Equal(t, 10_000, s.ProgressEvery)

	s, err = FromEnv(mapLookup(map[string]string{"DEBUG_PROGRESS": "1", "PROGRESS_EVERY": "50"}))
	require.NoError(t, err)
	assert.Equal(t, 50, s.ProgressEvery)
}

func TestFromEnv_ParseErrorsAreJoined(t *testing.T) {
	_, err := FromEnv(mapLookup(map[string]string{
		"DB_PORT":         "mysql",
		"HTTP_TIMEOUT":    "soon",
		"REFOCUS_VERBOSE": "perhaps",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_PORT")
	assert.Contains(t, err.Error(), "HTTP_TIMEOUT")
	assert.Contains(t, err.Error(), "REFOCUS_VERBOSE")
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("DB_NAME=from_file\nDB_USER=file_user\n"), 0o600))

	t.Setenv("DB_USER", "env_user")
	// Restored after the test; unset so the file value applies.
	t.Setenv("DB_NAME", "")
	require.NoError(t, os.Unsetenv("DB_NAME"))

	s, err := Load(path, true)
	require.NoError(t, err)
	assert.Equal(t, "from_file", s.DB.Database)
	assert.Equal(t, "env_user", s.DB.User, "the environment wins over the file")
}

func TestLoad_MissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.env")
	_, err := Load(missing, false)
	require.NoError(t, err)

	_, err = Load(missing, true)
	require.Error(t, err)
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, SplitList(" , "))
	assert.Equal(t, []string{"a", "b"}, SplitList("a,, b "))
}
