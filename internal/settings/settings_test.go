package settings

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func TestReadMissingFileReturnsDefaults(t *testing.T) {
	s, err := Read(filepath.Join(t.TempDir(), "settings.json"))
	require.NoError(t, err)
	assert.Equal(t, Defaults(), s)
}

func TestWriteNormalizesAndRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "settings.json")

	saved, err := Write(path, Settings{ServerURL: " https://checker.example.com/ ", PollIntervalMS: -5})
	require.NoError(t, err)
	assert.Equal(t, "https://checker.example.com", saved.ServerURL)
	assert.Equal(t, DefaultPollIntervalMS, saved.PollIntervalMS)
	assert.Equal(t, DefaultTimeoutSeconds, saved.TimeoutSeconds)
	assert.NotEmpty(t, saved.UpdatedAt)

	loaded, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, saved, loaded)
}

func TestWriteRejectsBadServerURL(t *testing.T) {
	_, err := Write(filepath.Join(t.TempDir(), "settings.json"), Settings{ServerURL: "ftp://files"})
	assert.Error(t, err)
}

func TestResolveDefaults(t *testing.T) {
	rt, err := Resolve(Defaults(), env(nil))
	require.NoError(t, err)
	assert.Equal(t, Runtime{
		ServerURL:    DefaultServerURL,
		PollInterval: 2 * time.Second,
		Timeout:      60 * time.Second,
	}, rt)
}

func TestResolveEnvOverrides(t *testing.T) {
	rt, err := Resolve(Settings{DatabaseURL: "sqlite:///tmp/a.db"}, env(map[string]string{
		EnvServer:       "http://10.0.0.5:8080/",
		EnvPollInterval: "750ms",
		EnvTimeout:      "5s",
		EnvDatabaseURL:  "postgres://u:p@db/mail",
		EnvLogLevel:     "DEBUG",
	}))
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.5:8080", rt.ServerURL)
	assert.Equal(t, 750*time.Millisecond, rt.PollInterval)
	assert.Equal(t, 5*time.Second, rt.Timeout)
	assert.Equal(t, "postgres://u:p@db/mail", rt.DatabaseURL)
	assert.True(t, rt.Debug)
}

func TestResolveRejectsMalformedOverrides(t *testing.T) {
	cases := map[string]string{
		EnvPollInterval: "soon",
		EnvTimeout:      "-1s",
		EnvServer:       "localhost:5000",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			_, err := Resolve(Defaults(), env(map[string]string{key: value}))
			assert.Error(t, err)
		})
	}
}
