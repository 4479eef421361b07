package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Port     int      `env:"TEST_CFG_PORT" envDefault:"8080"`
	LogLevel string   `env:"TEST_CFG_LOG_LEVEL" envDefault:"info"`
	Brokers  []string `env:"TEST_CFG_BROKERS" envDefault:"localhost:9092" envSeparator:","`
}

func TestLoad_Defaults(t *testing.T) {
	var cfg testConfig
	require.NoError(t, Load(&cfg))

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Brokers)
}

func TestLoad_FromEnvVars(t *testing.T) {
	t.Setenv("TEST_CFG_PORT", "9090")
	t.Setenv("TEST_CFG_BROKERS", "k1:9092,k2:9092")

	var cfg testConfig
	require.NoError(t, Load(&cfg))

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Brokers)
}

func TestLoad_InvalidType(t *testing.T) {
	t.Setenv("TEST_CFG_PORT", "not-a-number")

	var cfg testConfig
	err := Load(&cfg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestLoad_RequiredFieldMissing(t *testing.T) {
	var cfg struct {
		Secret string `env:"TEST_CFG_SECRET,required"`
	}
	err := Load(&cfg)
	require.Error(t, err)
}

func TestLoadDotEnv_MissingFileIsSkipped(t *testing.T) {
	require.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "absent.env")))
}

func TestLoadDotEnv_PopulatesUnsetVariables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("TEST_CFG_DOTENV_ONLY=from-file\nTEST_CFG_LOG_LEVEL=debug\n"), 0o600))

	t.Setenv("TEST_CFG_LOG_LEVEL", "warn")
	t.Cleanup(func() { os.Unsetenv("TEST_CFG_DOTENV_ONLY") })

	require.NoError(t, LoadDotEnv(path))

	assert.Equal(t, "from-file", os.Getenv("TEST_CFG_DOTENV_ONLY"))
	assert.Equal(t, "warn", os.Getenv("TEST_CFG_LOG_LEVEL"), "existing variables are not overridden")
}
