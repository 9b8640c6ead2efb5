package config

import (
	"oqc/util"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_defaults(t *testing.T) {
	config, err := Load("")

	util.AssertNil(t, err)
	util.AssertEqual(t, "8080", config.Port)
	util.AssertEqual(t, 4, len(config.Endpoints))
	util.AssertEqual(t, 3, config.MaxRounds)
	util.AssertEqual(t, 2, config.TileConcurrency)
	util.AssertEqual(t, 4096.0, config.TileSizeMeters)
	util.AssertEqual(t, 24*time.Hour, config.CacheTTL)
	util.AssertTrue(t, config.CacheBaseFolder != "")
}

func TestLoad_fileOverridesDefaults(t *testing.T) {
	// Arrange
	configFile := filepath.Join(t.TempDir(), "config.yaml")
	content := `
endpoints:
  - "http://localhost:1234/api/interpreter"
maxRounds: 5
retryBackoff: 500ms
cacheTTL: 1h
tileSizeMeters: 2048
`
	util.AssertNil(t, os.WriteFile(configFile, []byte(content), 0644))

	// Act
	config, err := Load(configFile)

	// Assert
	util.AssertNil(t, err)
	util.AssertEqual(t, []string{"http://localhost:1234/api/interpreter"}, config.Endpoints)
	util.AssertEqual(t, 5, config.MaxRounds)
	util.AssertEqual(t, 500*time.Millisecond, config.RetryBackoff)
	util.AssertEqual(t, time.Hour, config.CacheTTL)
	util.AssertEqual(t, 2048.0, config.TileSizeMeters)
	// Unset values keep their defaults.
	util.AssertEqual(t, "8080", config.Port)
}

func TestLoad_missingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))

	util.AssertNotNil(t, err)
}
