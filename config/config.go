package config

import (
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"os"
	"path/filepath"
	"time"
)

// Config carries every tunable of the query/cache core. The components themselves only see injected values, this
// package is the single place resolving them from a file and defaults.
type Config struct {
	Port string `mapstructure:"port"`

	// Endpoints are the URLs of the independently operated mirrors of the query service.
	Endpoints []string `mapstructure:"endpoints"`

	MaxRounds      int           `mapstructure:"maxRounds"`
	RetryBackoff   time.Duration `mapstructure:"retryBackoff"`
	RequestTimeout time.Duration `mapstructure:"requestTimeout"`

	CacheBaseFolder string        `mapstructure:"cacheBaseFolder"`
	CacheTTL        time.Duration `mapstructure:"cacheTTL"`

	TileSizeMeters  float64       `mapstructure:"tileSizeMeters"`
	TileConcurrency int           `mapstructure:"tileConcurrency"`
	StaggerDelay    time.Duration `mapstructure:"staggerDelay"`
}

// Load reads the YAML file at the given path on top of the defaults. An empty path returns the pure defaults.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		err := v.ReadInConfig()
		if err != nil {
			return Config{}, errors.Wrapf(err, "Unable to read config file %s", path)
		}
	}

	var config Config
	err := v.Unmarshal(&config)
	if err != nil {
		return Config{}, errors.Wrap(err, "Unable to parse config")
	}

	if len(config.Endpoints) == 0 {
		return Config{}, errors.Errorf("At least one endpoint must be configured")
	}

	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("endpoints", []string{
		"https://overpass-api.de/api/interpreter",
		"https://overpass.kumi.systems/api/interpreter",
		"https://maps.mail.ru/osm/tools/overpass/api/interpreter",
		"https://overpass.osm.ch/api/interpreter",
	})
	v.SetDefault("maxRounds", 3)
	v.SetDefault("retryBackoff", "2s")
	v.SetDefault("requestTimeout", "30s")
	v.SetDefault("cacheBaseFolder", defaultCacheBaseFolder())
	v.SetDefault("cacheTTL", "24h")
	v.SetDefault("tileSizeMeters", 4096)
	// Two parallel tiles respect the informal fair-use limits of the public mirrors.
	v.SetDefault("tileConcurrency", 2)
	v.SetDefault("staggerDelay", "200ms")
}

// defaultCacheBaseFolder returns a per-user cache directory.
func defaultCacheBaseFolder() string {
	baseDir, err := os.UserCacheDir()
	if err != nil {
		return "oqc-cache"
	}
	return filepath.Join(baseDir, "oqc")
}
