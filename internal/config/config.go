package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v2"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"

	CacheBackendMemory = "memory"
	CacheBackendFS     = "fs"
	CacheBackendRedis  = "redis"

	defaultListen          = ":8080"
	defaultShutdownTimeout = 5 * time.Second
	defaultAPIURL          = "https://api.github.com"
	defaultRawURL          = "https://raw.githubusercontent.com"
	defaultUserAgent       = "ghrelay"
	defaultTimeout         = 30 * time.Second
	defaultCacheTTL        = time.Hour
	defaultCacheDir        = "cache"
	defaultCacheMaxSize    = 256 << 20
	defaultWorkers         = 8
	defaultDumpFileName    = "flags.yml"
	defaultFlagsRef        = "main"

	envToken        = "GITHUB_TOKEN"
	envListen       = "GHRELAY_LISTEN"
	envLogLevel     = "GHRELAY_LOG_LEVEL"
	envRedisURL     = "GHRELAY_REDIS_URL"
	envCacheBackend = "GHRELAY_CACHE_BACKEND"
)

type GitHubConfig struct {
	APIURL    string        `yaml:"api_url"`
	RawURL    string        `yaml:"raw_url"`
	Token     string        `yaml:"token"`
	UserAgent string        `yaml:"user_agent"`
	Timeout   time.Duration `yaml:"timeout"`
}

type CacheConfig struct {
	Backend  string        `yaml:"backend"`
	TTL      time.Duration `yaml:"ttl"`
	Dir      string        `yaml:"dir"`
	RedisURL string        `yaml:"redis_url"`
	MaxSize  int64         `yaml:"max_size"` // bytes, memory and fs backends only, 0 disables the cap
}

type RepoConfig struct {
	Owner string `yaml:"owner"`
	Repo  string `yaml:"repo"`
}

type ReleasesConfig struct {
	RepoConfig     `yaml:",inline"`
	CurrentAliases []string `yaml:"current_aliases"`
}

type FlagsConfig struct {
	RepoConfig   `yaml:",inline"`
	Ref          string `yaml:"ref"`
	Workers      int    `yaml:"workers"`
	DumpFileName string `yaml:"dump_filename"`
}

type Config struct {
	Listen          string         `yaml:"listen"`
	LogLevel        string         `yaml:"log_level"`
	ShutdownTimeout time.Duration  `yaml:"shutdown_timeout"`
	GitHub          GitHubConfig   `yaml:"github"`
	Cache           CacheConfig    `yaml:"cache"`
	Releases        ReleasesConfig `yaml:"releases"`
	Backups         RepoConfig     `yaml:"backups"`
	Flags           FlagsConfig    `yaml:"flags"`
}

func (c *Config) SetDefaults() {
	c.Listen = defaultListen
	c.LogLevel = LogLevelInfo
	c.ShutdownTimeout = defaultShutdownTimeout

	c.GitHub = GitHubConfig{
		APIURL:    defaultAPIURL,
		RawURL:    defaultRawURL,
		UserAgent: defaultUserAgent,
		Timeout:   defaultTimeout,
	}

	c.Cache = CacheConfig{
		Backend: CacheBackendMemory,
		TTL:     defaultCacheTTL,
		Dir:     defaultCacheDir,
		MaxSize: defaultCacheMaxSize,
	}

	c.Releases = ReleasesConfig{
		RepoConfig:     RepoConfig{Owner: "OnlyAbhii", Repo: "instella_app"},
		CurrentAliases: []string{"V65", "v65", "65"},
	}

	c.Backups = RepoConfig{Owner: "OnlyAkki", Repo: "Instella_Backup"}

	c.Flags = FlagsConfig{
		RepoConfig:   RepoConfig{Owner: "OnlyAkki", Repo: "instella_flags"},
		Ref:          defaultFlagsRef,
		Workers:      defaultWorkers,
		DumpFileName: defaultDumpFileName,
	}
}

// Load reads the yaml file at path on top of the defaults. A missing file is not an error.
func Load(fs afero.Fs, path string) (*Config, error) {
	cfg := &Config{}
	cfg.SetDefaults()

	data, err := afero.ReadFile(fs, path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyEnv() {
	setIfEnvExists(&c.GitHub.Token, envToken)
	setIfEnvExists(&c.Listen, envListen)
	setIfEnvExists(&c.LogLevel, envLogLevel)
	setIfEnvExists(&c.Cache.RedisURL, envRedisURL)
	setIfEnvExists(&c.Cache.Backend, envCacheBackend)
}

func setIfEnvExists(value *string, name string) {
	if val := strings.TrimSpace(os.Getenv(name)); val != "" {
		*value = val
	}
}

func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address cannot be empty")
	}

	switch c.LogLevel {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}

	switch c.Cache.Backend {
	case CacheBackendMemory:
	case CacheBackendFS:
		if c.Cache.Dir == "" {
			return fmt.Errorf("cache dir cannot be empty for fs backend")
		}
	case CacheBackendRedis:
		if c.Cache.RedisURL == "" {
			return fmt.Errorf("redis url cannot be empty for redis backend")
		}
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}

	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache ttl must be non-negative")
	}

	if c.Cache.MaxSize < 0 {
		return fmt.Errorf("cache max size must be non-negative")
	}

	if c.GitHub.APIURL == "" || c.GitHub.RawURL == "" {
		return fmt.Errorf("github urls cannot be empty")
	}

	for name, repo := range map[string]RepoConfig{
		"releases": c.Releases.RepoConfig,
		"backups":  c.Backups,
		"flags":    c.Flags.RepoConfig,
	} {
		if repo.Owner == "" || repo.Repo == "" {
			return fmt.Errorf("%s owner and repo are required", name)
		}
	}

	if c.Flags.Workers < 1 {
		return fmt.Errorf("flags workers must be positive")
	}

	return nil
}
