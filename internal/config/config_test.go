package config

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, name := range []string{envToken, envListen, envLogLevel, envRedisURL, envCacheBackend} {
		t.Setenv(name, "")
	}
}

func TestLoad(t *testing.T) {
	testCases := []struct {
		name        string
		content     string
		env         map[string]string
		expectError bool
		check       func(t *testing.T, cfg *Config)
	}{
		{
			name: "Scenario 1: No file, defaults",
			check: func(t *testing.T, cfg *Config) {
				require.Equal(t, defaultListen, cfg.Listen)
				require.Equal(t, CacheBackendMemory, cfg.Cache.Backend)
				require.Equal(t, time.Hour, cfg.Cache.TTL)
				require.Equal(t, int64(256<<20), cfg.Cache.MaxSize)
				require.Equal(t, []string{"V65", "v65", "65"}, cfg.Releases.CurrentAliases)
				require.Equal(t, "instella_flags", cfg.Flags.Repo)
			},
		},
		{
			name: "Scenario 2: File overrides defaults",
			content: `listen: ":9090"
log_level: debug
cache:
  backend: fs
  ttl: 10m
  dir: /tmp/cache
releases:
  owner: acme
  repo: app
  current_aliases: ["v2"]
flags:
  owner: acme
  repo: flags
  workers: 2
`,
			check: func(t *testing.T, cfg *Config) {
				require.Equal(t, ":9090", cfg.Listen)
				require.Equal(t, LogLevelDebug, cfg.LogLevel)
				require.Equal(t, 10*time.Minute, cfg.Cache.TTL)
				require.Equal(t, "/tmp/cache", cfg.Cache.Dir)
				require.Equal(t, "acme", cfg.Releases.Owner)
				require.Equal(t, []string{"v2"}, cfg.Releases.CurrentAliases)
				require.Equal(t, 2, cfg.Flags.Workers)
				require.Equal(t, defaultFlagsRef, cfg.Flags.Ref)
			},
		},
		{
			name:    "Scenario 3: Environment wins",
			content: `listen: ":9090"`,
			env: map[string]string{
				envListen:       ":7070",
				envToken:        "secret",
				envCacheBackend: CacheBackendRedis,
				envRedisURL:     "redis://localhost:6379/0",
			},
			check: func(t *testing.T, cfg *Config) {
				require.Equal(t, ":7070", cfg.Listen)
				require.Equal(t, "secret", cfg.GitHub.Token)
				require.Equal(t, CacheBackendRedis, cfg.Cache.Backend)
			},
		},
		{
			name:        "Scenario 4: Redis backend without url",
			content:     "cache:\n  backend: redis\n",
			expectError: true,
		},
		{
			name:        "Scenario 5: Unknown log level",
			content:     "log_level: loud\n",
			expectError: true,
		},
		{
			name:        "Scenario 6: Broken yaml",
			content:     "listen: [\n",
			expectError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			fs := afero.NewMemMapFs()
			if tc.content != "" {
				require.NoError(t, afero.WriteFile(fs, "config.yml", []byte(tc.content), 0644))
			}

			cfg, err := Load(fs, "config.yml")
			if tc.expectError {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			tc.check(t, cfg)
		})
	}
}
