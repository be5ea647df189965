package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func ptr[T any](v T) *T {
	return &v
}

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()

	if s.CacheTTL != 24*time.Hour {
		t.Errorf("CacheTTL = %v, want 24h", s.CacheTTL)
	}
	if s.ColdRefreshCooldown != 0 {
		t.Errorf("ColdRefreshCooldown = %v, want 0", s.ColdRefreshCooldown)
	}
	if s.Snapshot != SnapshotFile {
		t.Errorf("Snapshot = %q, want %q", s.Snapshot, SnapshotFile)
	}
	if s.Workers != 4 {
		t.Errorf("Workers = %d, want 4", s.Workers)
	}
	if s.MaxCommitPages != 500 {
		t.Errorf("MaxCommitPages = %d, want 500", s.MaxCommitPages)
	}
	if err := s.Validate(); err != nil {
		t.Errorf("default settings should validate: %v", err)
	}
}

func TestGetSettings(t *testing.T) {
	t.Run("returns defaults when no overrides", func(t *testing.T) {
		cfg := &Config{Username: "octo"}
		s, err := cfg.GetSettings()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if s.Username != "octo" {
			t.Errorf("Username = %q, want octo", s.Username)
		}
		if s.CacheTTL != DefaultSettings().CacheTTL {
			t.Errorf("CacheTTL = %v, want default", s.CacheTTL)
		}
	})

	t.Run("applies overrides with day units", func(t *testing.T) {
		cfg := &Config{
			Cache: &CacheOverrides{
				TTL:                 ptr("2d"),
				ColdRefreshCooldown: ptr("10m"),
				Snapshot:            ptr(SnapshotNone),
			},
			Refresh: &RefreshOverrides{
				Workers:   ptr(8),
				PageDelay: ptr("0s"),
			},
			Skills: &SkillsOverrides{File: ptr("skills.yaml")},
		}
		s, err := cfg.GetSettings()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if s.CacheTTL != 48*time.Hour {
			t.Errorf("CacheTTL = %v, want 48h", s.CacheTTL)
		}
		if s.ColdRefreshCooldown != 10*time.Minute {
			t.Errorf("ColdRefreshCooldown = %v, want 10m", s.ColdRefreshCooldown)
		}
		if s.Workers != 8 {
			t.Errorf("Workers = %d, want 8", s.Workers)
		}
		if s.PageDelay != 0 {
			t.Errorf("PageDelay = %v, want 0", s.PageDelay)
		}
		if s.SkillsFile != "skills.yaml" {
			t.Errorf("SkillsFile = %q, want skills.yaml", s.SkillsFile)
		}
	})

	invalid := []struct {
		name string
		cfg  Config
	}{
		{"bad duration", Config{Cache: &CacheOverrides{TTL: ptr("soon")}}},
		{"zero ttl", Config{Cache: &CacheOverrides{TTL: ptr("0s")}}},
		{"unknown snapshot", Config{Cache: &CacheOverrides{Snapshot: ptr("s3")}}},
		{"redis without url", Config{Cache: &CacheOverrides{Snapshot: ptr(SnapshotRedis)}}},
		{"zero workers", Config{Refresh: &RefreshOverrides{Workers: ptr(0)}}},
		{"zero pages", Config{Refresh: &RefreshOverrides{MaxCommitPages: ptr(0)}}},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.cfg.GetSettings(); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestMergeConfig(t *testing.T) {
	global := &Config{
		Username:      "global-user",
		DefaultFormat: "json",
		Cache: &CacheOverrides{
			TTL:      ptr("12h"),
			Snapshot: ptr(SnapshotRedis),
			RedisURL: ptr("redis://global:6379"),
		},
		Refresh: &RefreshOverrides{Workers: ptr(2)},
	}
	local := &Config{
		Username: "local-user",
		Cache:    &CacheOverrides{TTL: ptr("1h")},
		Server:   &ServerOverrides{Addr: ptr(":9090")},
	}

	got := mergeConfig(global, local)

	if got.Username != "local-user" {
		t.Errorf("Username = %q, want local-user", got.Username)
	}
	if got.DefaultFormat != "json" {
		t.Errorf("DefaultFormat = %q, want json from global", got.DefaultFormat)
	}
	if *got.Cache.TTL != "1h" {
		t.Errorf("Cache.TTL = %q, want local 1h", *got.Cache.TTL)
	}
	if *got.Cache.RedisURL != "redis://global:6379" {
		t.Errorf("Cache.RedisURL = %q, want global value", *got.Cache.RedisURL)
	}
	if *got.Refresh.Workers != 2 {
		t.Errorf("Refresh.Workers = %d, want 2", *got.Refresh.Workers)
	}
	if *got.Server.Addr != ":9090" {
		t.Errorf("Server.Addr = %q, want :9090", *got.Server.Addr)
	}
	if got.Skills != nil {
		t.Errorf("Skills = %+v, want nil", got.Skills)
	}
}

func TestLoadFrom(t *testing.T) {
	dir := t.TempDir()
	globalPath := filepath.Join(dir, "config.yaml")
	localPath := filepath.Join(dir, ".langstats.yaml")

	t.Run("missing files give defaults", func(t *testing.T) {
		cfg, err := LoadFrom(globalPath, localPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.DefaultFormat != "table" {
			t.Errorf("DefaultFormat = %q, want table", cfg.DefaultFormat)
		}
	})

	t.Run("local merges over global", func(t *testing.T) {
		if err := os.WriteFile(globalPath, []byte("username: octo\ncache:\n  ttl: 1d\n"), 0600); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(localPath, []byte("cache:\n  snapshot: none\n"), 0600); err != nil {
			t.Fatal(err)
		}

		cfg, err := LoadFrom(globalPath, localPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		s, err := cfg.GetSettings()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if s.Username != "octo" || s.CacheTTL != 24*time.Hour || s.Snapshot != SnapshotNone {
			t.Errorf("unexpected settings: %+v", s)
		}
	})

	t.Run("malformed yaml", func(t *testing.T) {
		if err := os.WriteFile(localPath, []byte("cache: [\n"), 0600); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadFrom(globalPath, localPath); err == nil {
			t.Error("expected error, got nil")
		}
	})
}

func TestGetGitHubToken(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "from-env")

	if got := (&Config{}).GetGitHubToken(); got != "from-env" {
		t.Errorf("GetGitHubToken() = %q, want from-env", got)
	}
	if got := (&Config{Token: "from-file"}).GetGitHubToken(); got != "from-file" {
		t.Errorf("GetGitHubToken() = %q, want from-file", got)
	}
}

func TestDefaultConfigRoundTrips(t *testing.T) {
	out, err := DefaultConfig().ToYAML()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(out), &cfg); err != nil {
		t.Fatalf("default config is not valid YAML: %v", err)
	}
	s, err := cfg.GetSettings()
	if err != nil {
		t.Fatalf("default config does not resolve: %v", err)
	}
	if s.CacheTTL != DefaultSettings().CacheTTL {
		t.Errorf("CacheTTL = %v, want %v", s.CacheTTL, DefaultSettings().CacheTTL)
	}
}

func TestMinimalConfigParses(t *testing.T) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(MinimalConfig()), &cfg); err != nil {
		t.Fatalf("minimal config is not valid YAML: %v", err)
	}
	if cfg.Skills == nil || cfg.Skills.File == nil || !strings.HasSuffix(*cfg.Skills.File, ".yaml") {
		t.Errorf("expected skills.file in minimal config, got %+v", cfg.Skills)
	}
}

func TestSet(t *testing.T) {
	tests := []struct {
		key     string
		value   string
		wantErr bool
		check   func(t *testing.T, s Settings, cfg *Config)
	}{
		{key: "username", value: "octo", check: func(t *testing.T, s Settings, _ *Config) {
			if s.Username != "octo" {
				t.Errorf("Username = %q", s.Username)
			}
		}},
		{key: "format", value: "json", check: func(t *testing.T, _ Settings, cfg *Config) {
			if cfg.DefaultFormat != "json" {
				t.Errorf("DefaultFormat = %q", cfg.DefaultFormat)
			}
		}},
		{key: "cache.ttl", value: "3d", check: func(t *testing.T, s Settings, _ *Config) {
			if s.CacheTTL != 72*time.Hour {
				t.Errorf("CacheTTL = %v", s.CacheTTL)
			}
		}},
		{key: "refresh.workers", value: "6", check: func(t *testing.T, s Settings, _ *Config) {
			if s.Workers != 6 {
				t.Errorf("Workers = %d", s.Workers)
			}
		}},
		{key: "skills.dsn", value: "postgres://localhost/site", check: func(t *testing.T, s Settings, _ *Config) {
			if s.SkillsDSN != "postgres://localhost/site" {
				t.Errorf("SkillsDSN = %q", s.SkillsDSN)
			}
		}},
		{key: "format", value: "xml", wantErr: true},
		{key: "cache.ttl", value: "tomorrow", wantErr: true},
		{key: "refresh.workers", value: "many", wantErr: true},
		{key: "token", value: "ghp_secret", wantErr: true},
		{key: "colour", value: "blue", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			cfg := &Config{}
			err := cfg.Set(tt.key, tt.value)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			s, err := cfg.GetSettings()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tt.check(t, s, cfg)
		})
	}
}

func TestSaveFileAndLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("missing file should load empty config: %v", err)
	}
	if err := cfg.Set("cache.snapshot", SnapshotNone); err != nil {
		t.Fatal(err)
	}
	if err := cfg.SaveFile(path); err != nil {
		t.Fatalf("SaveFile() error: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file mode = %o, want 600", perm)
	}

	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Cache == nil || loaded.Cache.Snapshot == nil || *loaded.Cache.Snapshot != SnapshotNone {
		t.Errorf("snapshot setting not persisted: %+v", loaded.Cache)
	}
}
