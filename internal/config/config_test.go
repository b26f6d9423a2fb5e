package config

import (
	"testing"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: "8080", Env: "development"},
		Database: DatabaseConfig{
			Host: "localhost", Port: "5432", Name: "grondplan",
			User: "postgres", Password: "secret",
			PoolMin: 2, PoolMax: 10,
		},
		CORS:  CORSConfig{Origins: []string{"http://localhost:3000"}},
		Query: QueryConfig{LimitDefault: 50, LimitMax: 1000, CollectionAttribute: "municipality"},
		Store: StoreConfig{Backend: BackendPostgres, IndexKind: IndexRTree},
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB_PASSWORD", "secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("default port = %s, want 8080", cfg.Server.Port)
	}
	if cfg.Query.LimitDefault != 50 || cfg.Query.LimitMax != 1000 {
		t.Errorf("default query limits = %d/%d, want 50/1000",
			cfg.Query.LimitDefault, cfg.Query.LimitMax)
	}
	if cfg.Query.CollectionAttribute != "municipality" {
		t.Errorf("default collection attribute = %s, want municipality", cfg.Query.CollectionAttribute)
	}
	if cfg.Store.Backend != BackendPostgres {
		t.Errorf("default store backend = %s, want postgres", cfg.Store.Backend)
	}
	if cfg.Store.IndexKind != IndexRTree {
		t.Errorf("default index kind = %s, want rtree", cfg.Store.IndexKind)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("SPATIAL_INDEX", "linear")
	t.Setenv("QUERY_LIMIT_DEFAULT", "25")
	t.Setenv("COLLECTION_ATTRIBUTE", "district")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("port = %s, want 9090", cfg.Server.Port)
	}
	if cfg.Store.Backend != BackendMemory {
		t.Errorf("backend = %s, want memory", cfg.Store.Backend)
	}
	if cfg.Store.IndexKind != IndexLinear {
		t.Errorf("index kind = %s, want linear", cfg.Store.IndexKind)
	}
	if cfg.Query.LimitDefault != 25 {
		t.Errorf("limit default = %d, want 25", cfg.Query.LimitDefault)
	}
	if cfg.Query.CollectionAttribute != "district" {
		t.Errorf("collection attribute = %s, want district", cfg.Query.CollectionAttribute)
	}
}

func TestLoadMemoryBackendNeedsNoDatabase(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")
	// Deliberately no DB_PASSWORD.

	if _, err := Load(); err != nil {
		t.Errorf("memory backend should not require database config, got: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing port", func(c *Config) { c.Server.Port = "" }, true},
		{"missing db password", func(c *Config) { c.Database.Password = "" }, true},
		{"pool min above max", func(c *Config) { c.Database.PoolMin = 20 }, true},
		{"unknown backend", func(c *Config) { c.Store.Backend = "sqlite" }, true},
		{"unknown index kind", func(c *Config) { c.Store.IndexKind = "quadtree" }, true},
		{"no cors origins", func(c *Config) { c.CORS.Origins = nil }, true},
		{"zero limit default", func(c *Config) { c.Query.LimitDefault = 0 }, true},
		{"limit max below default", func(c *Config) { c.Query.LimitMax = 10 }, true},
		{"empty collection attribute", func(c *Config) { c.Query.CollectionAttribute = "" }, true},
		{
			"memory backend without database",
			func(c *Config) {
				c.Store.Backend = BackendMemory
				c.Database = DatabaseConfig{}
			},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected validation error, got none")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestParseOrigins(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{"http://a.example, http://b.example", 2},
		{"http://a.example", 1},
		{"", 0},
		{" , ", 0},
	}

	for _, tt := range tests {
		if got := parseOrigins(tt.input); len(got) != tt.want {
			t.Errorf("parseOrigins(%q) = %v, want %d entries", tt.input, got, tt.want)
		}
	}
}
