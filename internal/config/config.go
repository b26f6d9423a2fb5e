package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Store backends selectable through STORE_BACKEND.
const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Spatial index kinds selectable through SPATIAL_INDEX.
const (
	IndexLinear = "linear"
	IndexRTree  = "rtree"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	CORS     CORSConfig
	Query    QueryConfig
	Store    StoreConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string
	Env  string
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	PoolMin  int
	PoolMax  int
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	Origins []string
}

// QueryConfig bounds item queries and names the attribute that groups
// footprints into collections.
type QueryConfig struct {
	LimitDefault        int
	LimitMax            int
	CollectionAttribute string
}

// StoreConfig selects the persistence backend and the spatial index kind.
type StoreConfig struct {
	Backend   string
	IndexKind string
}

// Load reads configuration from environment variables with development
// defaults.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_NAME", "grondplan")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_POOL_MIN", 2)
	v.SetDefault("DB_POOL_MAX", 10)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("QUERY_LIMIT_DEFAULT", 50)
	v.SetDefault("QUERY_LIMIT_MAX", 1000)
	v.SetDefault("COLLECTION_ATTRIBUTE", "municipality")
	v.SetDefault("STORE_BACKEND", BackendPostgres)
	v.SetDefault("SPATIAL_INDEX", IndexRTree)

	v.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Port: v.GetString("PORT"),
			Env:  v.GetString("ENV"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			Name:     v.GetString("DB_NAME"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			PoolMin:  v.GetInt("DB_POOL_MIN"),
			PoolMax:  v.GetInt("DB_POOL_MAX"),
		},
		CORS: CORSConfig{
			Origins: parseOrigins(v.GetString("CORS_ORIGINS")),
		},
		Query: QueryConfig{
			LimitDefault:        v.GetInt("QUERY_LIMIT_DEFAULT"),
			LimitMax:            v.GetInt("QUERY_LIMIT_MAX"),
			CollectionAttribute: v.GetString("COLLECTION_ATTRIBUTE"),
		},
		Store: StoreConfig{
			Backend:   v.GetString("STORE_BACKEND"),
			IndexKind: v.GetString("SPATIAL_INDEX"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks that required configuration is present and consistent.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	switch c.Store.Backend {
	case BackendMemory:
		// No database required.
	case BackendPostgres:
		if c.Database.Host == "" {
			return fmt.Errorf("DB_HOST is required")
		}
		if c.Database.Port == "" {
			return fmt.Errorf("DB_PORT is required")
		}
		if c.Database.Name == "" {
			return fmt.Errorf("DB_NAME is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("DB_USER is required")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("DB_PASSWORD is required")
		}
		if c.Database.PoolMin < 0 {
			return fmt.Errorf("DB_POOL_MIN must be non-negative")
		}
		if c.Database.PoolMax < 1 {
			return fmt.Errorf("DB_POOL_MAX must be at least 1")
		}
		if c.Database.PoolMin > c.Database.PoolMax {
			return fmt.Errorf("DB_POOL_MIN must be less than or equal to DB_POOL_MAX")
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be %q or %q, got %q",
			BackendPostgres, BackendMemory, c.Store.Backend)
	}

	if c.Store.IndexKind != IndexLinear && c.Store.IndexKind != IndexRTree {
		return fmt.Errorf("SPATIAL_INDEX must be %q or %q, got %q",
			IndexLinear, IndexRTree, c.Store.IndexKind)
	}

	if len(c.CORS.Origins) == 0 {
		return fmt.Errorf("CORS_ORIGINS is required")
	}

	if c.Query.LimitDefault < 1 {
		return fmt.Errorf("QUERY_LIMIT_DEFAULT must be at least 1")
	}
	if c.Query.LimitMax < c.Query.LimitDefault {
		return fmt.Errorf("QUERY_LIMIT_MAX must be at least QUERY_LIMIT_DEFAULT")
	}
	if c.Query.CollectionAttribute == "" {
		return fmt.Errorf("COLLECTION_ATTRIBUTE is required")
	}

	return nil
}

// parseOrigins splits a comma-separated string of origins into a slice.
func parseOrigins(origins string) []string {
	if origins == "" {
		return []string{}
	}

	parts := strings.Split(origins, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
