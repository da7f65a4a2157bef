// Package config is the root configuration for the whole tool: gateway
// connection, schema cache, paging limits, hierarchy fields and logging.
package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

var (
	instance *Config
	once     sync.Once
)

// Config is the root configuration structure.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger"`
	Gateway  GatewayConfig  `mapstructure:"gateway"`
	Schema   SchemaConfig   `mapstructure:"schema"`
	Query    QueryConfig    `mapstructure:"query"`
	Force    ForceConfig    `mapstructure:"force"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level"`
	Format      string `mapstructure:"format"`
	AddSource   bool   `mapstructure:"add_source"`
	ServiceName string `mapstructure:"service_name"`
	LogFile     string `mapstructure:"log_file"`
	MaxSize     int    `mapstructure:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups"`
	MaxAge      int    `mapstructure:"max_age"`
	Compress    bool   `mapstructure:"compress"`
}

// GatewayConfig holds the connection settings for the remote gateway.
type GatewayConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	AuthKind        string        `mapstructure:"auth_kind"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	Token           string        `mapstructure:"token"`
	SAPClient       string        `mapstructure:"sap_client"`
	Language        string        `mapstructure:"language"`
	UserAgent       string        `mapstructure:"user_agent"`
	Timeout         time.Duration `mapstructure:"timeout"`
	IgnoreTLSErrors bool          `mapstructure:"ignore_tls_errors"`
}

// SchemaConfig holds the schema cache settings.
type SchemaConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// QueryConfig bounds paging behavior. Zero disables a bound.
type QueryConfig struct {
	DefaultPageSize int `mapstructure:"default_page_size"`
	MaxPageSize     int `mapstructure:"max_page_size"`
	DefaultMaxPages int `mapstructure:"default_max_pages"`
	MaxPagesCap     int `mapstructure:"max_pages_cap"`
}

// ForceConfig holds the force-element domain settings: which parent field
// backs each hierarchy type and how many IDs go into one bulk filter.
type ForceConfig struct {
	ParentFields map[string]string `mapstructure:"parent_fields"`
	ChunkSize    int               `mapstructure:"chunk_size"`
}

// PostgresConfig holds settings for the optional snapshot store.
type PostgresConfig struct {
	URL string `mapstructure:"url"`
}

// SetDefaults seeds viper so the tool runs with a minimal config file.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "orbat")

	v.SetDefault("gateway.auth_kind", "basic")
	v.SetDefault("gateway.language", "EN")
	v.SetDefault("gateway.user_agent", "orbat-cli/0.2")
	v.SetDefault("gateway.timeout", 60*time.Second)

	v.SetDefault("schema.ttl", 15*time.Minute)

	v.SetDefault("query.max_page_size", 5000)
	v.SetDefault("query.default_max_pages", 10)
	v.SetDefault("query.max_pages_cap", 100)

	v.SetDefault("force.chunk_size", 25)
	v.SetDefault("force.parent_fields", map[string]string{
		"structure": "FrcElmntOrgStrucParentID",
		"peacetime": "FrcElmntOrgPeaceTimeParentID",
		"wartime":   "FrcElmntOrgWarTimeParentID",
		"operation": "FrcElmntOrgOplAssgmtParentID",
		"exercise":  "FrcElmntOrgExerAssgmtParentID",
	})
}

// Validate checks the parts every command depends on.
func (c *Config) Validate() error {
	if c.Gateway.BaseURL == "" {
		return fmt.Errorf("gateway.base_url is required (hint: ORBAT_GATEWAY_BASE_URL)")
	}
	switch strings.ToLower(c.Gateway.AuthKind) {
	case "basic", "bearer":
	default:
		return fmt.Errorf("gateway.auth_kind must be 'basic' or 'bearer', got %q", c.Gateway.AuthKind)
	}
	if c.Query.MaxPageSize > 0 && c.Query.DefaultPageSize > c.Query.MaxPageSize {
		return fmt.Errorf("query.default_page_size exceeds query.max_page_size")
	}
	return nil
}

// Load initializes the configuration singleton from Viper.
func Load(v *viper.Viper) error {
	var loadErr error
	once.Do(func() {
		var cfg Config
		if err := v.Unmarshal(&cfg); err != nil {
			loadErr = fmt.Errorf("error unmarshaling config: %w", err)
			return
		}
		instance = &cfg
	})
	return loadErr
}

// Get returns the loaded configuration instance.
func Get() *Config {
	if instance == nil {
		panic("Configuration not initialized. Call config.Load() in the root command.")
	}
	return instance
}
