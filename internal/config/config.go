// Package config loads the aggregated YAML configuration shared by the
// tool server and gateway binaries, grounded on the teacher's nested
// yaml-tagged Config struct and gopkg.in/yaml.v3 loader.
package config

import (
	"fmt"
	"os"
	"time"
)

// Config is the root configuration document.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	DocStore      DocStoreConfig      `yaml:"docstore"`
	Auth          AuthConfig          `yaml:"auth"`
	ACL           ACLFileConfig       `yaml:"acl"`
	MCP           MCPConfig           `yaml:"mcp"`
	LLM           LLMConfig           `yaml:"llm"`
	BI            BIConfig            `yaml:"bi"`
	Logging       LoggingConfig       `yaml:"logging"`
	Tracing       TracingConfig       `yaml:"tracing"`
}

// ServerConfig configures the HTTP listeners.
type ServerConfig struct {
	Host        string `yaml:"host"`
	HTTPPort    int    `yaml:"http_port"`
	MetricsPort int    `yaml:"metrics_port"`
}

// DatabaseConfig configures the relational pool (component A).
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	AcquireTimeout  time.Duration `yaml:"acquire_timeout"`
}

// DocStoreConfig configures the document store adapter (component B).
type DocStoreConfig struct {
	URI      string        `yaml:"uri"`
	Database string        `yaml:"database"`
	Timeout  time.Duration `yaml:"timeout"`
}

// AuthConfig configures session/auth (component G).
type AuthConfig struct {
	FallbackUserEmail string        `yaml:"fallback_user_email"`
	ServiceJWTSecret  string        `yaml:"service_jwt_secret"`
	ServiceJWTExpiry  time.Duration `yaml:"service_jwt_expiry"`
}

// ACLFileConfig points at the declarative ACL document (component C).
type ACLFileConfig struct {
	Path    string        `yaml:"path"`
	TTL     time.Duration `yaml:"ttl"`
	NegativeTTL time.Duration `yaml:"negative_ttl"`
}

// MCPConfig configures both the server transports (E) and the outbound
// client bridge (F).
type MCPConfig struct {
	Pipe        MCPPipeConfig `yaml:"pipe"`
	SSEBasePath string        `yaml:"sse_base_path"`
	ServerURL   string        `yaml:"server_url"`
}

// MCPPipeConfig configures the stdio transport.
type MCPPipeConfig struct {
	Enabled bool `yaml:"enabled"`
}

// LLMConfig configures the hosted LLM vendor used by the orchestrator.
type LLMConfig struct {
	Provider      string `yaml:"provider"`
	APIKey        string `yaml:"api_key"`
	Model         string `yaml:"model"`
	SystemPrompt  string `yaml:"system_prompt"`
	MaxIterations int    `yaml:"max_iterations"`
}

// BIConfig configures the BI query-store HTTP client used by
// fetch_redash_query.
type BIConfig struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	ServiceName  string  `yaml:"service_name"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"sampling_rate"`
	Insecure     bool    `yaml:"insecure"`
}

// Defaults fills zero-valued fields with the system's operating defaults.
func (c *Config) Defaults() {
	if c.Server.HTTPPort == 0 {
		c.Server.HTTPPort = 8080
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 10
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.ConnMaxLifetime == 0 {
		c.Database.ConnMaxLifetime = 30 * time.Minute
	}
	if c.Database.AcquireTimeout == 0 {
		c.Database.AcquireTimeout = 5 * time.Second
	}
	if c.DocStore.Timeout == 0 {
		c.DocStore.Timeout = 5 * time.Second
	}
	if c.DocStore.Database == "" {
		c.DocStore.Database = "agentsql"
	}
	if c.ACL.TTL == 0 {
		c.ACL.TTL = 5 * time.Minute
	}
	if c.LLM.MaxIterations == 0 {
		c.LLM.MaxIterations = 20
	}
	if c.BI.Timeout == 0 {
		c.BI.Timeout = 10 * time.Second
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "agentsql"
	}
}

// applyEnvOverlay lets secrets travel through the environment instead of a
// checked-in file, matching the teacher's convention of keeping credentials
// out of YAML.
func (c *Config) applyEnvOverlay() {
	overlay(&c.Database.DSN, "AGENTSQL_DB_DSN")
	overlay(&c.DocStore.URI, "AGENTSQL_DOCSTORE_URI")
	overlay(&c.LLM.APIKey, "AGENTSQL_LLM_API_KEY")
	overlay(&c.BI.APIKey, "AGENTSQL_BI_API_KEY")
	overlay(&c.Auth.ServiceJWTSecret, "AGENTSQL_SERVICE_JWT_SECRET")
	overlay(&c.Auth.FallbackUserEmail, "AGENTSQL_FALLBACK_USER_EMAIL")
}

func overlay(dst *string, envVar string) {
	if v := os.Getenv(envVar); v != "" {
		*dst = v
	}
}

// Validate reports missing configuration that would make startup unsafe.
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.DocStore.URI == "" {
		return fmt.Errorf("docstore.uri is required")
	}
	if c.ACL.Path == "" {
		return fmt.Errorf("acl.path is required")
	}
	return nil
}
