// internal/common/config/config.go
package config

import (
	"fmt"
	"strconv"
)

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Server        ServerConfig            `mapstructure:"server"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Certificate   CertificateConfig       `mapstructure:"certificate"`
	Content       ContentConfig           `mapstructure:"content"`
	Ledger        LedgerConfig            `mapstructure:"ledger"`
	Notifications NotificationConfig      `mapstructure:"notifications"`
	Logging       LoggingConfig           `mapstructure:"logging"`
	Observability ObservabilityConfig     `mapstructure:"observability"`
	Registry      RegistryConfig          `mapstructure:"registry"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// ServerConfig is the health/metrics listener.
type ServerConfig struct {
	Address string `mapstructure:"address"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	Plaintext      bool   `mapstructure:"plaintext"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
	MigrationsAuto bool   `mapstructure:"migrations_auto"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Enabled    bool     `mapstructure:"enabled"`
	Addresses  []string `mapstructure:"addresses"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	AuditIndex string   `mapstructure:"audit_index"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// --- Certificate Domain Configuration ---

// CertificateConfig drives issuance and verification.
type CertificateConfig struct {
	IssuerName       string `mapstructure:"issuer_name"`
	CallTimeout      int    `mapstructure:"call_timeout"` // milliseconds, per content/ledger call
	DownloadBasePath string `mapstructure:"download_base_path"`
	LedgerRetryBatch int    `mapstructure:"ledger_retry_batch"`
	ValidityYears    int    `mapstructure:"validity_years"` // 0 = no expiry
	FontPath         string `mapstructure:"font_path"`      // TrueType font for non-Latin names; empty uses Helvetica
}

// ContentConfig selects the content-addressed store.
type ContentConfig struct {
	Provider string `mapstructure:"provider"` // "ipfs" or "memory"
	IPFS     struct {
		Host    string `mapstructure:"host"`
		Port    int    `mapstructure:"port"`
		Timeout int    `mapstructure:"timeout"` // milliseconds
	} `mapstructure:"ipfs"`
}

// APIURL returns the IPFS HTTP API base, e.g. http://127.0.0.1:5001/api/v0.
func (c ContentConfig) APIURL() string {
	return "http://" + c.IPFS.Host + ":" + strconv.Itoa(c.IPFS.Port) + "/api/v0"
}

// LedgerConfig configures the optional ledger anchor. Disabled means no anchor is injected.
type LedgerConfig struct {
	Enabled  bool         `mapstructure:"enabled"`
	Provider string       `mapstructure:"provider"` // "webase" or "memory"
	WeBASE   WeBASEConfig `mapstructure:"webase"`
}

type WeBASEConfig struct {
	URL             string  `mapstructure:"url"`
	GroupID         int     `mapstructure:"group_id"`
	UserAddress     string  `mapstructure:"user_address"`
	ContractAddress string  `mapstructure:"contract_address"`
	ContractABI     string  `mapstructure:"contract_abi"`
	Timeout         int     `mapstructure:"timeout"`    // milliseconds
	RateLimit       float64 `mapstructure:"rate_limit"` // requests per second
	Burst           int     `mapstructure:"burst"`
}

// NotificationConfig holds settings for holder notifications.
type NotificationConfig struct {
	Email struct {
		Enabled   bool   `mapstructure:"enabled"`
		FromEmail string `mapstructure:"from_email"`
	} `mapstructure:"email"`
	SMS struct {
		Enabled  bool   `mapstructure:"enabled"`
		SenderID string `mapstructure:"sender_id"`
	} `mapstructure:"sms"`
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

type ObservabilityConfig struct {
	ServiceName    string `mapstructure:"service_name"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
}

// RegistryConfig points at the activity registry holding per-task input schemas.
type RegistryConfig struct {
	Path string `mapstructure:"path"`
}
