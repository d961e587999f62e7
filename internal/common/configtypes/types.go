package configtypes

import (
	"github.com/sitepulse/engine/pkg/types"
)

// Log level constants
const (
	LogLevelDebug  = "debug"
	LogLevelInfo   = "info"
	LogLevelWarn   = "warn"
	LogLevelError  = "error"
	LogLevelDPanic = "dpanic"
	LogLevelPanic  = "panic"
	LogLevelFatal  = "fatal"
)

// Log format constants
const (
	LogFormatJSON    = "json"
	LogFormatConsole = "console"
	LogFormatText    = "text"
)

// Cache backend constants
const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

// Snapshot backend constants
const (
	SnapshotBackendBlob       = "blob"
	SnapshotBackendFilesystem = "filesystem"
	SnapshotBackendDisabled   = "disabled"
)

// Compression algorithm constants for the filesystem snapshot store
const (
	CompressionNone   = "none"
	CompressionSnappy = "snappy"
	CompressionLZ4    = "lz4"
)

// EngineConfig represents the audit server's main application configuration
type EngineConfig struct {
	Server       ServerConfig        `yaml:"server"`
	Audit        AuditConfig         `yaml:"audit"`
	Cache        CacheConfig         `yaml:"cache"`
	Redis        RedisConfig         `yaml:"redis"`
	Snapshot     SnapshotConfig      `yaml:"snapshot"`
	Share        ShareConfig         `yaml:"share"`
	PSI          PSIConfig           `yaml:"psi"`
	Lead         LeadConfig          `yaml:"lead"`
	EventLogging *EventLoggingConfig `yaml:"event_logging,omitempty"`
	Log          LogConfig           `yaml:"log"`
	Metrics      MetricsConfig       `yaml:"metrics"`
	InstanceID   string              `yaml:"instance_id,omitempty"`
}

// ServerConfig configures the public HTTP listener.
// Concurrency is "auto" (sized from system memory) or an integer string
// bounding simultaneous audits.
type ServerConfig struct {
	Listen      string         `yaml:"listen"`
	Timeout     types.Duration `yaml:"timeout"`
	MaxBodySize int            `yaml:"max_body_size"`
	Concurrency string         `yaml:"concurrency"`
}

// AuditConfig bounds a single audit run: the overall wall-clock budget,
// the per-probe timeout classes, and the discretionary sub-request quota.
type AuditConfig struct {
	Budget          types.Duration `yaml:"budget"`
	PageTimeout     types.Duration `yaml:"page_timeout"`
	AssetTimeout    types.Duration `yaml:"asset_timeout"`
	SmallTimeout    types.Duration `yaml:"small_timeout"`
	PSITimeout      types.Duration `yaml:"psi_timeout"`
	SubRequestQuota int            `yaml:"sub_request_quota"`
	RetryAttempts   int            `yaml:"retry_attempts"`
	RetryBaseDelay  types.Duration `yaml:"retry_base_delay"`
	ImageHeads      int            `yaml:"image_heads"`
	SitemapSamples  int            `yaml:"sitemap_samples"`
	MaxBodyBytes    int64          `yaml:"max_body_bytes"`
	UserAgent       string         `yaml:"user_agent"`
	Debug           bool           `yaml:"debug"`
	// BlockPrivateHosts refuses targets whose host is a private or reserved
	// IP literal. Off by default so local and staging origins stay auditable.
	BlockPrivateHosts bool `yaml:"block_private_hosts"`
}

type CacheConfig struct {
	Backend string         `yaml:"backend"`
	TTL     types.Duration `yaml:"ttl"`
}

type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix,omitempty"`
}

type SnapshotConfig struct {
	Backend    string                `yaml:"backend"`
	Blob       BlobStoreConfig       `yaml:"blob"`
	Filesystem FilesystemStoreConfig `yaml:"filesystem"`
}

// BlobStoreConfig points at an external blob API. Writes go to
// Endpoint/<path> with a bearer Token; reads resolve against PublicBase.
type BlobStoreConfig struct {
	Endpoint   string         `yaml:"endpoint"`
	Token      string         `yaml:"token"`
	PublicBase string         `yaml:"public_base"`
	Timeout    types.Duration `yaml:"timeout"`
}

type FilesystemStoreConfig struct {
	BasePath    string `yaml:"base_path"`
	Compression string `yaml:"compression,omitempty"`
}

// ShareConfig holds the public widget URL prefix for shareable links.
type ShareConfig struct {
	Base string `yaml:"base"`
}

// PSIConfig enables the PageSpeed probe when APIKey is non-empty.
type PSIConfig struct {
	APIKey   string `yaml:"api_key"`
	Endpoint string `yaml:"endpoint,omitempty"`
}

// LeadConfig configures the lead-capture endpoint and its mail provider.
type LeadConfig struct {
	Enabled bool         `yaml:"enabled"`
	Resend  ResendConfig `yaml:"resend"`
}

type ResendConfig struct {
	Endpoint string `yaml:"endpoint,omitempty"`
	APIKey   string `yaml:"api_key"`
	From     string `yaml:"from"`
	To       string `yaml:"to"`
}

type LogConfig struct {
	Level   string           `yaml:"level"`
	Console ConsoleLogConfig `yaml:"console"`
	File    FileLogConfig    `yaml:"file"`
}

type ConsoleLogConfig struct {
	Enabled bool   `yaml:"enabled"`
	Format  string `yaml:"format"`
	Level   string `yaml:"level,omitempty"`
}

type FileLogConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Path     string         `yaml:"path"`
	Format   string         `yaml:"format"`
	Level    string         `yaml:"level,omitempty"`
	Rotation RotationConfig `yaml:"rotation"`
}

type RotationConfig struct {
	MaxSize    int  `yaml:"max_size"`
	MaxAge     int  `yaml:"max_age"`
	MaxBackups int  `yaml:"max_backups"`
	Compress   bool `yaml:"compress"`
}

type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Listen    string `yaml:"listen"`
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"`
}

// EventLoggingConfig configures audit event logging
type EventLoggingConfig struct {
	File EventFileConfig `yaml:"file"`
}

// EventFileConfig configures file-based audit event logging
type EventFileConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Path     string         `yaml:"path"`
	Rotation RotationConfig `yaml:"rotation"`
}
