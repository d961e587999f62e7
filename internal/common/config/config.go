package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/sitepulse/engine/internal/common/configtypes"
	"github.com/sitepulse/engine/internal/common/yamlutil"
	"github.com/sitepulse/engine/pkg/types"
)

// EngineConfig is re-exported for call sites that only need the config shape
type EngineConfig = configtypes.EngineConfig

// Compile-time interface satisfaction check
var _ configtypes.EngineConfigManager = (*Manager)(nil)

// Manager handles configuration loading for the audit server
type Manager struct {
	config     *configtypes.EngineConfig
	configPath string
	logger     *zap.Logger
}

// NewManager loads configuration from an optional YAML file, applies
// environment overrides and defaults, and validates the result.
// An empty path runs entirely on defaults and environment.
func NewManager(configPath string, logger *zap.Logger) (*Manager, error) {
	m := &Manager{
		configPath: configPath,
		logger:     logger,
	}

	if err := m.LoadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load initial config: %w", err)
	}

	return m, nil
}

// LoadConfig loads configuration from the file (when configured), then layers
// environment overrides on top and fills remaining defaults.
func (m *Manager) LoadConfig() error {
	config := &configtypes.EngineConfig{}

	if m.configPath != "" {
		data, err := os.ReadFile(m.configPath)
		if err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yamlutil.UnmarshalStrict(data, config); err != nil {
			return fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(config)
	applyDefaults(config)

	if err := validate(config); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	m.config = config

	m.logger.Info("Configuration loaded",
		zap.String("path", m.configPath),
		zap.String("listen", config.Server.Listen),
		zap.Duration("audit_budget", config.Audit.Budget.ToDuration()),
		zap.String("cache_backend", config.Cache.Backend),
		zap.String("snapshot_backend", config.Snapshot.Backend),
		zap.Bool("psi_enabled", config.PSI.APIKey != ""),
	)

	return nil
}

// GetConfig returns the current audit server configuration
func (m *Manager) GetConfig() *configtypes.EngineConfig {
	return m.config
}

// SetConfig sets the configuration (for testing)
func (m *Manager) SetConfig(cfg *configtypes.EngineConfig) {
	m.config = cfg
}

// applyEnvOverrides layers process environment values over file-loaded
// configuration. Runs before applyDefaults so an env-enabled subsystem still
// receives its defaults.
func applyEnvOverrides(config *configtypes.EngineConfig) {
	if ms, ok := envMillis("AUDIT_BUDGET_MS"); ok {
		config.Audit.Budget = ms
	}
	if ms, ok := envMillis("AUDIT_CACHE_TTL_MS"); ok {
		config.Cache.TTL = ms
	}
	if v := os.Getenv("PSI_API_KEY"); v != "" {
		config.PSI.APIKey = v
	}
	if os.Getenv("DEBUG_AUDIT") == "1" {
		config.Audit.Debug = true
	}
	if v := os.Getenv("BLOB_READ_WRITE_TOKEN"); v != "" {
		config.Snapshot.Blob.Token = v
		// Presence of the token enables the blob store unless the file chose
		// a backend explicitly.
		if config.Snapshot.Backend == "" {
			config.Snapshot.Backend = configtypes.SnapshotBackendBlob
		}
	}
	if v := os.Getenv("BLOB_PUBLIC_BASE"); v != "" {
		config.Snapshot.Blob.PublicBase = v
	}
	if v := os.Getenv("SHARE_BASE"); v != "" {
		config.Share.Base = v
	}
	if v := os.Getenv("RESEND_API_KEY"); v != "" {
		config.Lead.Resend.APIKey = v
		config.Lead.Enabled = true
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		config.Redis.Addr = v
	}
}

func envMillis(name string) (types.Duration, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	ms, err := strconv.Atoi(v)
	if err != nil || ms <= 0 {
		return 0, false
	}
	return types.Duration(time.Duration(ms) * time.Millisecond), true
}

// applyDefaults applies default values to configuration
func applyDefaults(config *configtypes.EngineConfig) {
	if config.Server.Listen == "" {
		config.Server.Listen = ":8080"
	}
	if config.Server.Timeout.ToDuration() == 0 {
		config.Server.Timeout = types.Duration(30 * time.Second)
	}
	if config.Server.MaxBodySize == 0 {
		config.Server.MaxBodySize = 1 << 20
	}
	if config.Server.Concurrency == "" {
		config.Server.Concurrency = "auto"
	}

	if config.Audit.Budget.ToDuration() == 0 {
		config.Audit.Budget = types.Duration(8500 * time.Millisecond)
	}
	if config.Audit.PageTimeout.ToDuration() == 0 {
		config.Audit.PageTimeout = types.Duration(6000 * time.Millisecond)
	}
	if config.Audit.AssetTimeout.ToDuration() == 0 {
		config.Audit.AssetTimeout = types.Duration(2000 * time.Millisecond)
	}
	if config.Audit.SmallTimeout.ToDuration() == 0 {
		config.Audit.SmallTimeout = types.Duration(2500 * time.Millisecond)
	}
	if config.Audit.PSITimeout.ToDuration() == 0 {
		config.Audit.PSITimeout = types.Duration(3000 * time.Millisecond)
	}
	if config.Audit.SubRequestQuota == 0 {
		config.Audit.SubRequestQuota = 8
	}
	if config.Audit.RetryAttempts == 0 {
		config.Audit.RetryAttempts = 2
	}
	if config.Audit.RetryBaseDelay.ToDuration() == 0 {
		config.Audit.RetryBaseDelay = types.Duration(400 * time.Millisecond)
	}
	if config.Audit.ImageHeads == 0 {
		config.Audit.ImageHeads = 2
	}
	if config.Audit.SitemapSamples == 0 {
		config.Audit.SitemapSamples = 1
	}
	if config.Audit.MaxBodyBytes == 0 {
		config.Audit.MaxBodyBytes = 2 << 20
	}
	if config.Audit.UserAgent == "" {
		config.Audit.UserAgent = "Mozilla/5.0 (compatible; SitePulseBot/1.0; +https://sitepulse.dev/bot)"
	}

	if config.Cache.Backend == "" {
		config.Cache.Backend = configtypes.CacheBackendMemory
	}
	if config.Cache.TTL.ToDuration() == 0 {
		config.Cache.TTL = types.Duration(90 * time.Second)
	}
	if config.Redis.KeyPrefix == "" {
		config.Redis.KeyPrefix = "sitepulse:audit:"
	}

	if config.Snapshot.Backend == "" {
		config.Snapshot.Backend = configtypes.SnapshotBackendDisabled
	}
	if config.Snapshot.Blob.Endpoint == "" {
		config.Snapshot.Blob.Endpoint = "https://blob.vercel-storage.com"
	}
	if config.Snapshot.Blob.Timeout.ToDuration() == 0 {
		config.Snapshot.Blob.Timeout = types.Duration(5 * time.Second)
	}
	if config.Snapshot.Filesystem.Compression == "" {
		config.Snapshot.Filesystem.Compression = configtypes.CompressionSnappy
	}

	if config.PSI.Endpoint == "" {
		config.PSI.Endpoint = "https://www.googleapis.com/pagespeedonline/v5/runPagespeed"
	}

	if config.Lead.Resend.Endpoint == "" {
		config.Lead.Resend.Endpoint = "https://api.resend.com/emails"
	}
	if config.Lead.Resend.From == "" {
		config.Lead.Resend.From = "SitePulse Audit <audit@sitepulse.dev>"
	}
	if config.Lead.Resend.To == "" {
		config.Lead.Resend.To = "leads@sitepulse.dev"
	}

	// Apply log configuration defaults
	// If both outputs are disabled (zero values), enable console by default
	if !config.Log.Console.Enabled && !config.Log.File.Enabled {
		config.Log.Console.Enabled = true
	}
	if config.Log.Console.Format == "" {
		config.Log.Console.Format = configtypes.LogFormatConsole
	}
	if config.Log.File.Format == "" {
		config.Log.File.Format = configtypes.LogFormatText
	}

	if config.Metrics.Listen == "" {
		config.Metrics.Listen = ":9090"
	}
	if config.Metrics.Path == "" {
		config.Metrics.Path = "/metrics"
	}
	if config.Metrics.Namespace == "" {
		config.Metrics.Namespace = "sitepulse"
	}
}

// validate rejects configurations the server cannot run with
func validate(config *configtypes.EngineConfig) error {
	if err := configtypes.ValidateListenAddress(config.Server.Listen); err != nil {
		return fmt.Errorf("server.listen: %w", err)
	}
	if config.Metrics.Enabled {
		if err := configtypes.ValidateListenAddress(config.Metrics.Listen); err != nil {
			return fmt.Errorf("metrics.listen: %w", err)
		}
	}

	if config.Server.Concurrency != "auto" {
		n, err := strconv.Atoi(config.Server.Concurrency)
		if err != nil || n < 1 {
			return fmt.Errorf("server.concurrency must be \"auto\" or a positive integer, got %q", config.Server.Concurrency)
		}
	}

	durations := []struct {
		name  string
		value types.Duration
	}{
		{"server.timeout", config.Server.Timeout},
		{"audit.budget", config.Audit.Budget},
		{"audit.page_timeout", config.Audit.PageTimeout},
		{"audit.asset_timeout", config.Audit.AssetTimeout},
		{"audit.small_timeout", config.Audit.SmallTimeout},
		{"audit.psi_timeout", config.Audit.PSITimeout},
		{"audit.retry_base_delay", config.Audit.RetryBaseDelay},
		{"cache.ttl", config.Cache.TTL},
	}
	for _, d := range durations {
		if d.value.ToDuration() <= 0 {
			return fmt.Errorf("%s must be positive, got %s", d.name, d.value.ToDuration())
		}
	}

	if config.Audit.SubRequestQuota < 0 {
		return fmt.Errorf("audit.sub_request_quota must not be negative, got %d", config.Audit.SubRequestQuota)
	}
	if config.Audit.RetryAttempts < 1 {
		return fmt.Errorf("audit.retry_attempts must be at least 1, got %d", config.Audit.RetryAttempts)
	}
	if config.Audit.MaxBodyBytes <= 0 {
		return fmt.Errorf("audit.max_body_bytes must be positive, got %d", config.Audit.MaxBodyBytes)
	}

	switch config.Cache.Backend {
	case configtypes.CacheBackendMemory:
	case configtypes.CacheBackendRedis:
		if config.Redis.Addr == "" {
			return fmt.Errorf("cache.backend is %q but redis.addr is empty", config.Cache.Backend)
		}
	default:
		return fmt.Errorf("cache.backend must be one of [memory redis], got %q", config.Cache.Backend)
	}

	switch config.Snapshot.Backend {
	case configtypes.SnapshotBackendDisabled:
	case configtypes.SnapshotBackendBlob:
		if config.Snapshot.Blob.Token == "" {
			return fmt.Errorf("snapshot.backend is %q but snapshot.blob.token is empty", config.Snapshot.Backend)
		}
		if config.Snapshot.Blob.PublicBase == "" {
			return fmt.Errorf("snapshot.backend is %q but snapshot.blob.public_base is empty", config.Snapshot.Backend)
		}
	case configtypes.SnapshotBackendFilesystem:
		if config.Snapshot.Filesystem.BasePath == "" {
			return fmt.Errorf("snapshot.backend is %q but snapshot.filesystem.base_path is empty", config.Snapshot.Backend)
		}
		switch config.Snapshot.Filesystem.Compression {
		case configtypes.CompressionNone, configtypes.CompressionSnappy, configtypes.CompressionLZ4:
		default:
			return fmt.Errorf("snapshot.filesystem.compression must be one of [none snappy lz4], got %q", config.Snapshot.Filesystem.Compression)
		}
	default:
		return fmt.Errorf("snapshot.backend must be one of [blob filesystem disabled], got %q", config.Snapshot.Backend)
	}

	if config.Lead.Enabled && config.Lead.Resend.APIKey == "" {
		return fmt.Errorf("lead.enabled is true but lead.resend.api_key is empty")
	}

	return nil
}
