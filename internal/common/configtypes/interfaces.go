package configtypes

// EngineConfigManager provides access to audit server configuration.
// Implementations must be safe for concurrent use.
// Returned pointers are read-only - callers must not modify them.
type EngineConfigManager interface {
	// GetConfig returns the main engine configuration (read-only)
	GetConfig() *EngineConfig
}
