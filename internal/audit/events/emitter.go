package events

// Emitter defines the interface for audit event logging backends.
// Implementations should be fire-and-forget, non-blocking.
type Emitter interface {
	// Emit records an event. Errors are logged internally, never
	// returned to the caller.
	Emit(event *AuditEvent)

	// Close gracefully shuts down the emitter.
	Close() error
}

// NoopEmitter is a no-op implementation for disabled event logging.
type NoopEmitter struct{}

// Emit does nothing.
func (n *NoopEmitter) Emit(event *AuditEvent) {}

// Close returns nil.
func (n *NoopEmitter) Close() error { return nil }
