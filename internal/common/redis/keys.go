package redis

const reportKeySegment = "report:"

// KeyGenerator namespaces Redis keys so several deployments can share one
// instance. The prefix comes from redis.key_prefix in the configuration.
type KeyGenerator struct {
	prefix string
}

// NewKeyGenerator creates a KeyGenerator with the given namespace prefix.
func NewKeyGenerator(prefix string) *KeyGenerator {
	return &KeyGenerator{prefix: prefix}
}

// ReportKey builds the Redis key for a cached audit report from its
// canonical cache key.
func (kg *KeyGenerator) ReportKey(cacheKey string) string {
	return kg.prefix + reportKeySegment + cacheKey
}
