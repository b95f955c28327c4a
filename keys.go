package arcache

import (
	"github.com/unkn0wn-root/arcache/internal/util"
)

// KeyBuilder maps user keys and group names onto backend keys.
type KeyBuilder struct {
	namespace string
	delimiter string
}

func NewKeyBuilder(namespace, delimiter string) KeyBuilder {
	return KeyBuilder{namespace: namespace, delimiter: coalesce(delimiter, defaultKeyDelimiter)}
}

// BackendKey is namespace + delimiter + key, or key when no namespace is set.
func (k KeyBuilder) BackendKey(key string) string {
	return util.Namespaced(k.namespace, k.delimiter, key)
}

// InvalidationBackendKey is BackendKey(InvalidationKeyPrefix + delimiter + group).
func (k KeyBuilder) InvalidationBackendKey(group string) string {
	return k.BackendKey(util.Join(k.delimiter, InvalidationKeyPrefix, group))
}

func (k KeyBuilder) Namespace() string { return k.namespace }
func (k KeyBuilder) Delimiter() string { return k.delimiter }
