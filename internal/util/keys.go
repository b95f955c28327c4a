package util

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// Join concatenates non-empty parts with delim.
func Join(delim string, parts ...string) string {
	var b strings.Builder
	for _, p := range parts {
		if p == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString(delim)
		}
		b.WriteString(p)
	}
	return b.String()
}

// Namespaced prefixes key with ns when ns is set.
func Namespaced(ns, delim, key string) string {
	if ns == "" {
		return key
	}
	return ns + delim + key
}

// Fingerprint is a short stable digest of key, used where raw keys must not
// leak (logs, metrics labels).
func Fingerprint(key string) string {
	sum := sha256.Sum256([]byte(key))
	return fmt.Sprintf("%x", sum[:8])
}
