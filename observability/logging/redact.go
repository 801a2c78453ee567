package logging

import (
	"log/slog"
	"strings"
)

// RedactedValue replaces the value of sensitive log fields.
const RedactedValue = "[REDACTED]"

// Keys containing any of these fragments are masked. Reveal salts are
// included: logging one before the reveal deadline unseals the bid.
var sensitiveFragments = []string{
	"passphrase",
	"password",
	"secret",
	"token",
	"salt",
	"seed",
	"private",
	"authorization",
}

// visibleKeys are never masked even when they contain a fragment.
var visibleKeys = map[string]struct{}{
	"service":   {},
	"env":       {},
	"message":   {},
	"severity":  {},
	"timestamp": {},
	"error":     {},
	"action":    {},
	"rfq":       {},
	"kind":      {},
	"method":    {},
	"type":      {},
}

// IsSensitive reports whether values logged under key are masked.
func IsSensitive(key string) bool {
	normalized := strings.ToLower(strings.TrimSpace(key))
	if _, ok := visibleKeys[normalized]; ok {
		return false
	}
	for _, fragment := range sensitiveFragments {
		if strings.Contains(normalized, fragment) {
			return true
		}
	}
	return false
}

// MaskField returns key with its value masked unless the key is visible.
// Empty values are kept so absent secrets stay distinguishable.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" {
		return slog.String(key, value)
	}
	if _, ok := visibleKeys[strings.ToLower(strings.TrimSpace(key))]; ok {
		return slog.String(key, value)
	}
	return slog.String(key, RedactedValue)
}

func redactAttr(attr slog.Attr) slog.Attr {
	if attr.Value.Kind() == slog.KindGroup || !IsSensitive(attr.Key) {
		return attr
	}
	if attr.Value.Kind() == slog.KindString && strings.TrimSpace(attr.Value.String()) == "" {
		return attr
	}
	return slog.String(attr.Key, RedactedValue)
}
