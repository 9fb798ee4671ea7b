package util

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
)

const keySeparator = ":"

func GetIDFromString(str *string) string {
	hasher := sha1.New()
	hasher.Write([]byte(*str))

	return hex.EncodeToString(hasher.Sum(nil))
}

// CacheKey joins prefix with the sha1 of parts, so arbitrary URLs make safe redis keys and file names.
func CacheKey(prefix string, parts ...string) string {
	joined := strings.Join(parts, "\n")

	return prefix + keySeparator + GetIDFromString(&joined)
}
