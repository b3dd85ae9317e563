package canon

import (
	"crypto/sha256"
	"encoding/hex"
)

// SHA256Hex returns the lowercase hex SHA-256 digest of data.
func SHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Hash returns the hex-encoded SHA-256 digest of value's canonical bytes.
func Hash(value interface{}) (string, error) {
	b, err := Marshal(value)
	if err != nil {
		return "", err
	}
	return SHA256Hex(b), nil
}
