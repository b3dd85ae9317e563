package crypto

import "crypto/ed25519"

// Signer interface for signing operations
type Signer interface {
	// Sign signs the given data and returns the signature
	Sign(data []byte) ([]byte, error)

	// SignBase64 signs data and returns base64-encoded signature
	SignBase64(data []byte) (string, error)

	// PublicKey returns the public key associated with this signer
	PublicKey() ed25519.PublicKey

	// PublicKeyBase64 returns the public key as base64
	PublicKeyBase64() string

	// KeyID returns the signer's canonical key identifier.
	KeyID() string
}

// Verifier interface for signature verification. It never errors on a
// malformed signature or public key — it reports false — only on
// malformed base64 input, which is a caller mistake rather than a
// verification outcome.
type Verifier interface {
	// Verify verifies a signature against data using the given public key
	Verify(publicKey ed25519.PublicKey, data, signature []byte) bool

	// VerifyBase64 verifies a base64-encoded signature
	VerifyBase64(publicKeyB64, signatureB64 string, data []byte) (bool, error)
}
