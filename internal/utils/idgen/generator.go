package idgen

import (
	"crypto/rand"
	"fmt"
)

const charset = "0123456789abcdefghijklmnopqrstuvwxyz"

// GenerateSecureID generates a cryptographically secure ID with the given prefix and length.
// Uses only alphanumeric characters (0-9, a-z).
func GenerateSecureID(prefix string, length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	encoded := make([]byte, length)
	for i, b := range bytes {
		encoded[i] = charset[int(b)%len(charset)]
	}
	return fmt.Sprintf("%s_%s", prefix, string(encoded)), nil
}

// Prefixes for the ids the service mints.
const (
	PrefixConversation = "conv"
	PrefixMessage      = "msg"
	PrefixPart         = "part"
	PrefixChunk        = "chunk"
)

// DefaultLength is the random suffix length used for every entity id.
const DefaultLength = 24

// NewID mints an id for the given prefix with the default length.
func NewID(prefix string) (string, error) {
	return GenerateSecureID(prefix, DefaultLength)
}
