package observability

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/janhq/jan-chat/internal/config"
)

// PIILevel controls how much caller data reaches logs and spans.
type PIILevel string

const (
	// PIILevelNone redacts caller data entirely
	PIILevelNone PIILevel = "none"
	// PIILevelHashed replaces identifiers with salted hashes
	PIILevelHashed PIILevel = "hashed"
	// PIILevelFull leaves values untouched
	PIILevelFull PIILevel = "full"
)

const redacted = "[REDACTED]"

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`\b\d{3}[-.\s]?\d{3}[-.\s]?\d{4}\b`)
	ipv4Pattern  = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)
)

// Sanitizer scrubs user ids and free text before they are logged.
type Sanitizer struct {
	level PIILevel
	salt  string
}

func NewSanitizer(level PIILevel, salt string) *Sanitizer {
	switch level {
	case PIILevelNone, PIILevelHashed, PIILevelFull:
	default:
		level = PIILevelHashed
	}
	return &Sanitizer{level: level, salt: salt}
}

func ProvideSanitizer(cfg *config.Config) *Sanitizer {
	return NewSanitizer(PIILevel(strings.ToLower(cfg.TelemetryPIILevel)), cfg.ServiceName)
}

// SanitizeUserID hashes or redacts a caller id according to the level.
func (s *Sanitizer) SanitizeUserID(userID string) string {
	if userID == "" {
		return ""
	}
	switch s.level {
	case PIILevelNone:
		return redacted
	case PIILevelFull:
		return userID
	default:
		return s.hash(userID)
	}
}

// SanitizeText masks emails, phone numbers and IPv4 addresses inside text.
func (s *Sanitizer) SanitizeText(text string) string {
	if text == "" {
		return ""
	}
	switch s.level {
	case PIILevelNone:
		return redacted
	case PIILevelFull:
		return text
	}

	text = emailPattern.ReplaceAllStringFunc(text, func(match string) string {
		return fmt.Sprintf("[EMAIL:%s]", s.hash(match))
	})
	text = phonePattern.ReplaceAllStringFunc(text, func(match string) string {
		return fmt.Sprintf("[PHONE:%s]", s.hash(match))
	})
	return ipv4Pattern.ReplaceAllStringFunc(text, func(match string) string {
		return fmt.Sprintf("[IP:%s]", s.hash(match))
	})
}

// hash returns the first 8 hex chars of a salted SHA-256.
func (s *Sanitizer) hash(data string) string {
	sum := sha256.Sum256([]byte(data + s.salt))
	return hex.EncodeToString(sum[:])[:8]
}
