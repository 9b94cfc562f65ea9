package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeUserID(t *testing.T) {
	tests := []struct {
		name  string
		level PIILevel
		check func(t *testing.T, got string)
	}{
		{name: "none", level: PIILevelNone, check: func(t *testing.T, got string) {
			assert.Equal(t, "[REDACTED]", got)
		}},
		{name: "full", level: PIILevelFull, check: func(t *testing.T, got string) {
			assert.Equal(t, "user-1", got)
		}},
		{name: "hashed", level: PIILevelHashed, check: func(t *testing.T, got string) {
			assert.Len(t, got, 8)
			assert.NotEqual(t, "user-1", got)
		}},
		{name: "unknown level falls back to hashed", level: "weird", check: func(t *testing.T, got string) {
			assert.Len(t, got, 8)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, NewSanitizer(tt.level, "salt").SanitizeUserID("user-1"))
		})
	}
}

func TestSanitizeUserIDIsStablePerSalt(t *testing.T) {
	a := NewSanitizer(PIILevelHashed, "salt-a")
	b := NewSanitizer(PIILevelHashed, "salt-b")

	assert.Equal(t, a.SanitizeUserID("user-1"), a.SanitizeUserID("user-1"))
	assert.NotEqual(t, a.SanitizeUserID("user-1"), b.SanitizeUserID("user-1"))
	assert.Empty(t, a.SanitizeUserID(""))
}

func TestSanitizeText(t *testing.T) {
	s := NewSanitizer(PIILevelHashed, "salt")

	got := s.SanitizeText("limit=10&email=jane@example.com&ip=10.0.0.1")
	assert.NotContains(t, got, "jane@example.com")
	assert.NotContains(t, got, "10.0.0.1")
	assert.Contains(t, got, "limit=10")
	assert.Contains(t, got, "[EMAIL:")
	assert.Contains(t, got, "[IP:")

	assert.Equal(t, "[REDACTED]", NewSanitizer(PIILevelNone, "").SanitizeText("anything"))
	assert.Equal(t, "anything", NewSanitizer(PIILevelFull, "").SanitizeText("anything"))
}
