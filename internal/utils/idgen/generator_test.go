package idgen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSecureID(t *testing.T) {
	tests := []struct {
		name       string
		prefix     string
		length     int
		wantPrefix string
	}{
		{name: "conversation id", prefix: PrefixConversation, length: 16, wantPrefix: "conv_"},
		{name: "message id", prefix: PrefixMessage, length: 16, wantPrefix: "msg_"},
		{name: "part id", prefix: PrefixPart, length: 8, wantPrefix: "part_"},
		{name: "long id", prefix: "test", length: 32, wantPrefix: "test_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := GenerateSecureID(tt.prefix, tt.length)
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(got, tt.wantPrefix))
			assert.Len(t, got, len(tt.prefix)+1+tt.length)
			for _, char := range got[len(tt.prefix)+1:] {
				assert.True(t, (char >= 'a' && char <= 'z') || (char >= '0' && char <= '9'), "invalid character %c", char)
			}
		})
	}
}

func TestNewIDIsUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		id, err := NewID(PrefixMessage)
		require.NoError(t, err)
		_, dup := seen[id]
		require.False(t, dup)
		seen[id] = struct{}{}
	}
}
