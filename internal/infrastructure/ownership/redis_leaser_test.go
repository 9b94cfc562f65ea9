package ownership

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildUniversalOptions(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantAddrs []string
		wantDB    int
		wantPass  string
		wantErr   bool
	}{
		{name: "url", raw: "redis://:secret@cache:6379/2", wantAddrs: []string{"cache:6379"}, wantDB: 2, wantPass: "secret"},
		{name: "plain addresses", raw: "a:6379, b:6379", wantAddrs: []string{"a:6379", "b:6379"}},
		{name: "mixed", raw: "redis://a:6379,b:6379", wantAddrs: []string{"a:6379", "b:6379"}},
		{name: "empty", raw: " , ", wantErr: true},
		{name: "bad scheme", raw: "ftp://a:6379", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := buildUniversalOptions(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantAddrs, opts.Addrs)
			assert.Equal(t, tt.wantDB, opts.DB)
			assert.Equal(t, tt.wantPass, opts.Password)
		})
	}
}

func TestNewRedisLeaserRequiresURL(t *testing.T) {
	_, err := NewRedisLeaser("", 0)
	require.Error(t, err)
}
