package uid

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewStringUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		s := NewString()
		require.Len(t, s, 32)
		require.False(t, seen[s])
		seen[s] = true
	}
}
