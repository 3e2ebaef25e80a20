package snowflake

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNextIDString_Unique(t *testing.T) {
	require.NoError(t, Init(1, 1))

	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		id, err := NextIDString()
		require.NoError(t, err)
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = struct{}{}
	}
}
