package earegistry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_NotInitialized(t *testing.T) {
	c := New("https://registry.example", false)
	info, err := c.Resolve(context.Background(), "24V684")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not initialized")
	assert.Equal(t, "24V684", info.Number)
	assert.False(t, info.Exists)
}

func TestCheckAuthenticated_NotInitialized(t *testing.T) {
	c := New("https://registry.example", false)
	_, err := c.CheckAuthenticated(context.Background())
	require.Error(t, err)
}
