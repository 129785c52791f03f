package mcpserver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServer(t *testing.T) {
	t.Run("nil resource manager returns error", func(t *testing.T) {
		server, err := NewServer(nil, nil, nil)
		require.Error(t, err)
		assert.Nil(t, server)
		assert.ErrorIs(t, err, ErrMissingResources)
	})

	t.Run("valid dependencies create server", func(t *testing.T) {
		server, _, _ := newTestServer(t)
		assert.NotNil(t, server)
		assert.NotNil(t, server.server)
	})
}
