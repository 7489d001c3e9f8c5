package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStopCommand(t *testing.T) {
	t.Run("help text", func(t *testing.T) {
		out, err := execute(t, "stop", "--help")
		require.NoError(t, err)

		assert.Contains(t, out, "Stop the relay")
		assert.Contains(t, out, "timeout")
	})

	t.Run("not running", func(t *testing.T) {
		path := configWithPIDFile(t, filepath.Join(t.TempDir(), "triagebot.pid"))

		out, err := execute(t, "stop", "--config", path)
		require.NoError(t, err)
		assert.Contains(t, out, "Relay is not running")
	})
}
