package cli

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func configWithPIDFile(t *testing.T, pidFile string) string {
	t.Helper()
	raw := strings.Replace(testConfigJSON(t, ""), `"transport"`, `"pid_file":`+strconv.Quote(pidFile)+`,"transport"`, 1)
	return writeConfig(t, raw)
}

func TestStatusCommand(t *testing.T) {
	t.Run("stopped", func(t *testing.T) {
		path := configWithPIDFile(t, filepath.Join(t.TempDir(), "triagebot.pid"))

		out, err := execute(t, "status", "--config", path)
		require.NoError(t, err)
		assert.Contains(t, out, "Status: stopped")
	})

	t.Run("running", func(t *testing.T) {
		pidFile := filepath.Join(t.TempDir(), "triagebot.pid")
		require.NoError(t, os.WriteFile(pidFile, []byte(strconv.Itoa(os.Getpid())), 0644))
		path := configWithPIDFile(t, pidFile)

		out, err := execute(t, "status", "--config", path)
		require.NoError(t, err)
		assert.Contains(t, out, "Status: running")
		assert.Contains(t, out, "PID: "+strconv.Itoa(os.Getpid()))
		assert.Contains(t, out, "Uptime:")
	})

	t.Run("no pid file configured", func(t *testing.T) {
		path := writeConfig(t, testConfigJSON(t, ""))

		_, err := execute(t, "status", "--config", path)
		assert.ErrorContains(t, err, "pid_file")
	})
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		expected string
	}{
		{"seconds only", 45 * time.Second, "45s"},
		{"minutes and seconds", 2*time.Minute + 30*time.Second, "2m30s"},
		{"hours minutes seconds", 3*time.Hour + 15*time.Minute + 20*time.Second, "3h15m20s"},
		{"zero", 0, "0s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := formatDuration(tt.duration)
			assert.Equal(t, tt.expected, result)
		})
	}
}
