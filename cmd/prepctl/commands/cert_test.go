package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/prepctl/internal/config"
	perrors "github.com/systmms/prepctl/internal/errors"
	"github.com/systmms/prepctl/internal/logging"
)

func TestCertCommand_RequiresDomain(t *testing.T) {
	cfg := &config.Config{
		Path:   "prepctl.yaml",
		Logger: logging.New(false, true),
	}

	cmd := NewCertCommand(cfg)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "domain")
}

func TestReadZoneComment(t *testing.T) {
	t.Run("missing file yields empty comment", func(t *testing.T) {
		comment, err := readZoneComment(filepath.Join(t.TempDir(), "domain.yaml"))
		require.NoError(t, err)
		assert.Empty(t, comment)
	})

	t.Run("comment from file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "domain.yaml")
		require.NoError(t, os.WriteFile(path, []byte("comment: Owned by platform team\n"), 0644))

		comment, err := readZoneComment(path)
		require.NoError(t, err)
		assert.Equal(t, "Owned by platform team", comment)
	})

	t.Run("malformed file is a config error", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "domain.yaml")
		require.NoError(t, os.WriteFile(path, []byte("comment: [unclosed\n"), 0644))

		_, err := readZoneComment(path)
		require.Error(t, err)
		var cfgErr perrors.ConfigError
		assert.ErrorAs(t, err, &cfgErr)
	})
}
