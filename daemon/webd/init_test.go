package webd

import (
	"testing"

	"github.com/rotblauer/catmode/common"
	"github.com/rotblauer/catmode/dataset"
	"github.com/rotblauer/catmode/params"
	"github.com/stretchr/testify/require"
)

// newTestWebDaemon creates a WebDaemon over a temporary data dir.
// A nil source disables training.
func newTestWebDaemon(t *testing.T, source dataset.Source) *WebDaemon {
	t.Helper()
	t.Cleanup(common.SlogResetLevel(10))
	config := params.DefaultTestWebDaemonConfig()
	config.DataDir = t.TempDir()
	d, err := NewWebDaemon(config, source)
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}
