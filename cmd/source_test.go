package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rotblauer/catmode/dataset"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestSourceFlags(t *testing.T) {
	root := t.TempDir()
	viper.Set("datadir", root)
	t.Cleanup(func() { viper.Set("datadir", "") })

	var sf sourceFlags
	require.Nil(t, sf.source(), "nothing configured, empty data dir")

	require.NoError(t, os.MkdirAll(filepath.Join(root, "datasets"), 0770))
	require.NoError(t, os.WriteFile(filepath.Join(root, "datasets", "trips.geojson"), nil, 0644))
	require.Equal(t, dataset.Dir{Root: root}, sf.source())

	sf = sourceFlags{geojson: []string{"a.geojson", "b.geojson.gz"}, sqlite: "fixes.db", sqliteQuery: "SELECT 1"}
	require.Equal(t, dataset.Multi{
		dataset.GeoJSONFile{Path: "a.geojson"},
		dataset.GeoJSONFile{Path: "b.geojson.gz"},
		dataset.SQLite{Path: "fixes.db", Query: "SELECT 1"},
	}, sf.source())
}
