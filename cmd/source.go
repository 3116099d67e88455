package cmd

import (
	"github.com/rotblauer/catmode/dataset"
	"github.com/spf13/pflag"
)

// sourceFlags selects the labeled trips training reads.
type sourceFlags struct {
	geojson     []string
	sqlite      string
	sqliteQuery string
}

func (sf *sourceFlags) register(flags *pflag.FlagSet) {
	flags.StringSliceVar(&sf.geojson, "source", nil,
		"GeoJSON trip files, newline-delimited features, gzipped or not (repeatable)")
	flags.StringVar(&sf.sqlite, "sqlite", "", "SQLite database of fix rows")
	flags.StringVar(&sf.sqliteQuery, "sqlite-query", dataset.DefaultSQLiteQuery,
		"Query yielding (trip_id, mode, unix_ms, lat, lon)")
}

// source returns the configured sources.
// With none configured it falls back to the data directory's datasets folder,
// and returns nil if that is empty too.
func (sf *sourceFlags) source() dataset.Source {
	var multi dataset.Multi
	for _, path := range sf.geojson {
		multi = append(multi, dataset.GeoJSONFile{Path: path})
	}
	if sf.sqlite != "" {
		multi = append(multi, dataset.SQLite{Path: sf.sqlite, Query: sf.sqliteQuery})
	}
	if len(multi) == 0 {
		if dir := (dataset.Dir{Root: datadir()}); !dir.Empty() {
			return dir
		}
		return nil
	}
	return multi
}
