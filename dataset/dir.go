package dataset

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotblauer/catmode/catdb/flat"
	"github.com/rotblauer/catmode/types/trip"
)

// Dir reads every dataset file under the data directory's datasets/ folder.
// SQLite files (.db, .sqlite) are read with DefaultSQLiteQuery;
// anything else ending in .json, .geojson, .ndjson, or .gz is read as GeoJSON.
// A missing folder yields no trips.
type Dir struct {
	Root string
}

func (d Dir) sources() (Multi, error) {
	f := flat.NewFlatWithRoot(d.Root).Datasets()
	if !f.Exists() {
		return nil, nil
	}
	entries, err := os.ReadDir(f.Path())
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var multi Multi
	for _, name := range names {
		switch strings.ToLower(filepath.Ext(name)) {
		case ".db", ".sqlite":
			multi = append(multi, SQLite{Path: f.Join(name), Query: DefaultSQLiteQuery})
		case ".json", ".geojson", ".ndjson", ".gz":
			multi = append(multi, GeoJSONFile{Path: f.Join(name)})
		}
	}
	return multi, nil
}

// Empty reports whether the folder holds no dataset files.
func (d Dir) Empty() bool {
	multi, err := d.sources()
	return err != nil || len(multi) == 0
}

func (d Dir) Trips(ctx context.Context) ([]*trip.Trip, error) {
	multi, err := d.sources()
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	return multi.Trips(ctx)
}
