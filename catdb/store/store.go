/*
Package store persists calibration models in a single bbolt file.

The working models live under one key. Snapshots are immutable named copies:
each body is its own key, while their metadata shares a single index document
so listings need not decode any models.
*/
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/rotblauer/catmode/calibration"
	"github.com/rotblauer/catmode/events"
	"github.com/rotblauer/catmode/params"
	"go.etcd.io/bbolt"
)

type Store struct {
	config *params.StoreConfig
	db     *bbolt.DB
	logger *slog.Logger

	// snaps caches loaded snapshots by name. Nil when disabled.
	snaps *ttlcache.Cache[string, *Snapshot]
}

// Open opens or creates the store file, waiting up to a second for the file lock.
func Open(config *params.StoreConfig) (*Store, error) {
	if config == nil {
		config = params.DefaultStoreConfig()
	}
	if err := os.MkdirAll(filepath.Dir(config.Path), 0770); err != nil {
		return nil, err
	}
	db, err := bbolt.Open(config.Path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", config.Path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{params.WorkingBucket, params.SnapshotsBucket, params.MetaBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	s := &Store{
		config: config,
		db:     db,
		logger: slog.With("d", "store"),
	}
	if config.SnapshotCacheTTL > 0 {
		s.snaps = ttlcache.New[string, *Snapshot](
			ttlcache.WithTTL[string, *Snapshot](config.SnapshotCacheTTL),
			ttlcache.WithCapacity[string, *Snapshot](params.CacheSnapshotCapacity),
		)
		go s.snaps.Start()
	}
	return s, nil
}

func (s *Store) Close() error {
	if s.snaps != nil {
		s.snaps.Stop()
	}
	return s.db.Close()
}

func (s *Store) Path() string {
	return s.config.Path
}

// Working returns the working models.
// A missing or unreadable slot yields the built-in defaults.
func (s *Store) Working() (calibration.Models, error) {
	var models calibration.Models
	var corrupt error
	err := s.db.View(func(tx *bbolt.Tx) error {
		got := tx.Bucket(params.WorkingBucket).Get(params.WorkingKey)
		if got == nil {
			return nil
		}
		// Unmarshal copies; got is only valid inside the transaction.
		if err := json.Unmarshal(got, &models); err != nil {
			corrupt = err
			models = nil
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if corrupt != nil {
		s.logger.Warn("Working models unreadable, using defaults", "error", corrupt)
	}
	if models == nil {
		return calibration.Defaults(), nil
	}
	for m, model := range models {
		if model == nil {
			delete(models, m)
		}
	}
	return models, nil
}

// Apply replaces the working models.
func (s *Store) Apply(models calibration.Models) error {
	if models == nil {
		models = calibration.Models{}
	}
	data, err := json.Marshal(models)
	if err != nil {
		return err
	}
	err = s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(params.WorkingBucket).Put(params.WorkingKey, data)
	})
	if err != nil {
		return err
	}
	s.logger.Info("Applied working models", "modes", models.Modes())
	events.ModelsAppliedFeed.Send(models.Clone())
	return nil
}

// Reset forgets the working models so the defaults apply again.
func (s *Store) Reset() error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(params.WorkingBucket).Delete(params.WorkingKey)
	})
	if err != nil {
		return err
	}
	s.logger.Info("Reset working models to defaults")
	events.ModelsAppliedFeed.Send(calibration.Defaults())
	return nil
}

// Clear stores an empty model set. Nothing classifies until models are applied.
func (s *Store) Clear() error {
	return s.Apply(calibration.Models{})
}

func readIndex(tx *bbolt.Tx) (map[string]Metadata, error) {
	index := make(map[string]Metadata)
	got := tx.Bucket(params.MetaBucket).Get(params.MetaIndexKey)
	if got == nil {
		return index, nil
	}
	if err := json.Unmarshal(got, &index); err != nil {
		return nil, fmt.Errorf("read snapshot index: %w", err)
	}
	return index, nil
}

func writeIndex(tx *bbolt.Tx, index map[string]Metadata) error {
	data, err := json.Marshal(index)
	if err != nil {
		return err
	}
	return tx.Bucket(params.MetaBucket).Put(params.MetaIndexKey, data)
}

// CreateSnapshot saves a deep copy of models under meta.Name.
// Names are never overwritten. A zero CreatedAt is set to now.
func (s *Store) CreateSnapshot(meta Metadata, models calibration.Models) (Metadata, error) {
	if meta.Name == "" {
		return meta, errors.New("snapshot name is required")
	}
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now().UTC()
	}
	meta = meta.clone()
	if models == nil {
		models = calibration.Models{}
	}
	data, err := json.Marshal(models)
	if err != nil {
		return meta, err
	}
	err = s.db.Update(func(tx *bbolt.Tx) error {
		bodies := tx.Bucket(params.SnapshotsBucket)
		if bodies.Get([]byte(meta.Name)) != nil {
			return fmt.Errorf("%w: %q", ErrSnapshotExists, meta.Name)
		}
		index, err := readIndex(tx)
		if err != nil {
			return err
		}
		if err := bodies.Put([]byte(meta.Name), data); err != nil {
			return err
		}
		index[meta.Name] = meta
		return writeIndex(tx, index)
	})
	if err != nil {
		return meta, err
	}
	s.logger.Info("Saved snapshot", "name", meta.Name, "accuracy", meta.AccuracyPercent(),
		"modes", models.Modes())
	events.SnapshotFeed.Send(events.SnapshotEvent{Name: meta.Name})
	return meta, nil
}

// ListSnapshots returns every snapshot's metadata, most accurate first, then by name.
func (s *Store) ListSnapshots() ([]Metadata, error) {
	var out []Metadata
	err := s.db.View(func(tx *bbolt.Tx) error {
		index, err := readIndex(tx)
		if err != nil {
			return err
		}
		out = make([]Metadata, 0, len(index))
		for _, meta := range index {
			out = append(out, meta)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortMetadata(out)
	return out, nil
}

// LoadSnapshot returns a copy of the named snapshot.
func (s *Store) LoadSnapshot(name string) (*Snapshot, error) {
	if s.snaps != nil {
		if item := s.snaps.Get(name); item != nil {
			return item.Value().Clone(), nil
		}
	}
	snap := &Snapshot{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		got := tx.Bucket(params.SnapshotsBucket).Get([]byte(name))
		if got == nil {
			return fmt.Errorf("%w: %q", ErrSnapshotNotFound, name)
		}
		if err := json.Unmarshal(got, &snap.Models); err != nil {
			return fmt.Errorf("decode snapshot %q: %w", name, err)
		}
		index, err := readIndex(tx)
		if err != nil {
			return err
		}
		meta, ok := index[name]
		if !ok {
			// Bodies written before their index entry was lost still load.
			meta = Metadata{Name: name}
		}
		snap.Metadata = meta
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.snaps != nil {
		s.snaps.Set(name, snap.Clone(), ttlcache.DefaultTTL)
	}
	return snap, nil
}

// DeleteSnapshot removes the body and the index entry.
func (s *Store) DeleteSnapshot(name string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bodies := tx.Bucket(params.SnapshotsBucket)
		index, err := readIndex(tx)
		if err != nil {
			return err
		}
		_, indexed := index[name]
		if bodies.Get([]byte(name)) == nil && !indexed {
			return fmt.Errorf("%w: %q", ErrSnapshotNotFound, name)
		}
		if err := bodies.Delete([]byte(name)); err != nil {
			return err
		}
		delete(index, name)
		return writeIndex(tx, index)
	})
	if err != nil {
		return err
	}
	if s.snaps != nil {
		s.snaps.Delete(name)
	}
	s.logger.Info("Deleted snapshot", "name", name)
	events.SnapshotFeed.Send(events.SnapshotEvent{Name: name, Deleted: true})
	return nil
}

// ApplySnapshot makes the named snapshot's models the working models.
func (s *Store) ApplySnapshot(name string) (*Snapshot, error) {
	snap, err := s.LoadSnapshot(name)
	if err != nil {
		return nil, err
	}
	return snap, s.Apply(snap.Models)
}

// Export renders the named snapshot as an indented JSON document of metadata and models.
func (s *Store) Export(name string) ([]byte, error) {
	snap, err := s.LoadSnapshot(name)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(snap, "", "  ")
}

// Import saves an exported snapshot. A non-empty rename replaces its name.
func (s *Store) Import(data []byte, rename string) (Metadata, error) {
	snap, err := ParseExport(data)
	if err != nil {
		return Metadata{}, err
	}
	if rename != "" {
		snap.Metadata.Name = rename
	}
	return s.CreateSnapshot(snap.Metadata, snap.Models)
}
