package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rotblauer/catmode/calibration"
	"github.com/rotblauer/catmode/classifier"
	"github.com/rotblauer/catmode/common"
	"github.com/rotblauer/catmode/events"
	"github.com/rotblauer/catmode/params"
	"github.com/rotblauer/catmode/types/mode"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	t.Cleanup(common.SlogResetLevel(10))
	s, err := Open(params.DefaultTestStoreConfig(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func trained() calibration.Models {
	models := calibration.Models{
		mode.Walking: calibration.Default(mode.Walking),
		mode.Car:     calibration.Default(mode.Car),
	}
	models[mode.Car].Confidence = 42
	models[mode.Car].ModeBias = -0.1
	return models
}

func TestWorking(t *testing.T) {
	s := openTestStore(t)

	got, err := s.Working()
	require.NoError(t, err)
	if diff := cmp.Diff(calibration.Defaults(), got); diff != "" {
		t.Fatalf("empty store should yield defaults: %s", diff)
	}

	applied := make(chan calibration.Models, 1)
	sub := events.ModelsAppliedFeed.Subscribe(applied)
	defer sub.Unsubscribe()

	want := trained()
	require.NoError(t, s.Apply(want))
	got, err = s.Working()
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("working round trip: %s", diff)
	}
	select {
	case ev := <-applied:
		require.Len(t, ev, 2)
	case <-time.After(time.Second):
		t.Fatal("no apply event")
	}

	require.NoError(t, s.Clear())
	<-applied
	got, err = s.Working()
	require.NoError(t, err)
	require.Empty(t, got, "cleared models are empty, not defaults")

	require.NoError(t, s.Reset())
	<-applied
	got, err = s.Working()
	require.NoError(t, err)
	require.Len(t, got, len(mode.All))
}

func TestWorking_Corrupt(t *testing.T) {
	s := openTestStore(t)
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(params.WorkingBucket).Put(params.WorkingKey, []byte(`{"car": [`))
	})
	require.NoError(t, err)
	got, err := s.Working()
	require.NoError(t, err)
	if diff := cmp.Diff(calibration.Defaults(), got); diff != "" {
		t.Errorf("corrupt slot should yield defaults: %s", diff)
	}
}

func TestWorking_Persists(t *testing.T) {
	t.Cleanup(common.SlogResetLevel(10))
	config := params.DefaultTestStoreConfig(t.TempDir())
	s, err := Open(config)
	require.NoError(t, err)
	require.NoError(t, s.Apply(trained()))
	require.NoError(t, s.Close())

	s, err = Open(config)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Working()
	require.NoError(t, err)
	require.Equal(t, 42.0, got[mode.Car].Confidence)
}

func TestSnapshots(t *testing.T) {
	s := openTestStore(t)
	created := time.Date(2024, 12, 1, 12, 0, 0, 0, time.UTC)

	for _, meta := range []Metadata{
		{Name: "b", Accuracy: 0.8},
		{Name: "a", Accuracy: 0.8},
		{Name: "best", Accuracy: 0.95, Iterations: 400, Strategy: classifier.Combined,
			SampleCounts: map[mode.TransportMode]int{mode.Car: 3}, TotalSamples: 3},
		{Name: "worst", Accuracy: 0.1},
	} {
		meta.CreatedAt = created
		_, err := s.CreateSnapshot(meta, trained())
		require.NoError(t, err)
	}

	_, err := s.CreateSnapshot(Metadata{Name: "best"}, calibration.Defaults())
	require.ErrorIs(t, err, ErrSnapshotExists)
	_, err = s.CreateSnapshot(Metadata{}, trained())
	require.Error(t, err)

	list, err := s.ListSnapshots()
	require.NoError(t, err)
	names := make([]string, len(list))
	for i, meta := range list {
		names[i] = meta.Name
	}
	require.Equal(t, []string{"best", "a", "b", "worst"}, names)
	require.Equal(t, "95.00", list[0].AccuracyPercent())

	snap, err := s.LoadSnapshot("best")
	require.NoError(t, err)
	require.Equal(t, 400, snap.Metadata.Iterations)
	require.Equal(t, classifier.Combined, snap.Metadata.Strategy)
	require.True(t, created.Equal(snap.Metadata.CreatedAt))
	if diff := cmp.Diff(trained(), snap.Models); diff != "" {
		t.Errorf("snapshot round trip: %s", diff)
	}

	// Snapshots are immutable; loaded copies are the caller's.
	snap.Models[mode.Car].Confidence = -1
	delete(snap.Models, mode.Walking)
	again, err := s.LoadSnapshot("best")
	require.NoError(t, err)
	require.Equal(t, 42.0, again.Models[mode.Car].Confidence)
	require.Len(t, again.Models, 2)

	require.NoError(t, s.DeleteSnapshot("best"))
	_, err = s.LoadSnapshot("best")
	require.ErrorIs(t, err, ErrSnapshotNotFound)
	require.ErrorIs(t, s.DeleteSnapshot("best"), ErrSnapshotNotFound)
	list, err = s.ListSnapshots()
	require.NoError(t, err)
	require.Len(t, list, 3)
}

func TestApplySnapshot(t *testing.T) {
	s := openTestStore(t)
	_, err := s.CreateSnapshot(Metadata{Name: "x"}, trained())
	require.NoError(t, err)
	_, err = s.ApplySnapshot("nope")
	require.ErrorIs(t, err, ErrSnapshotNotFound)
	_, err = s.ApplySnapshot("x")
	require.NoError(t, err)
	got, err := s.Working()
	require.NoError(t, err)
	if diff := cmp.Diff(trained(), got); diff != "" {
		t.Error(diff)
	}
}

func TestExportImport(t *testing.T) {
	s := openTestStore(t)
	meta, err := s.CreateSnapshot(Metadata{Name: "exported", Accuracy: 0.5}, trained())
	require.NoError(t, err)

	data, err := s.Export("exported")
	require.NoError(t, err)
	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Contains(t, doc, "metadata")
	require.Contains(t, doc, "models")

	_, err = s.Import(data, "")
	require.ErrorIs(t, err, ErrSnapshotExists)

	imported, err := s.Import(data, "copy")
	require.NoError(t, err)
	require.Equal(t, "copy", imported.Name)
	require.True(t, meta.CreatedAt.Equal(imported.CreatedAt))

	snap, err := s.LoadSnapshot("copy")
	require.NoError(t, err)
	if diff := cmp.Diff(trained(), snap.Models); diff != "" {
		t.Errorf("import round trip: %s", diff)
	}

	for _, bad := range []string{
		`not json`,
		`{"models": {}}`,
		`{"metadata": {"name": "x"}, "models": []}`,
		`{"metadata": {"name": "x"}, "models": {"hovercraft": {}}}`,
	} {
		_, err := s.Import([]byte(bad), "")
		require.ErrorIs(t, err, ErrInvalidExport, bad)
	}
}

func TestUploadExport_NoBucket(t *testing.T) {
	s := openTestStore(t)
	_, err := s.CreateSnapshot(Metadata{Name: "x"}, trained())
	require.NoError(t, err)
	key, err := s.UploadExport(context.Background(), "x")
	require.NoError(t, err)
	require.Empty(t, key)
	require.Equal(t, "catmode/snapshots/x.json", (&Store{config: &params.StoreConfig{S3Prefix: "catmode/snapshots/"}}).S3Key("x"))
}

func TestNoCache(t *testing.T) {
	t.Cleanup(common.SlogResetLevel(10))
	config := params.DefaultTestStoreConfig(t.TempDir())
	config.SnapshotCacheTTL = 0
	s, err := Open(config)
	require.NoError(t, err)
	defer s.Close()
	_, err = s.CreateSnapshot(Metadata{Name: "x"}, trained())
	require.NoError(t, err)
	snap, err := s.LoadSnapshot("x")
	require.NoError(t, err)
	require.Len(t, snap.Models, 2)
}
