package webd

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/rotblauer/catmode/calibration"
	"github.com/rotblauer/catmode/catdb/store"
	"github.com/rotblauer/catmode/common"
	"github.com/rotblauer/catmode/dataset"
	"github.com/rotblauer/catmode/trainer"
	"github.com/rotblauer/catmode/types/mode"
	"github.com/rotblauer/catmode/types/trip"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 11, 18, 8, 0, 0, 0, time.UTC)

func cruise(id string, m mode.TransportMode, kmh float64) *trip.Trip {
	t := &trip.Trip{ID: id, Mode: m}
	step := kmh * (30.0 / 3600) / common.EarthRadiusKm * 180 / math.Pi
	for i := 0; i < 20; i++ {
		t.Fixes = append(t.Fixes, trip.Fix{
			Time: t0.Add(time.Duration(i) * 30 * time.Second),
			Lat:  45 + float64(i)*step,
			Lon:  -93,
		})
	}
	return t
}

func labeledTrips() dataset.Slice {
	var out dataset.Slice
	for i := 0; i < 4; i++ {
		k := 1 + 0.03*float64(i)
		out = append(out,
			cruise("walk", mode.Walking, 5*k),
			cruise("car", mode.Car, 60*k))
	}
	return out
}

func featureCollection(t *testing.T, trips ...*trip.Trip) []byte {
	fc := geojson.NewFeatureCollection()
	for _, tr := range trips {
		fc.Append(tr.Feature())
	}
	b, err := json.Marshal(fc)
	require.NoError(t, err)
	return b
}

func do(t *testing.T, server *httptest.Server, method, path string, body []byte) (int, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, server.URL+path, bytes.NewReader(body))
	require.NoError(t, err)
	resp, err := server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

func TestWebDaemon_ping(t *testing.T) {
	req := httptest.NewRequest("GET", "http://catmode.local/ping", nil)
	w := httptest.NewRecorder()
	pingPong(w, req)
	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != 200 {
		t.Fatalf("status code not 200")
	}
	if string(body) != "pong" {
		t.Errorf("body is not pong: %s", string(body))
	}
}

func TestWebDaemon_statusReport(t *testing.T) {
	d := newTestWebDaemon(t, nil)
	w := httptest.NewRecorder()
	d.statusReport(w, httptest.NewRequest("GET", "http://catmode.local/status", nil))
	status := webDaemonStatus{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	require.NotEmpty(t, status.Uptime)
	require.Equal(t, "range", status.Strategy)
	require.False(t, status.Training)
}

func TestWebDaemon_classify(t *testing.T) {
	d := newTestWebDaemon(t, nil)
	server := httptest.NewServer(d.NewRouter())
	defer server.Close()

	walk := cruise("w1", mode.Unknown, 5)
	code, body := do(t, server, http.MethodPost, "/classify", featureCollection(t, walk, cruise("c1", mode.Car, 60)))
	require.Equal(t, http.StatusOK, code, string(body))

	var got []classification
	require.NoError(t, json.Unmarshal(body, &got))
	require.Len(t, got, 2)
	require.Equal(t, "w1", got[0].ID)
	require.Equal(t, mode.Unknown, got[0].Label)
	require.Equal(t, mode.Car, got[1].Label)
	require.InDelta(t, 5, got[0].Metrics["avgSpeed"], 0.01)
	require.Len(t, got[0].Results, len(calibration.Defaults()))
	require.Equal(t, 2, d.features.Len())

	// Repeats hit the feature cache.
	code, _ = do(t, server, http.MethodPost, "/classify?strategy=ideal", featureCollection(t, walk))
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, 2, d.features.Len())

	code, _ = do(t, server, http.MethodPost, "/classify?strategy=bogus", featureCollection(t, walk))
	require.Equal(t, http.StatusBadRequest, code)
	code, _ = do(t, server, http.MethodPost, "/classify", []byte("nope"))
	require.Equal(t, http.StatusUnprocessableEntity, code)
}

func TestWebDaemon_noTrainer(t *testing.T) {
	d := newTestWebDaemon(t, nil)
	server := httptest.NewServer(d.NewRouter())
	defer server.Close()
	for _, path := range []string{"/train/start", "/train/stop"} {
		code, _ := do(t, server, http.MethodPost, path, nil)
		require.Equal(t, http.StatusServiceUnavailable, code, path)
	}
	code, _ := do(t, server, http.MethodGet, "/train/state", nil)
	require.Equal(t, http.StatusServiceUnavailable, code)
}

func TestWebDaemon_emptyDataset(t *testing.T) {
	d := newTestWebDaemon(t, dataset.Slice{cruise("x", mode.Unknown, 30)})
	server := httptest.NewServer(d.NewRouter())
	defer server.Close()
	code, _ := do(t, server, http.MethodPost, "/train/start", nil)
	require.Equal(t, http.StatusUnprocessableEntity, code)
}

func TestWebDaemon_train(t *testing.T) {
	d := newTestWebDaemon(t, labeledTrips())
	server := httptest.NewServer(d.NewRouter())
	defer server.Close()

	code, body := do(t, server, http.MethodGet, "/models", nil)
	require.Equal(t, http.StatusOK, code)
	var models calibration.Models
	require.NoError(t, json.Unmarshal(body, &models))
	require.Len(t, models, len(calibration.Defaults()), "a new store serves the defaults")

	code, _ = do(t, server, http.MethodPost, "/train/stop?save=early", nil)
	require.Equal(t, http.StatusConflict, code, "nothing to save before training")

	code, body = do(t, server, http.MethodPost, "/train/start", []byte(`{"maxIterations": 0, "strategy": "range"}`))
	require.Equal(t, http.StatusAccepted, code, string(body))
	var st trainer.State
	require.NoError(t, json.Unmarshal(body, &st))
	require.True(t, st.Running)
	require.NotEmpty(t, st.RunID)

	code, _ = do(t, server, http.MethodPost, "/train/start", nil)
	require.Equal(t, http.StatusConflict, code)

	require.Eventually(t, func() bool {
		return d.trainer.State().Iteration >= 16
	}, 5*time.Second, 5*time.Millisecond)

	code, body = do(t, server, http.MethodPost, "/train/stop?save=first&apply=true", nil)
	require.Equal(t, http.StatusOK, code, string(body))
	require.NoError(t, json.Unmarshal(body, &st))
	require.False(t, st.Running)
	require.Equal(t, trainer.Idle, st.Status)

	code, body = do(t, server, http.MethodGet, "/train/state", nil)
	require.Equal(t, http.StatusOK, code)
	var again trainer.State
	require.NoError(t, json.Unmarshal(body, &again))
	require.Equal(t, st.RunID, again.RunID)

	code, body = do(t, server, http.MethodGet, "/snapshots", nil)
	require.Equal(t, http.StatusOK, code)
	var listing []snapshotListing
	require.NoError(t, json.Unmarshal(body, &listing))
	require.Len(t, listing, 1)
	require.Equal(t, "first", listing[0].Name)
	require.Equal(t, st.Iteration, listing[0].Iterations)
	require.NotEmpty(t, listing[0].AccuracyPercent)

	code, body = do(t, server, http.MethodGet, "/models", nil)
	require.Equal(t, http.StatusOK, code)
	models = nil
	require.NoError(t, json.Unmarshal(body, &models))
	require.Equal(t, []mode.TransportMode{mode.Walking, mode.Car}, models.Modes(), "trained models were applied")

	code, _ = do(t, server, http.MethodPost, "/train/stop?save=first", nil)
	require.Equal(t, http.StatusConflict, code, "snapshot names are never reused")
}

func TestWebDaemon_snapshots(t *testing.T) {
	d := newTestWebDaemon(t, nil)
	server := httptest.NewServer(d.NewRouter())
	defer server.Close()

	code, _ := do(t, server, http.MethodGet, "/snapshots/missing", nil)
	require.Equal(t, http.StatusNotFound, code)
	code, _ = do(t, server, http.MethodPost, "/snapshots/missing/apply", nil)
	require.Equal(t, http.StatusNotFound, code)

	_, err := d.store.CreateSnapshot(store.Metadata{Name: "walkers"}, calibration.Models{mode.Walking: calibration.Default(mode.Walking)})
	require.NoError(t, err)

	code, body := do(t, server, http.MethodGet, "/snapshots/walkers", nil)
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, string(body), `"Walking"`)

	code, _ = do(t, server, http.MethodPost, "/snapshots/walkers/apply", nil)
	require.Equal(t, http.StatusOK, code)
	working, err := d.store.Working()
	require.NoError(t, err)
	require.Len(t, working, 1)

	code, _ = do(t, server, http.MethodDelete, "/snapshots/walkers", nil)
	require.Equal(t, http.StatusNoContent, code)
	code, _ = do(t, server, http.MethodDelete, "/snapshots/walkers", nil)
	require.Equal(t, http.StatusNotFound, code)
}

func TestWebDaemon_token(t *testing.T) {
	t.Setenv("CATMODE_TOKEN", "meow")
	d := newTestWebDaemon(t, nil)
	server := httptest.NewServer(d.NewRouter())
	defer server.Close()

	code, _ := do(t, server, http.MethodDelete, "/snapshots/x", nil)
	require.Equal(t, http.StatusForbidden, code)
	code, _ = do(t, server, http.MethodDelete, "/snapshots/x?api_token=meow", nil)
	require.Equal(t, http.StatusNotFound, code)
	code, _ = do(t, server, http.MethodGet, "/snapshots", nil)
	require.Equal(t, http.StatusOK, code, "reads need no token")
}
