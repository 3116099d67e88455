package webd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/mux"
	"github.com/rotblauer/catmode/catdb/store"
	"github.com/rotblauer/catmode/classifier"
	"github.com/rotblauer/catmode/params"
	"github.com/rotblauer/catmode/trainer"
	"github.com/rotblauer/catmode/types/mode"
	"github.com/rotblauer/catmode/types/trip"
	"github.com/tidwall/gjson"
)

// maxBodyBytes bounds classify and train request bodies.
const maxBodyBytes = 32 << 20

func pingPong(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("pong"))
}

func (s *WebDaemon) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("Failed to write response", "error", err)
	}
}

func (s *WebDaemon) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	return io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
}

type webDaemonStatus struct {
	StartedAt time.Time      `json:"started_at"`
	Uptime    string         `json:"uptime"`
	Strategy  string         `json:"strategy"`
	Training  bool           `json:"training"`
	Status    trainer.Status `json:"status"`
	WSConns   int            `json:"ws_conns"`
	Features  int            `json:"cached_features"`
}

func (s *WebDaemon) statusReport(w http.ResponseWriter, r *http.Request) {
	st := webDaemonStatus{
		StartedAt: s.started,
		Uptime:    humanize.RelTime(s.started, time.Now(), "", ""),
		Strategy:  s.strategy.String(),
		WSConns:   s.melodyInstance.Len(),
		Features:  s.features.Len(),
	}
	if s.trainer != nil {
		ts := s.trainer.State()
		st.Training, st.Status = ts.Running, ts.Status
	}
	s.writeJSON(w, http.StatusOK, st)
}

// requestStrategy reads the strategy query param, falling back to the daemon's.
func (s *WebDaemon) requestStrategy(r *http.Request) (classifier.Strategy, error) {
	if q := r.URL.Query().Get("strategy"); q != "" {
		return classifier.StrategyFromString(q)
	}
	return s.strategy, nil
}

type classification struct {
	ID      string              `json:"id,omitempty"`
	Label   mode.TransportMode  `json:"label"`
	Mode    mode.TransportMode  `json:"mode"`
	Results []classifier.Result `json:"results"`
	Metrics map[string]float64  `json:"metrics,omitempty"`
	Error   string              `json:"error,omitempty"`
}

// handleClassify classifies every trip in the body against the working models.
// The body may be a FeatureCollection, a Feature, a fixes object, or newline-delimited features.
func (s *WebDaemon) handleClassify(w http.ResponseWriter, r *http.Request) {
	strategy, err := s.requestStrategy(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	body, err := readBody(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	trips, err := trip.Decode(body)
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	models, err := s.store.Working()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	out := make([]classification, 0, len(trips))
	for _, t := range trips {
		c := classification{ID: t.ID, Label: t.Mode, Mode: mode.Unknown, Results: []classifier.Result{}}
		t.Sanitize()
		if err := t.Validate(); err != nil {
			c.Error = err.Error()
			out = append(out, c)
			continue
		}
		metrics, ok := s.features.Metrics(t)
		if !ok {
			out = append(out, c)
			continue
		}
		c.Metrics = metrics.Map()
		c.Results = classifier.Rank(metrics, models, strategy)
		c.Mode = classifier.DetectMetrics(metrics, models, strategy)
		out = append(out, c)
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *WebDaemon) handleGetModels(w http.ResponseWriter, r *http.Request) {
	models, err := s.store.Working()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, models)
}

type snapshotListing struct {
	store.Metadata
	AccuracyPercent string `json:"accuracyPercent"`
}

func (s *WebDaemon) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListSnapshots()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	out := make([]snapshotListing, len(list))
	for i, meta := range list {
		out[i] = snapshotListing{Metadata: meta, AccuracyPercent: meta.AccuracyPercent()}
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *WebDaemon) snapshotError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrSnapshotNotFound) {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	s.writeError(w, http.StatusInternalServerError, err)
}

func (s *WebDaemon) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.store.LoadSnapshot(mux.Vars(r)["name"])
	if err != nil {
		s.snapshotError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

func (s *WebDaemon) handleDeleteSnapshot(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteSnapshot(mux.Vars(r)["name"]); err != nil {
		s.snapshotError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *WebDaemon) handleApplySnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.store.ApplySnapshot(mux.Vars(r)["name"])
	if err != nil {
		s.snapshotError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snap.Metadata)
}

func (s *WebDaemon) requireTrainer(w http.ResponseWriter) bool {
	if s.trainer == nil {
		s.writeError(w, http.StatusServiceUnavailable, errors.New("no training dataset configured"))
		return false
	}
	return true
}

func (s *WebDaemon) handleTrainState(w http.ResponseWriter, r *http.Request) {
	if !s.requireTrainer(w) {
		return
	}
	s.writeJSON(w, http.StatusOK, s.trainer.State())
}

// trainConfig overlays the fields present in a train/start body on the daemon's trainer config.
// The body is optional; unknown fields are ignored.
func (s *WebDaemon) trainConfig(body []byte) (trainer.Config, error) {
	tc := *params.DefaultTrainerConfig()
	if s.Config.Trainer != nil {
		tc = *s.Config.Trainer
	}
	cfg := trainer.Config{TrainerConfig: &tc, Strategy: s.strategy}
	if len(body) == 0 {
		return cfg, nil
	}
	if !gjson.ValidBytes(body) {
		return cfg, errors.New("body is not JSON")
	}
	doc := gjson.ParseBytes(body)
	if v := doc.Get("strategy"); v.Exists() {
		strategy, err := classifier.StrategyFromString(v.String())
		if err != nil {
			return cfg, err
		}
		cfg.Strategy = strategy
	}
	if v := doc.Get("targetAccuracy"); v.Exists() {
		tc.TargetAccuracy = v.Float()
	}
	if v := doc.Get("maxIterations"); v.Exists() {
		tc.MaxIterations = int(v.Int())
	}
	if v := doc.Get("bufferSize"); v.Exists() {
		tc.BufferSize = int(v.Int())
	}
	if v := doc.Get("weightCap"); v.Exists() {
		tc.WeightCap = v.Float()
	}
	if v := doc.Get("learningRate"); v.Exists() {
		tc.LearningRate = v.Float()
	}
	if v := doc.Get("cleanCache"); v.Exists() {
		tc.CleanCache = v.Bool()
	}
	if v := doc.Get("seed"); v.Exists() {
		tc.Seed = v.Int()
	}
	if doc.Get("fromWorking").Bool() {
		models, err := s.store.Working()
		if err != nil {
			return cfg, err
		}
		cfg.InitialModels = models
	}
	return cfg, nil
}

func (s *WebDaemon) handleTrainStart(w http.ResponseWriter, r *http.Request) {
	if !s.requireTrainer(w) {
		return
	}
	body, err := readBody(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	cfg, err := s.trainConfig(body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	// Runs outlive the request.
	err = s.trainer.Start(s.ctx, cfg)
	switch {
	case errors.Is(err, trainer.ErrAlreadyRunning):
		s.writeError(w, http.StatusConflict, err)
		return
	case errors.Is(err, trainer.ErrEmptyDataset):
		s.writeError(w, http.StatusUnprocessableEntity, err)
		return
	case errors.Is(err, context.Canceled):
		// Stopped while the dataset loaded.
		s.writeError(w, http.StatusConflict, err)
		return
	case err != nil:
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, s.trainer.State())
}

// handleTrainStop stops the run and returns its final state.
// With ?save=NAME the final models are saved as a snapshot; with ?apply=true they become the working models.
func (s *WebDaemon) handleTrainStop(w http.ResponseWriter, r *http.Request) {
	if !s.requireTrainer(w) {
		return
	}
	s.trainer.Stop()
	st := s.trainer.State()

	if st.RunID == "" && (r.URL.Query().Has("save") || r.URL.Query().Has("apply")) {
		s.writeError(w, http.StatusConflict, errors.New("nothing has been trained"))
		return
	}
	if name := r.URL.Query().Get("save"); name != "" {
		_, err := s.store.CreateSnapshot(store.Metadata{
			Name:         name,
			Accuracy:     st.Accuracy,
			SampleCounts: st.SampleCounts,
			TotalSamples: st.TotalSamples,
			Iterations:   st.Iteration,
			Strategy:     st.Strategy,
		}, st.Models)
		if errors.Is(err, store.ErrSnapshotExists) {
			s.writeError(w, http.StatusConflict, err)
			return
		} else if err != nil {
			s.writeError(w, http.StatusInternalServerError, err)
			return
		}
	}
	if r.URL.Query().Get("apply") == "true" {
		if err := s.store.Apply(st.Models); err != nil {
			s.writeError(w, http.StatusInternalServerError, fmt.Errorf("apply: %w", err))
			return
		}
	}
	s.writeJSON(w, http.StatusOK, st)
}
