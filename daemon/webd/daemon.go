package webd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gorilla/mux"
	"github.com/olahol/melody"
	"github.com/rotblauer/catmode/catdb/cache"
	"github.com/rotblauer/catmode/catdb/store"
	"github.com/rotblauer/catmode/classifier"
	"github.com/rotblauer/catmode/dataset"
	"github.com/rotblauer/catmode/params"
	"github.com/rotblauer/catmode/trainer"
)

type WebDaemon struct {
	Config *params.WebDaemonConfig
	logger *slog.Logger

	started  time.Time
	strategy classifier.Strategy

	store    *store.Store
	datasets *trainer.DatasetCache
	trainer  *trainer.Trainer
	features *cache.FeatureCache

	melodyInstance *melody.Melody

	// ctx outlives requests; training runs started over HTTP are bound to it.
	ctx    context.Context
	cancel context.CancelFunc
}

// NewWebDaemon opens the model store under the config's data dir.
// Training requests read labeled trips from source; a nil source disables training.
func NewWebDaemon(config *params.WebDaemonConfig, source dataset.Source) (*WebDaemon, error) {
	if config == nil {
		config = params.DefaultWebDaemonConfig()
	}
	strategy, err := classifier.StrategyFromString(config.Strategy)
	if err != nil {
		return nil, err
	}
	storeConfig := params.DefaultStoreConfig()
	storeConfig.Path = filepath.Join(config.DataDir, params.ModelsDBName)
	st, err := store.Open(storeConfig)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &WebDaemon{
		Config:   config,
		logger:   slog.With("d", "web"),
		started:  time.Now(),
		strategy: strategy,
		store:    st,
		features: cache.NewFeatureCache(params.CacheFeaturesSize),
		ctx:      ctx,
		cancel:   cancel,
	}
	if source != nil {
		s.datasets = trainer.NewDatasetCache(source)
		s.trainer = trainer.New(s.datasets)
	}
	s.initMelody()
	return s, nil
}

// Run serves until ctx is done, then shuts the server down.
func (s *WebDaemon) Run(ctx context.Context) error {
	ln, err := net.Listen(s.Config.Network, s.Config.Address)
	if err != nil {
		return err
	}
	server := &http.Server{
		Handler:           s.NewRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("Server shutdown", "error", err)
		}
	}()
	s.logger.Info("Starting web daemon", "network", s.Config.Network, "address", ln.Addr().String())
	err = server.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Close stops any training run, disconnects websockets and closes the store.
func (s *WebDaemon) Close() error {
	s.cancel()
	if s.trainer != nil {
		s.trainer.Stop()
	}
	if err := s.melodyInstance.Close(); err != nil && !errors.Is(err, melody.ErrClosed) {
		s.logger.Warn("Closing websockets", "error", err)
	}
	if err := s.store.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	return nil
}

func (s *WebDaemon) NewRouter() *mux.Router {
	router := mux.NewRouter().StrictSlash(false)
	router.Use(s.loggingMiddleware)

	apiRoutes := router.NewRoute().Subrouter()
	apiRoutes.Use(permissiveCorsMiddleware)

	// /ping is a simple server healthcheck endpoint
	apiRoutes.Path("/ping").HandlerFunc(pingPong)

	apiRoutes.Path("/train/socket").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = s.melodyInstance.HandleRequest(w, r)
	})

	apiJSONRoutes := apiRoutes.NewRoute().Subrouter()
	apiJSONRoutes.Use(contentTypeMiddlewareFunc("application/json"))

	apiJSONRoutes.Path("/status").HandlerFunc(s.statusReport).Methods(http.MethodGet)
	apiJSONRoutes.Path("/classify").HandlerFunc(s.handleClassify).Methods(http.MethodPost)
	apiJSONRoutes.Path("/models").HandlerFunc(s.handleGetModels).Methods(http.MethodGet)
	apiJSONRoutes.Path("/snapshots").HandlerFunc(s.handleListSnapshots).Methods(http.MethodGet)
	apiJSONRoutes.Path("/snapshots/{name}").HandlerFunc(s.handleGetSnapshot).Methods(http.MethodGet)
	apiJSONRoutes.Path("/train/state").HandlerFunc(s.handleTrainState).Methods(http.MethodGet)

	authenticatedRoutes := apiJSONRoutes.NewRoute().Subrouter()
	authenticatedRoutes.Use(tokenAuthenticationMiddleware)

	authenticatedRoutes.Path("/snapshots/{name}").HandlerFunc(s.handleDeleteSnapshot).Methods(http.MethodDelete)
	authenticatedRoutes.Path("/snapshots/{name}/apply").HandlerFunc(s.handleApplySnapshot).Methods(http.MethodPost)
	authenticatedRoutes.Path("/train/start").HandlerFunc(s.handleTrainStart).Methods(http.MethodPost)
	authenticatedRoutes.Path("/train/stop").HandlerFunc(s.handleTrainStop).Methods(http.MethodPost)

	return router
}
