package main

import (
	"context"
	"database/sql"
	"net"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/tempograph/tempograph/analyzer"
	"github.com/tempograph/tempograph/audio"
	"github.com/tempograph/tempograph/batch"
	"github.com/tempograph/tempograph/cache"
	"github.com/tempograph/tempograph/config"
	"github.com/tempograph/tempograph/database"
	"github.com/tempograph/tempograph/detector"
	analysesHandler "github.com/tempograph/tempograph/handler/analyses"
	analyzeHandler "github.com/tempograph/tempograph/handler/analyze"
	batchHandler "github.com/tempograph/tempograph/handler/batchrun"
	healthHandler "github.com/tempograph/tempograph/handler/health"
	progressHandler "github.com/tempograph/tempograph/handler/progress"
	statsHandler "github.com/tempograph/tempograph/handler/stats"
	"github.com/tempograph/tempograph/logger"
	"github.com/tempograph/tempograph/store"
)

// Route is an http.Handler that knows the mux pattern
// under which it will be registered.
type Route interface {
	http.Handler

	// Pattern reports the path at which this is registered.
	Pattern() string
}

func main() {
	fx.New(
		fx.Provide(NewHTTPServer,
			config.Options,
			database.Options,
			detector.Options,
			batch.Options,

			ProvideLoader,
			ProvideCache,
			ProvideStore,
			ProvideAnalyzer,
			ProvideProcessor,

			logger.Options,
		),
		fx.Invoke(func(*http.Server) {}),
	).Run()
}

// ProvideLoader provides the audio loader.
func ProvideLoader() audio.Loader {
	return audio.NewWAVLoader()
}

// ProvideCache provides the tempo-map cache: disk-backed when a cache dir
// is configured, in-memory otherwise.
func ProvideCache(log *zap.SugaredLogger, cfg config.Config) (cache.Store, error) {
	if cfg.CacheDir == "" {
		return cache.NewMemory(), nil
	}
	return cache.NewDisk(cfg.CacheDir, log)
}

// ProvideStore provides the persistence store: Postgres when a database is
// configured, in-memory otherwise.
func ProvideStore(log *zap.SugaredLogger, db *sql.DB) (store.Store, error) {
	if db == nil {
		return store.NewMemory(), nil
	}
	return store.NewPostgres(db, log)
}

// ProvideAnalyzer provides the single-file orchestrator.
func ProvideAnalyzer(
	log *zap.SugaredLogger,
	registry *detector.Registry,
	loader audio.Loader,
	cacheStore cache.Store,
	persistence store.Store,
) *analyzer.Analyzer {
	return analyzer.New(registry, loader, cacheStore, persistence, log)
}

// ProvideProcessor provides the batch processor.
func ProvideProcessor(
	log *zap.SugaredLogger,
	an *analyzer.Analyzer,
	hub *batch.Hub,
	cfg config.Config,
) *batch.Processor {
	return batch.New(an, cfg.Workers, cfg.FileTimeout, hub, log)
}

func NewHTTPServer(
	lc fx.Lifecycle,
	log *zap.SugaredLogger,
	cfg config.Config,
	db *sql.DB,
	an *analyzer.Analyzer,
	proc *batch.Processor,
	hub *batch.Hub,
	persistence store.Store,
) *http.Server {
	r := mux.NewRouter()

	srv := &http.Server{Addr: cfg.Addr, Handler: r}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			log.Infof("Starting HTTP server at %s", srv.Addr)
			go srv.Serve(ln)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})

	// Define handlers
	routes := []Route{
		healthHandler.NewHealthHandler(log, db),
		analyzeHandler.NewAnalyzeHandler(log, an, cfg),
		batchHandler.NewBatchHandler(log, proc, cfg),
		analysesHandler.NewAnalysesHandler(log, persistence),
		statsHandler.NewStatsHandler(log, persistence),
		progressHandler.NewProgressHandler(log, hub),
	}
	for _, route := range routes {
		r.Handle(route.Pattern(), route)
	}

	return srv
}
