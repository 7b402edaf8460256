package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"codescope/internal/chunker"
	"codescope/internal/chunker/languages"
	"codescope/internal/config"
	"codescope/internal/event"
	"codescope/internal/index"
	"codescope/internal/limiter"
	"codescope/internal/memory"
	"codescope/internal/ops"
	"codescope/internal/provider"
	"codescope/internal/provider/memvec"
	"codescope/internal/provider/ollama"
	"codescope/internal/provider/openai"
	"codescope/internal/provider/sqlitedb"
	"codescope/internal/provider/sqlitevec"
	"codescope/internal/provider/static"
	"codescope/internal/search"

	"github.com/joho/godotenv"
)

// defaultConfig is used when no config file is present.
const defaultConfig = `settings:
  database_path: .codescope/index.db
`

// app holds the wired components shared by the subcommands.
type app struct {
	cfg      *config.Settings
	registry *provider.Registry
	embedder provider.Embedder
	store    provider.VectorStore
	catalog  *index.Catalog
	tracker  *ops.Tracker
	engine   *search.Engine
	limits   *limiter.Limiter
	bus      *event.Bus
	indexer  *index.Indexer
}

func newApp() (*app, error) {
	// .env only feeds flag defaults and provider keys; the settings record
	// itself comes from the config file.
	_ = godotenv.Load()

	cfg, err := loadSettings()
	if err != nil {
		return nil, err
	}
	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	registry := buildRegistry(cfg)
	emb, err := registry.Embedder(cfg.EmbeddingProvider)
	if err != nil {
		return nil, err
	}
	store, err := registry.VectorStore(cfg.VectorProvider)
	if err != nil {
		return nil, err
	}
	catalog, err := index.OpenCatalog(catalogPath(cfg))
	if err != nil {
		store.Close()
		return nil, err
	}

	tracker := ops.NewTracker(ops.DefaultRetention)
	bus := event.NewBus()
	engine := search.NewEngine(emb, store, search.Options{
		SemanticWeight: cfg.SemanticWeight,
		BM25Weight:     cfg.BM25Weight,
		MaxCandidates:  cfg.MaxCandidates,
		Timeout:        cfg.SearchTimeout,
	})
	engine.SubscribeMaintenance(bus)

	limits := limiter.New(map[string]int{
		"search": cfg.SearchPermits,
		"index":  cfg.IndexPermits,
		"embed":  cfg.EmbedPermits,
	})

	reg := chunker.NewRegistry()
	languages.RegisterAll(reg)

	idx, err := index.New(index.Deps{
		Embedder: emb,
		Store:    store,
		Registry: reg,
		Catalog:  catalog,
		Tracker:  tracker,
		Engine:   engine,
		Limiter:  limits,
	}, index.Options{
		Workers:         cfg.Workers,
		EmbedBatchSize:  cfg.EmbedBatchSize,
		InsertBatchSize: cfg.InsertBatchSize,
		MaxFileSize:     cfg.MaxFileSize,
		ExcludePatterns: cfg.ExcludePatterns,
		MaxRetries:      cfg.MaxRetries,
		RetryDelay:      cfg.RetryDelay,
	})
	if err != nil {
		catalog.Close()
		store.Close()
		return nil, err
	}

	return &app{
		cfg:      cfg,
		registry: registry,
		embedder: emb,
		store:    store,
		catalog:  catalog,
		tracker:  tracker,
		engine:   engine,
		limits:   limits,
		bus:      bus,
		indexer:  idx,
	}, nil
}

func (a *app) Close() {
	a.bus.Close()
	a.catalog.Close()
	a.store.Close()
}

// openDatabase opens the shared relational database next to the vector
// database. The memory and project stores both run on it.
func (a *app) openDatabase() (provider.Database, error) {
	return a.registry.Database("sqlite")
}

// openMemory builds the observation store on the given database handle.
func (a *app) openMemory(ctx context.Context, db provider.Database) (*memory.Store, error) {
	return memory.New(ctx, db, memory.Deps{
		Embedder: a.embedder,
		Vectors:  a.store,
		Engine:   a.engine,
	})
}

// restoreSparse reloads the BM25 indexes for every known collection after a
// process restart.
func (a *app) restoreSparse(ctx context.Context) error {
	collections, err := a.catalog.Collections(ctx)
	if err != nil {
		return err
	}
	for _, c := range collections {
		if err := a.indexer.RebuildSparse(ctx, c); err != nil {
			return fmt.Errorf("rebuild sparse index for %s: %w", c, err)
		}
	}
	return nil
}

func catalogPath(cfg *config.Settings) string {
	return filepath.Join(filepath.Dir(cfg.DatabasePath), "catalog.db")
}

func loadSettings() (*config.Settings, error) {
	if _, err := os.Stat(flagConfig); err != nil {
		if os.IsNotExist(err) && !rootCmd.PersistentFlags().Changed("config") {
			return config.Parse([]byte(defaultConfig))
		}
		return nil, fmt.Errorf("config file %s: %w", flagConfig, err)
	}
	return config.Load(flagConfig)
}

func buildRegistry(cfg *config.Settings) *provider.Registry {
	reg := provider.NewRegistry()
	reg.RegisterEmbedder("ollama", func() (provider.Embedder, error) {
		return ollama.New(cfg.OllamaURL, cfg.EmbeddingModel, cfg.Dimensions, cfg.RequestTimeout), nil
	})
	reg.RegisterEmbedder("openai", func() (provider.Embedder, error) {
		return openai.New(cfg.OpenAIKey, cfg.EmbeddingModel, cfg.Dimensions)
	})
	reg.RegisterEmbedder("static", func() (provider.Embedder, error) {
		return static.New(cfg.Dimensions), nil
	})
	reg.RegisterVectorStore("sqlite-vec", func() (provider.VectorStore, error) {
		return sqlitevec.Open(cfg.DatabasePath)
	})
	reg.RegisterVectorStore("memory", func() (provider.VectorStore, error) {
		return memvec.New(), nil
	})
	reg.RegisterDatabase("sqlite", func() (provider.Database, error) {
		return sqlitedb.Open(filepath.Join(filepath.Dir(cfg.DatabasePath), "app.db"))
	})
	return reg
}
