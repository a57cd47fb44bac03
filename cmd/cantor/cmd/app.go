package cmd

import (
	"context"
	"log/slog"

	"github.com/Aman-CERP/cantor/internal/index"
	"github.com/Aman-CERP/cantor/internal/library"
	"github.com/Aman-CERP/cantor/internal/search"
	"github.com/Aman-CERP/cantor/internal/store"
	"github.com/Aman-CERP/cantor/internal/telemetry"
)

// app is the wired library behind one command.
type app struct {
	db       *store.DB
	writer   *index.Writer
	library  *library.Service
	synonyms *search.SynonymCache
	engine   *search.Engine
	metrics  *telemetry.QueryMetrics
	mstore   *telemetry.SQLiteMetricsStore
}

// openApp opens the database and wires the writer, the library service
// and the search engine from the loaded configuration.
func (o *rootOptions) openApp(ctx context.Context) (*app, error) {
	cfg := o.cfg

	db, err := store.Open(ctx, cfg.Database.Path, store.WithCacheMB(cfg.Database.CacheMB))
	if err != nil {
		return nil, err
	}

	a := &app{db: db, writer: index.NewWriter(db)}

	a.synonyms = search.NewSynonymCache(db,
		search.WithSettingsKey(cfg.Synonyms.SettingsKey),
		search.WithTTL(cfg.Synonyms.CacheTTL))

	a.library = library.NewService(db, a.writer,
		library.WithSynonymKey(cfg.Synonyms.SettingsKey),
		library.WithSynonymsChanged(a.synonyms.Invalidate))

	a.mstore, err = telemetry.NewSQLiteMetricsStore(db.SQL())
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	engineOpts := []search.EngineOption{
		search.WithWeights(cfg.SearchWeights()),
		search.WithSynonymCache(a.synonyms),
	}
	if cfg.Telemetry.Enabled {
		mcfg := telemetry.DefaultQueryMetricsConfig()
		mcfg.FlushInterval = cfg.Telemetry.FlushInterval
		a.metrics = telemetry.NewQueryMetricsWithConfig(a.mstore, mcfg)
		engineOpts = append(engineOpts, search.WithMetrics(a.metrics))
	}

	a.engine, err = search.NewEngine(db, engineOpts...)
	if err != nil {
		a.close(ctx)
		return nil, err
	}
	return a, nil
}

// close flushes telemetry and closes the database.
func (a *app) close(ctx context.Context) {
	if a.metrics != nil {
		if err := a.metrics.Close(ctx); err != nil {
			slog.Warn("telemetry_flush_failed", slog.String("error", err.Error()))
		}
	}
	if err := a.db.Close(); err != nil {
		slog.Warn("database_close_failed", slog.String("error", err.Error()))
	}
}
