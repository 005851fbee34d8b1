package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dgallion1/pedigest/internal/config"
	"github.com/dgallion1/pedigest/internal/embed"
	"github.com/dgallion1/pedigest/internal/store"
)

// openStore opens the configured backend with full search support.
func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendSupabase:
		return store.NewSupabase(cfg.SupabaseURL, cfg.SupabaseKey, cfg.TextbookTable, cfg.ResourceTable), nil
	case config.BackendPostgres:
		return store.NewPostgres(ctx, cfg.PostgresDSN, cfg.TextbookTable, cfg.ResourceTable)
	case config.BackendSQLite:
		return store.NewSQLite(ctx, cfg.SQLitePath)
	case config.BackendMemory:
		return store.NewMemory(), nil
	case config.BackendJSONL:
		return nil, fmt.Errorf("the jsonl backend is write-only; use it with the upload command or pick a searchable backend")
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// openSink opens the configured backend for inserts only. Unlike
// openStore this accepts the jsonl backend.
func openSink(ctx context.Context, cfg config.Config) (store.Sink, error) {
	if cfg.StoreBackend == config.BackendJSONL {
		return store.NewJSONL(cfg.OutputPath)
	}
	return openStore(ctx, cfg)
}

// newEmbedder builds the embedding client from configuration. The real
// client degrades to zero vectors on outage instead of failing a run.
func newEmbedder(cfg config.Config, log *slog.Logger) embed.Embedder {
	if cfg.MockEmbeddings {
		log.Warn("using mock embeddings; vectors are random")
		return embed.NewMockEmbedder(cfg.EmbeddingDims, 1)
	}
	openai := embed.NewOpenAIEmbedder(cfg.OpenAIAPIKey, cfg.EmbeddingModel, cfg.OpenAIBaseURL, cfg.EmbeddingDims)
	return embed.NewFallback(openai, log)
}
