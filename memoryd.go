// Package memoryd is the in-process API root: a temporal knowledge graph
// fused with dense-vector semantic search, lexical full-text search, and
// near-duplicate detection, exposed as mutate/query/analyze/manage command
// groups. Transport (tool-RPC, HTTP, TUI) is explicitly out of scope — this
// is the same in-process role GoKitt's cmd/wasm/main.go plays for its JS
// surface, minus the syscall/js marshaling.
package memoryd

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kittclouds/memoryd/internal/embed"
	"github.com/kittclouds/memoryd/internal/evolution"
	"github.com/kittclouds/memoryd/internal/graphalg"
	"github.com/kittclouds/memoryd/internal/inference"
	"github.com/kittclouds/memoryd/internal/janitor"
	"github.com/kittclouds/memoryd/internal/retriever"
	"github.com/kittclouds/memoryd/internal/store"
)

// Memory is the single exported entrypoint other Go programs embed.
type Memory struct {
	store     *store.SQLiteStore
	ann       *store.ANNIndexSet
	fts       *store.FTSIndexSet
	lsh       *store.LSHIndex
	embedder  *embed.Embedder
	retriever *retriever.Retriever
	inference *inference.Engine
	analytics *graphalg.Analytics
	janitor   *janitor.Janitor
	vocab     evolution.Vocabulary
	logger    *zap.Logger
}

// New wires every component together and seeds the reserved
// global_user_profile entity.
func New(cfg Config) (*Memory, error) {
	full := cfg.withDefaults()
	if full.EmbedFunc == nil {
		return nil, fmt.Errorf("memoryd: Config.EmbedFunc is required")
	}

	st, err := store.NewWithDSN(full.DSN)
	if err != nil {
		return nil, fmt.Errorf("memoryd: open store: %w", err)
	}

	ftsSet, err := store.NewFTSIndexSet()
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("memoryd: build fts indexes: %w", err)
	}

	annSet := store.NewANNIndexSet()
	lshIdx := store.NewLSHIndex()
	embedder := embed.New(full.EmbedFunc, full.EmbedDim, full.Logger)

	m := &Memory{
		store:     st,
		ann:       annSet,
		fts:       ftsSet,
		lsh:       lshIdx,
		embedder:  embedder,
		retriever: retriever.New(st, annSet, ftsSet, embedder, full.Logger),
		inference: inference.New(st, annSet, full.Logger),
		analytics: graphalg.New(st),
		janitor:   janitor.New(st, full.Summarize, full.Logger),
		vocab:     evolution.DefaultVocabulary,
		logger:    full.Logger,
	}

	if err := m.ensureGlobalUserProfile(); err != nil {
		st.Close()
		ftsSet.Close()
		return nil, fmt.Errorf("memoryd: seed global_user_profile: %w", err)
	}

	return m, nil
}

// Close releases the underlying store and index resources.
func (m *Memory) Close() error {
	if err := m.fts.Close(); err != nil {
		m.logger.Warn("fts close failed", zap.Error(err))
	}
	return m.store.Close()
}

func (m *Memory) ensureGlobalUserProfile() error {
	now := time.Now().UnixMicro()
	existing, err := m.store.GetEntityLive(store.GlobalUserProfileID, now)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	e := &store.Entity{
		ID: store.GlobalUserProfileID, Name: "Global User Profile", Type: "Person",
		Metadata:         store.Metadata{"is_global_user": true},
		ContentEmbedding: m.embedder.Embed(context.Background(), "Global User Profile"),
		NameEmbedding:    m.embedder.Embed(context.Background(), "Global User Profile"),
		Validity:         store.NowMicros(now),
		CreatedAt: now, UpdatedAt: now,
	}
	if err := m.store.PutEntity(e); err != nil {
		return err
	}
	m.ann.IndexEntity(e)
	if err := m.fts.IndexEntityName(e.ID, e.Name); err != nil {
		m.logger.Warn("fts index failed for global_user_profile", zap.Error(err))
	}
	return nil
}

func nowMicros() int64 { return time.Now().UnixMicro() }

// clampContext makes sure every long-running op carries a non-nil context:
// the caller's own (and so its cancellation) when given, else
// context.Background().
func clampContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
