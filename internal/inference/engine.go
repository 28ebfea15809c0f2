// Package inference derives candidate relationships for an entity: textual
// co-occurrence, vector proximity, transitive relationship joins, typed
// expertise inference, user-supplied Datalog rules, HNSW cluster analysis,
// and a gated semantic graph walk.
package inference

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kittclouds/memoryd/internal/store"
)

// Engine bundles every inference strategy over a shared Store + ANN index.
type Engine struct {
	store  *store.SQLiteStore
	ann    *store.ANNIndexSet
	logger *zap.Logger
}

// New builds an Engine. logger defaults to a no-op logger when nil.
func New(st *store.SQLiteStore, ann *store.ANNIndexSet, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{store: st, ann: ann, logger: logger}
}

// InferAll runs every built-in strategy plus any stored custom rules for
// entityID and concatenates their results. Every row satisfies
// from_id != to_id by construction.
func (e *Engine) InferAll(ctx context.Context, entityID string) ([]store.InferredRelation, error) {
	asOf := time.Now().UnixMicro()

	entity, err := e.store.GetEntityLive(entityID, asOf)
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, nil
	}

	var out []store.InferredRelation
	out = append(out, e.coOccurrence(entity, asOf)...)
	out = append(out, e.vectorProximity(entity, asOf)...)
	out = append(out, e.transitive(entity, asOf)...)
	out = append(out, e.transitiveExpertise(entity, asOf)...)

	rules, err := e.store.ListInferenceRules()
	if err == nil {
		for _, rule := range rules {
			rows, err := e.runCustomRule(ctx, rule, entity.ID)
			if err != nil {
				e.logger.Warn("custom inference rule failed", zap.String("rule", rule.Name), zap.Error(err))
				continue
			}
			out = append(out, rows...)
		}
	}

	return out, nil
}
