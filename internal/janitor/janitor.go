// Package janitor implements memoryd's aging/consolidation sweep: find
// stale, low-degree observations, summarize them with an LLM (or a
// concatenation fallback), and replace them with a provenance-linked
// ExecutiveSummary entity.
package janitor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kittclouds/memoryd/internal/idgen"
	"github.com/kittclouds/memoryd/internal/store"
)

// SummarizeFunc requests an executive summary of a fragment listing from an
// LLM. janitor falls back to concatenation on error, timeout, or an empty
// result. A literal "DELETE" response creates no summary entity; the source
// observations are still removed.
type SummarizeFunc func(ctx context.Context, prompt string) (string, error)

const (
	candidateOversample = 5
	llmTimeout          = 120 * time.Second
)

// Request configures one janitor sweep.
type Request struct {
	OlderThanDays   int
	MaxObservations int
	MinEntityDegree int
	Confirm         bool
}

// EntityOutcome reports what happened to one entity group in a confirmed run.
type EntityOutcome struct {
	EntityID          string
	ObservationCount  int
	SummaryEntityID   string
	SummaryCreated    bool
	Level             int
}

// Result is janitor's return shape for both dry-run and confirm modes.
type Result struct {
	DryRun          bool
	CandidateGroups map[string][]string
	CacheEntriesGC  int64
	Outcomes        []EntityOutcome
}

// Janitor runs the sweep over a shared Store.
type Janitor struct {
	store     *store.SQLiteStore
	summarize SummarizeFunc
	logger    *zap.Logger

	mu          sync.RWMutex
	degreeCache map[string]int
}

// New builds a Janitor. summarize may be nil, in which case every group
// falls back to concatenation. logger defaults to a no-op logger.
func New(st *store.SQLiteStore, summarize SummarizeFunc, logger *zap.Logger) *Janitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Janitor{store: st, summarize: summarize, logger: logger, degreeCache: make(map[string]int)}
}

// Run executes spec.md §4.6's algorithm end to end.
func (j *Janitor) Run(ctx context.Context, req Request) (*Result, error) {
	now := time.Now()
	asOf := now.UnixMicro()
	cutoffMicros := now.AddDate(0, 0, -req.OlderThanDays).UnixMicro()

	oversampled := req.MaxObservations * candidateOversample
	candidates, err := j.store.ListObservationsOlderThan(cutoffMicros, asOf, oversampled)
	if err != nil {
		return nil, err
	}

	kept := make([]*store.Observation, 0, req.MaxObservations)
	for _, obs := range candidates {
		degree, err := j.entityDegree(obs.EntityID, asOf)
		if err != nil {
			continue
		}
		if degree < req.MinEntityDegree {
			kept = append(kept, obs)
		}
		if len(kept) >= req.MaxObservations {
			break
		}
	}

	groups := make(map[string][]string)
	var order []string
	for _, obs := range kept {
		if _, ok := groups[obs.EntityID]; !ok {
			order = append(order, obs.EntityID)
		}
		groups[obs.EntityID] = append(groups[obs.EntityID], obs.ID)
	}

	cacheCutoffSeconds := now.Unix() - int64(req.OlderThanDays)*86400
	gcCount, err := j.store.DeleteSearchCacheOlderThan(cacheCutoffSeconds)
	if err != nil {
		j.logger.Warn("search cache GC failed", zap.Error(err))
	}

	if !req.Confirm {
		return &Result{DryRun: true, CandidateGroups: groups, CacheEntriesGC: gcCount}, nil
	}

	anchorID, err := j.createSummaryAnchor(asOf)
	if err != nil {
		return nil, err
	}

	var outcomes []EntityOutcome
	for _, entityID := range order {
		outcome, err := j.consolidateEntity(ctx, anchorID, entityID, groups[entityID], asOf)
		if err != nil {
			j.logger.Warn("janitor consolidation failed", zap.String("entity", entityID), zap.Error(err))
			continue
		}
		outcomes = append(outcomes, outcome)
	}

	return &Result{DryRun: false, CandidateGroups: groups, CacheEntriesGC: gcCount, Outcomes: outcomes}, nil
}

func (j *Janitor) entityDegree(entityID string, asOf int64) (int, error) {
	j.mu.RLock()
	if d, ok := j.degreeCache[entityID]; ok {
		j.mu.RUnlock()
		return d, nil
	}
	j.mu.RUnlock()

	rels, err := j.store.ListRelationshipsForEntityLive(entityID, asOf)
	if err != nil {
		return 0, err
	}
	degree := len(rels)

	j.mu.Lock()
	j.degreeCache[entityID] = degree
	j.mu.Unlock()
	return degree, nil
}

func (j *Janitor) createSummaryAnchor(asOf int64) (string, error) {
	id := idgen.NewWithPrefix("summary-anchor")
	err := j.store.PutEntity(&store.Entity{
		ID: id, Name: "Janitor run " + time.Now().UTC().Format(time.RFC3339),
		Type: "Note", Metadata: store.Metadata{"kind": "janitor_anchor"},
		Validity: store.NowMicros(asOf), CreatedAt: asOf, UpdatedAt: asOf,
	})
	return id, err
}

func (j *Janitor) consolidateEntity(ctx context.Context, anchorID, entityID string, observationIDs []string, asOf int64) (EntityOutcome, error) {
	outcome := EntityOutcome{EntityID: entityID, ObservationCount: len(observationIDs)}

	entity, err := j.store.GetEntityLive(entityID, asOf)
	if err != nil {
		return outcome, err
	}
	if entity == nil {
		return outcome, fmt.Errorf("entity %s no longer live", entityID)
	}

	level := 1 + priorJanitorLevel(entity.Metadata)

	fragments := make([]string, 0, len(observationIDs))
	for _, id := range observationIDs {
		obs, err := j.store.GetObservationLive(id, asOf)
		if err != nil || obs == nil {
			continue
		}
		fragments = append(fragments, obs.Text)
	}

	summary := j.summarizeFragments(ctx, entity.Name, fragments)

	if summary != "" && summary != "DELETE" {
		summaryID := idgen.NewWithPrefix("exec-summary")
		if err := j.store.PutEntity(&store.Entity{
			ID: summaryID, Name: "Summary of " + entity.Name, Type: "Note",
			Metadata: store.Metadata{"janitor": map[string]interface{}{"level": level}},
			Validity: store.NowMicros(asOf), CreatedAt: asOf, UpdatedAt: asOf,
		}); err != nil {
			return outcome, err
		}
		if err := j.store.PutObservation(&store.Observation{
			ID: idgen.NewWithPrefix("exec-summary-obs"), EntityID: summaryID, Text: summary,
			Validity: store.NowMicros(asOf), CreatedAt: asOf, UpdatedAt: asOf,
		}); err != nil {
			return outcome, err
		}
		if err := j.store.PutRelationship(&store.Relationship{
			FromID: summaryID, ToID: entityID, RelationType: "summary_of", Strength: 1,
			Validity: store.NowMicros(asOf), CreatedAt: asOf,
		}); err != nil {
			return outcome, err
		}
		if err := j.store.PutRelationship(&store.Relationship{
			FromID: anchorID, ToID: summaryID, RelationType: "generated", Strength: 1,
			Validity: store.NowMicros(asOf), CreatedAt: asOf,
		}); err != nil {
			return outcome, err
		}
		outcome.SummaryEntityID = summaryID
		outcome.SummaryCreated = true
		outcome.Level = level
	}

	for _, id := range observationIDs {
		if err := j.store.HardDeleteObservation(id); err != nil {
			j.logger.Warn("failed to retract source observation", zap.String("observation", id), zap.Error(err))
		}
	}

	if err := j.store.PutRelationship(&store.Relationship{
		FromID: anchorID, ToID: entityID, RelationType: "summarizes", Strength: 1,
		Metadata: store.Metadata{"provenance": "janitor"},
		Validity:  store.NowMicros(asOf), CreatedAt: asOf,
	}); err != nil {
		return outcome, err
	}

	return outcome, nil
}

// Summarize produces an executive summary for an arbitrary fragment list
// outside of a consolidation sweep (manage_system's reflect action).
func (j *Janitor) Summarize(ctx context.Context, label string, fragments []string) string {
	return j.summarizeFragments(ctx, label, fragments)
}

// summarizeFragments requests an executive summary, falling back to plain
// concatenation on nil summarizer, error, timeout, or an empty result.
func (j *Janitor) summarizeFragments(ctx context.Context, entityName string, fragments []string) string {
	if len(fragments) == 0 {
		return ""
	}
	fallback := strings.Join(fragments, " ")

	if j.summarize == nil {
		return fallback
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, llmTimeout)
	defer cancel()

	prompt := buildSummaryPrompt(entityName, fragments)
	summary, err := j.summarize(timeoutCtx, prompt)
	if err != nil || strings.TrimSpace(summary) == "" {
		j.logger.Warn("janitor summarization fell back to concatenation", zap.Error(err))
		return fallback
	}
	return summary
}

func buildSummaryPrompt(entityName string, fragments []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Summarize the following observations about %q into one executive summary.\n", entityName)
	for i, f := range fragments {
		fmt.Fprintf(&b, "%d. %s\n", i+1, f)
	}
	return b.String()
}

func priorJanitorLevel(meta store.Metadata) int {
	janitor, ok := meta["janitor"].(map[string]interface{})
	if !ok {
		return -1
	}
	level, ok := janitor["level"].(float64)
	if !ok {
		return -1
	}
	return int(level)
}
