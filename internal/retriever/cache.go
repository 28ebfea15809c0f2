package retriever

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"math"
	"sort"
	"time"

	"github.com/kittclouds/memoryd/internal/store"
)

const (
	cacheTTLSeconds        = 3600
	semanticCacheThreshold = 0.95
)

// canonicalOptions produces a stable JSON encoding of a request's options so
// identical requests hash identically regardless of map iteration order.
func canonicalOptions(req Request) []byte {
	type canon struct {
		Limit               int      `json:"limit"`
		IncludeEntities     bool     `json:"includeEntities"`
		IncludeObservations bool     `json:"includeObservations"`
		EntityTypes         []string `json:"entityTypes"`
		TimeRangeHours      int      `json:"timeRangeHours"`
		MaxDepth            int      `json:"maxDepth"`
		StartEntityID       string   `json:"startEntityId"`
	}
	sortedTypes := append([]string(nil), req.EntityTypes...)
	sort.Strings(sortedTypes)
	b, _ := json.Marshal(canon{
		Limit:               req.Limit,
		IncludeEntities:     req.IncludeEntities,
		IncludeObservations: req.IncludeObservations,
		EntityTypes:         sortedTypes,
		TimeRangeHours:      req.TimeRangeHours,
		MaxDepth:            req.MaxDepth,
		StartEntityID:       req.StartEntityID,
	})
	return b
}

func normalizeQuery(q string) string {
	return q // the query is hashed verbatim: no case or whitespace folding is applied here or by any caller
}

func queryHash(query string, options []byte) string {
	h := sha256.New()
	h.Write([]byte(normalizeQuery(query)))
	h.Write(options)
	return hex.EncodeToString(h.Sum(nil))
}

// cacheProbe implements spec.md §4.3.2 step 1: an exact hash hit within TTL
// wins; otherwise a linear cosine scan over the stored search_cache rows
// picks the closest one within TTL, accepted at similarity >= 0.95.
func (r *Retriever) cacheProbe(req Request, queryEmbedding []float32) ([]Result, bool) {
	options := canonicalOptions(req)
	hash := queryHash(req.Query, options)

	now := time.Now().Unix()

	if entry, err := r.store.GetSearchCacheEntry(hash); err == nil && entry != nil {
		if now-entry.CreatedAtSecond < cacheTTLSeconds {
			if results, ok := decodeResults(entry.Results); ok {
				return results, true
			}
		}
	}

	if len(queryEmbedding) == 0 {
		return nil, false
	}

	entries, err := r.store.ListSearchCacheEntries()
	if err != nil {
		return nil, false
	}
	var best *store.SearchCache
	bestSim := -1.0
	for _, e := range entries {
		if len(e.QueryEmbedding) == 0 || now-e.CreatedAtSecond >= cacheTTLSeconds {
			continue
		}
		sim := cosineSimilarity(queryEmbedding, e.QueryEmbedding)
		if sim > bestSim {
			bestSim = sim
			best = e
		}
	}
	if best != nil && bestSim >= semanticCacheThreshold {
		if results, ok := decodeResults(best.Results); ok {
			return results, true
		}
	}
	return nil, false
}

// cacheStore persists this call's results, per step 8. Write failures are
// logged and swallowed: the cache is advisory.
func (r *Retriever) cacheStore(req Request, queryEmbedding []float32, results []Result) {
	options := canonicalOptions(req)
	hash := queryHash(req.Query, options)

	resultsJSON, err := json.Marshal(results)
	if err != nil {
		return
	}
	_ = r.store.PutSearchCacheEntry(&store.SearchCache{
		QueryHash:       hash,
		QueryText:       req.Query,
		Results:         resultsJSON,
		Options:         options,
		QueryEmbedding:  queryEmbedding,
		CreatedAtSecond: time.Now().Unix(),
	})
}

func decodeResults(raw []byte) ([]Result, bool) {
	var results []Result
	if err := json.Unmarshal(raw, &results); err != nil {
		return nil, false
	}
	return results, true
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
