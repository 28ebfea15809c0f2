// Package embed adapts an injected embedding function into the
// single-flight, cached vector source every other memoryd component calls
// through. The model itself is out of scope: callers supply an EmbedFunc.
package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// EmbedFunc calls out to whatever embedding model is configured. Pooling
// strategy (mean w/ attention-mask vs. last-valid-token pooling, as
// `Qwen3-Embedding`-family models expect) is the implementation's concern;
// Embedder only requires a finished, unnormalized vector back.
type EmbedFunc func(ctx context.Context, text string) ([]float32, error)

const (
	cacheSize = 1000
	cacheTTL  = time.Hour
	embedTimeout = 30 * time.Second
)

type cachedVector struct {
	vector   []float32
	storedAt time.Time
}

// Embedder serializes calls to the underlying model (GoKitt's own framing:
// the model is single-threaded and CPU-bound) via a size-1 ticket channel,
// and caches results behind an LRU sized for 1000 distinct texts with an
// explicit TTL check layered on top, since golang-lru/v2 itself never
// expires entries.
type Embedder struct {
	fn     EmbedFunc
	ticket chan struct{}
	cache  *lru.Cache[string, cachedVector]
	dim    int
	logger *zap.Logger
}

// New builds an Embedder. dim is the fixed output dimension used for the
// zero-vector fallback; logger defaults to a no-op logger when nil.
func New(fn EmbedFunc, dim int, logger *zap.Logger) *Embedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	cache, err := lru.New[string, cachedVector](cacheSize)
	if err != nil {
		// Only fails for a non-positive size, which cacheSize never is.
		panic(fmt.Sprintf("embed: lru.New: %v", err))
	}
	ticket := make(chan struct{}, 1)
	ticket <- struct{}{}
	return &Embedder{fn: fn, ticket: ticket, cache: cache, dim: dim, logger: logger}
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Embed returns the L2-normalized embedding of text. Empty text and
// embed-function failures both produce the zero vector rather than an
// error, since an empty/degenerate vector is a valid (if uninformative)
// ANN search input and callers would otherwise have to special-case it.
func (e *Embedder) Embed(ctx context.Context, text string) []float32 {
	if text == "" {
		return make([]float32, e.dim)
	}

	key := cacheKey(text)
	if cached, ok := e.cache.Get(key); ok {
		if time.Since(cached.storedAt) < cacheTTL {
			return cached.vector
		}
		e.cache.Remove(key)
	}

	select {
	case <-e.ticket:
	case <-ctx.Done():
		return make([]float32, e.dim)
	}
	defer func() { e.ticket <- struct{}{} }()

	callCtx, cancel := context.WithTimeout(ctx, embedTimeout)
	defer cancel()

	raw, err := e.fn(callCtx, text)
	if err != nil {
		e.logger.Warn("embed call failed, using zero vector", zap.Error(err), zap.Int("textLen", len(text)))
		return make([]float32, e.dim)
	}

	normalized := l2Normalize(raw)
	e.cache.Add(key, cachedVector{vector: normalized, storedAt: time.Now()})
	return normalized
}

// l2Normalize scales v to unit length, returning the zero vector unchanged
// rather than dividing by zero.
func l2Normalize(v []float32) []float32 {
	var sumSq float64
	for _, f := range v {
		sumSq += float64(f) * float64(f)
	}
	if sumSq == 0 {
		return v
	}
	norm := float32(math.Sqrt(sumSq))
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = f / norm
	}
	return out
}
