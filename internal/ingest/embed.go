package ingest

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/kittclouds/memoryd/internal/embed"
)

// EmbeddedChunk pairs a parsed Chunk with its computed embedding.
type EmbeddedChunk struct {
	Chunk
	Embedding []float32
}

// EmbedChunks computes embeddings for every chunk concurrently. The
// Embedder itself serializes the actual model calls (FIFO ticket channel),
// so this buys nothing from raw compute parallelism, but it does let
// ingestion fan out its chunk set as independent sub-queries the way the
// concurrency model describes, instead of a hand-rolled sequential loop.
func EmbedChunks(ctx context.Context, embedder *embed.Embedder, chunks []Chunk) ([]EmbeddedChunk, error) {
	out := make([]EmbeddedChunk, len(chunks))
	g, gctx := errgroup.WithContext(ctx)

	for i, c := range chunks {
		i, c := i, c
		g.Go(func() error {
			out[i] = EmbeddedChunk{Chunk: c, Embedding: embedder.Embed(gctx, c.Text)}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
