package ingest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kittclouds/memoryd/internal/embed"
)

func TestParseMarkdownSplitsOnBlankLines(t *testing.T) {
	text := "First paragraph.\nStill first.\n\nSecond paragraph.\n\n\nThird."
	chunks := ParseMarkdown(text)
	require.Len(t, chunks, 3)
	require.Equal(t, "First paragraph.\nStill first.", chunks[0].Text)
	require.Equal(t, "Second paragraph.", chunks[1].Text)
	require.Equal(t, "Third.", chunks[2].Text)
}

func TestParseMarkdownSkipsBlankInput(t *testing.T) {
	chunks := ParseMarkdown("\n\n   \n\n")
	require.Empty(t, chunks)
}

func TestParseJSONAcceptsStringArray(t *testing.T) {
	chunks, err := ParseJSON([]byte(`["first", "second", ""]`))
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	require.Equal(t, "first", chunks[0].Text)
}

func TestParseJSONAcceptsTaggedObjects(t *testing.T) {
	chunks, err := ParseJSON([]byte(`[{"text": "hello", "metadata": {"source": "import"}}]`))
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	require.Equal(t, "hello", chunks[0].Text)
	require.Equal(t, "import", chunks[0].Metadata["source"])
}

func TestParseJSONRejectsNonArray(t *testing.T) {
	_, err := ParseJSON([]byte(`{"text": "hello"}`))
	require.Error(t, err)
}

func TestEmbedChunksComputesEveryEmbedding(t *testing.T) {
	embedder := embed.New(func(ctx context.Context, text string) ([]float32, error) {
		return []float32{1, 0, 0}, nil
	}, 3, nil)

	chunks := []Chunk{{Text: "a"}, {Text: "b"}, {Text: "c"}}
	out, err := EmbedChunks(context.Background(), embedder, chunks)
	require.NoError(t, err)
	require.Len(t, out, 3)
	for _, c := range out {
		require.Len(t, c.Embedding, 3)
	}
}
