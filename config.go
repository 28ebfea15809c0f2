package memoryd

import (
	"context"

	"go.uber.org/zap"

	"github.com/kittclouds/memoryd/internal/embed"
	"github.com/kittclouds/memoryd/internal/janitor"
	"github.com/kittclouds/memoryd/internal/llmclient"
)

// Config configures a Memory instance. Only EmbedFunc is strictly required
// — everything else has a workable default (spec.md §1 treats the
// embedding/LLM providers as external collaborators supplied by the
// caller).
type Config struct {
	// EmbedDim is the fixed embedding dimension every index is built
	// against (spec.md §3 names 1024 as typical; any positive dimension
	// works as long as it matches EmbedFunc's output).
	EmbedDim int
	// EmbedFunc calls out to the embedding model. Required.
	EmbedFunc embed.EmbedFunc

	// Summarize requests an executive summary for the janitor. Nil falls
	// back to concatenation for every run.
	Summarize janitor.SummarizeFunc
	// LLM, if set, is wrapped into a janitor.SummarizeFunc automatically
	// when Summarize is nil.
	LLM *llmclient.Config

	// DSN selects the store's backing file; ":memory:" (default) for an
	// ephemeral in-process store.
	DSN string

	Logger *zap.Logger
}

func (c *Config) withDefaults() *Config {
	cfg := *c
	if cfg.EmbedDim <= 0 {
		cfg.EmbedDim = 1024
	}
	if cfg.DSN == "" {
		cfg.DSN = ":memory:"
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Summarize == nil && cfg.LLM != nil {
		client := llmclient.New(*cfg.LLM)
		cfg.Summarize = func(ctx context.Context, prompt string) (string, error) {
			return client.CompleteJSON(ctx, summarizeSystemPrompt, prompt, 0.2, 512)
		}
	}
	return &cfg
}

const summarizeSystemPrompt = `You are an archival assistant. Summarize the given fragments into one concise executive summary. Reply with the summary text only.`
