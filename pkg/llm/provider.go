// Package llm provides abstractions for LLM provider integration.
//
// Example usage:
//
//	provider, err := openai.NewProvider(
//	    os.Getenv("GEMINI_API_KEY"),
//	    openai.WithModel("gemini-1.5-flash"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	reply, err := provider.Complete(ctx, []*types.Message{
//	    types.NewUserMessage("Summarize these results"),
//	})
package llm

import (
	"context"

	"github.com/entrhq/qarunner/pkg/types"
)

// Provider defines the interface for LLM integrations.
//
// Providers handle API communication with LLM services and return simple
// StreamChunk instances. Report generation and bug detection sit on top of
// Complete and never see transport details.
type Provider interface {
	// StreamCompletion sends messages to the LLM and streams back response chunks.
	//
	// The returned channel emits StreamChunk instances:
	// - First chunk typically has Role set (e.g., "assistant")
	// - Subsequent chunks contain Content deltas
	// - Final chunk has Finished=true
	// - Error chunks have Error set
	//
	// The channel is closed when streaming completes or an error occurs.
	// Returns an error only if streaming cannot be initiated. Stream-time
	// errors are sent as StreamChunk instances with Error set.
	StreamCompletion(ctx context.Context, messages []*types.Message) (<-chan *StreamChunk, error)

	// Complete sends messages to the LLM and returns the full response.
	Complete(ctx context.Context, messages []*types.Message) (*types.Message, error)

	// GetModelInfo returns information about the LLM model being used.
	GetModelInfo() *types.ModelInfo

	// GetModel returns the model name being used.
	GetModel() string

	// GetBaseURL returns the base URL being used for API requests.
	GetBaseURL() string
}

// StreamChunk is one piece of a streamed completion.
type StreamChunk struct {
	Role     string
	Content  string
	Finished bool
	Error    error
}

// IsError reports whether the chunk carries a stream error.
func (c *StreamChunk) IsError() bool {
	return c != nil && c.Error != nil
}
