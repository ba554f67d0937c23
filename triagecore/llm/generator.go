// Package llm provides the TextGenerator capability used by pipeline stages,
// plus an adapter for OpenAI-compatible chat completion endpoints.
package llm

import "context"

// Request is a single generation request: a fixed system instruction plus the
// user content it applies to.
type Request struct {
	System string
	User   string
}

// Params are the model parameters for a generation request.
type Params struct {
	Model       string
	Temperature float32
	MaxTokens   int
}

// TextGenerator is the interface for text generation providers.
// Implementations return the raw response text or an error; they never parse.
type TextGenerator interface {
	Generate(ctx context.Context, req Request, params Params) (string, error)
}
