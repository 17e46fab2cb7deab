// Package llm provides an abstraction for the text-generation backend.
package llm

import "context"

// Client defines the interface for text-generation operations.
type Client interface {
	// Generate sends a prompt to the backend and returns the completion text.
	Generate(ctx context.Context, prompt string) (string, error)
}

// Ensure HTTPClient implements Client interface.
var _ Client = (*HTTPClient)(nil)
