package llm

import (
	"context"
	"fmt"
)

// MockClient is a canned implementation of Client for local development
// and tests that do not need a live backend.
type MockClient struct{}

// NewMockClient creates a new mock generation client.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// Ensure MockClient implements Client interface.
var _ Client = (*MockClient)(nil)

// Generate returns a deterministic canned completion derived from the prompt.
func (m *MockClient) Generate(ctx context.Context, prompt string) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}
	excerpt := prompt
	if len(excerpt) > 60 {
		excerpt = excerpt[:60]
	}
	return fmt.Sprintf("[mock completion for: %s]", excerpt), nil
}
