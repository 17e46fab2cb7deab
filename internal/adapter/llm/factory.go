package llm

import (
	"log"
	"os"
	"time"
)

const (
	// EnvPipeflowMode is the environment variable name for mode selection.
	EnvPipeflowMode = "PIPEFLOW_MODE"
	// ModeMock indicates mock mode should be used.
	ModeMock = "MOCK"
)

// NewLLMClient creates a generation client based on the PIPEFLOW_MODE
// environment variable. If PIPEFLOW_MODE=MOCK, returns a MockClient;
// otherwise returns a real HTTPClient.
func NewLLMClient(baseURL, model string, timeout time.Duration) Client {
	if os.Getenv(EnvPipeflowMode) == ModeMock {
		log.Println("PIPEFLOW_MODE=MOCK detected, using mock generation client")
		return NewMockClient()
	}
	return NewClient(baseURL, model, timeout)
}
