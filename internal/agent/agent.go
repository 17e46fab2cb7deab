// Package agent defines the fixed set of agent capabilities that workflow
// stages can reference.
package agent

import "context"

// Input carries the context handed to a stage invocation. PriorOutput is
// the output of the immediately preceding successful stage and is empty for
// the first stage. Query is an optional override supplied by a manual
// trigger; only the research agent consumes it.
type Input struct {
	Topic       string
	PriorOutput string
	Query       string
}

// Capability is a single agent behavior. Implementations transform the
// input into new output text or fail.
type Capability interface {
	ID() string
	Invoke(ctx context.Context, in Input) (string, error)
}
