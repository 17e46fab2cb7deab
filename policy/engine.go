// Package policy provides the OPA-based workflow admission policy.
package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/ast"
	"github.com/open-policy-agent/opa/rego"
)

// Engine evaluates workflow definitions against a rego policy before they
// are accepted into the store.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates a new policy engine with the given policy content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.workflow_policy.decision"),
		rego.Module("workflow_policy.rego", policyContent),
		rego.SetRegoVersion(ast.RegoV1),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// Evaluate checks the workflow policy. Input should be a map with keys:
// name, agent_sequence, schedule, trigger.
// Returns: decision (allow, block), error.
func (e *Engine) Evaluate(ctx context.Context, input interface{}) (string, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return "", fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		// The default policy always defines a decision; an empty result
		// means a custom policy dropped the rule.
		return "allow", nil
	}

	if s, ok := results[0].Expressions[0].Value.(string); ok {
		return s, nil
	}
	return "allow", nil
}

// DefaultPolicy is the default workflow admission policy.
const DefaultPolicy = `
package workflow_policy

default decision := "allow"

# Pipelines past this depth are almost certainly misconfigured.
decision := "block" if {
	count(input.agent_sequence) > 8
}

# An every-minute schedule would re-run the full LLM pipeline continuously.
decision := "block" if {
	input.schedule == "* * * * *"
}
`
