package agent

import (
	"context"
	"fmt"

	"github.com/xqin1/pipeflow/internal/adapter/llm"
)

// Built-in agent identifiers.
const (
	IDResearch   = "Research"
	IDSummarizer = "Summarizer"
	IDInsight    = "Insight"
	IDDevil      = "Devil"
)

// researchAgent gathers findings on the topic. A manual trigger may supply
// an explicit query; otherwise one is derived from the topic.
type researchAgent struct {
	client llm.Client
}

func (a *researchAgent) ID() string { return IDResearch }

func (a *researchAgent) Invoke(ctx context.Context, in Input) (string, error) {
	query := in.Query
	if query == "" {
		query = fmt.Sprintf("latest developments in %s", in.Topic)
	}
	prompt := fmt.Sprintf(
		"You are a research assistant. Topic: %s. Research the following and report your findings: %s",
		in.Topic, query)
	return a.client.Generate(ctx, prompt)
}

// summarizerAgent condenses the previous stage's output.
type summarizerAgent struct {
	client llm.Client
}

func (a *summarizerAgent) ID() string { return IDSummarizer }

func (a *summarizerAgent) Invoke(ctx context.Context, in Input) (string, error) {
	prompt := fmt.Sprintf("Summarize the key points on the topic: %s", in.Topic)
	if in.PriorOutput != "" {
		prompt = fmt.Sprintf(
			"Summarize the key points on the topic %s. Content to summarize: %s",
			in.Topic, in.PriorOutput)
	}
	return a.client.Generate(ctx, prompt)
}

// insightAgent derives higher-level insights from the previous analysis.
type insightAgent struct {
	client llm.Client
}

func (a *insightAgent) ID() string { return IDInsight }

func (a *insightAgent) Invoke(ctx context.Context, in Input) (string, error) {
	prompt := fmt.Sprintf("Identify the most important insights on the topic: %s", in.Topic)
	if in.PriorOutput != "" {
		prompt = fmt.Sprintf(
			"Identify the most important insights. %s. Previous analysis: %s",
			in.Topic, in.PriorOutput)
	}
	return a.client.Generate(ctx, prompt)
}

// devilAgent argues the contrarian position on the topic.
type devilAgent struct {
	client llm.Client
}

func (a *devilAgent) ID() string { return IDDevil }

func (a *devilAgent) Invoke(ctx context.Context, in Input) (string, error) {
	prompt := fmt.Sprintf(
		"Play devil's advocate: present the strongest counterarguments on the topic: %s",
		in.Topic)
	return a.client.Generate(ctx, prompt)
}
