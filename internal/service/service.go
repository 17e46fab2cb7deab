// Package service implements the workflow engine use-cases: workflow
// management, session tracking and pipeline execution.
package service

import (
	"context"
	"sync"

	"github.com/xqin1/pipeflow/internal/agent"
	"github.com/xqin1/pipeflow/internal/config"
	"github.com/xqin1/pipeflow/internal/domain"
	"github.com/xqin1/pipeflow/internal/hub"
	"github.com/xqin1/pipeflow/internal/store"
	"github.com/xqin1/pipeflow/policy"
)

// CapabilityResolver resolves agent identifiers into concrete capabilities.
type CapabilityResolver interface {
	Resolve(sequence []string) ([]agent.Capability, error)
	IDs() []string
}

// Notifier receives terminal sessions for notification delivery.
type Notifier interface {
	Dispatch(ctx context.Context, wf *domain.Workflow, session *domain.Session)
}

// Service wires the store, agent registry, notification dispatcher, event
// hub and admission policy into the engine's use-cases.
type Service struct {
	store        store.Store
	resolver     CapabilityResolver
	notifier     Notifier
	hub          *hub.Hub
	policyEngine *policy.Engine
	config       *config.Config

	// triggerMu guards the check-then-create sequence so that a scheduled
	// and a manual trigger cannot both pass the in-flight check.
	triggerMu sync.Mutex

	// workers tracks running pipeline goroutines for draining on shutdown.
	workers sync.WaitGroup
}

// New creates a new Service.
func New(st store.Store, resolver CapabilityResolver, notifier Notifier, eventHub *hub.Hub, policyEngine *policy.Engine, cfg *config.Config) *Service {
	return &Service{
		store:        st,
		resolver:     resolver,
		notifier:     notifier,
		hub:          eventHub,
		policyEngine: policyEngine,
		config:       cfg,
	}
}

// Drain blocks until all running pipeline workers have finished or the
// context is cancelled.
func (s *Service) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.workers.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) publish(event hub.Event) {
	if s.hub != nil {
		s.hub.Publish(event)
	}
}
