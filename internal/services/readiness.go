package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/markdave123-py/newsdesk/internal/core"
	"github.com/markdave123-py/newsdesk/internal/metrics"
)

// State is the lifecycle of the query pipeline.
type State int32

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Readiness gates queries. It moves Uninitialized -> Initializing -> Ready or
// Failed exactly once; there is no way back.
type Readiness struct {
	mu      sync.RWMutex
	state   State
	err     error
	metrics *metrics.Metrics
}

func NewReadiness(m *metrics.Metrics) *Readiness {
	return &Readiness{metrics: m}
}

func (r *Readiness) transition(from, to State, err error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != from {
		return fmt.Errorf("readiness: cannot move to %s from %s", to, r.state)
	}
	r.state = to
	r.err = err
	r.metrics.SetReady(to == StateReady)
	return nil
}

func (r *Readiness) Begin() error {
	return r.transition(StateUninitialized, StateInitializing, nil)
}

func (r *Readiness) MarkReady() error {
	return r.transition(StateInitializing, StateReady, nil)
}

func (r *Readiness) MarkFailed(err error) error {
	return r.transition(StateInitializing, StateFailed, err)
}

// Run drives the whole lifecycle around init.
func (r *Readiness) Run(ctx context.Context, init func(context.Context) error) error {
	if err := r.Begin(); err != nil {
		return err
	}
	if err := init(ctx); err != nil {
		_ = r.MarkFailed(err)
		return err
	}
	return r.MarkReady()
}

func (r *Readiness) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Err is the initialization failure, if any.
func (r *Readiness) Err() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.err
}

func (r *Readiness) Ready() bool {
	return r.State() == StateReady
}

// Check returns a not-ready error unless the pipeline is ready.
func (r *Readiness) Check() error {
	if s := r.State(); s != StateReady {
		return core.NewNotReadyError(s.String())
	}
	return nil
}
