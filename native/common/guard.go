package common

import (
	"errors"
	"sync"
)

// ErrFlowPaused is returned when a guarded venue flow has been switched off.
var ErrFlowPaused = errors.New("flow paused")

// PauseView reports whether a named flow (e.g. "lending.borrow") is paused.
type PauseView interface {
	IsPaused(flow string) bool
}

// Guard rejects the call when the flow is paused. A nil view or empty flow
// name leaves the call unguarded.
func Guard(p PauseView, flow string) error {
	if p == nil || flow == "" {
		return nil
	}
	if p.IsPaused(flow) {
		return ErrFlowPaused
	}
	return nil
}

// Pauses is a concurrency-safe PauseView with runtime switches, used by
// operators to halt individual flows during incidents.
type Pauses struct {
	mu    sync.RWMutex
	flows map[string]bool
}

func NewPauses() *Pauses {
	return &Pauses{flows: make(map[string]bool)}
}

// Set switches a single flow on or off.
func (p *Pauses) Set(flow string, paused bool) {
	if p == nil || flow == "" {
		return
	}
	p.mu.Lock()
	p.flows[flow] = paused
	p.mu.Unlock()
}

func (p *Pauses) IsPaused(flow string) bool {
	if p == nil {
		return false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.flows[flow]
}
