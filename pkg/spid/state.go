package spid

import (
	"fmt"
	"sync"
	"time"
)

// LoginState tracks one authentication attempt from the AuthnRequest being
// issued to the assertion verdict. It is independent of the session store's
// own lifecycle: a flow that reaches Authenticated may still fail session
// creation afterwards.
type LoginState int

const (
	Unauthenticated LoginState = iota
	RequestIssued
	Authenticated
	Failed
)

func (s LoginState) String() string {
	return [...]string{"unauthenticated", "request_issued", "authenticated", "failed"}[s]
}

// flowTTL bounds how long an issued request may wait for its assertion.
const flowTTL = 10 * time.Minute

type flowEntry struct {
	state    LoginState
	issuedAt time.Time
}

// flowTable tracks in-flight login attempts keyed by relay state. Entries
// older than flowTTL are pruned on insert.
type flowTable struct {
	mu    sync.Mutex
	flows map[string]*flowEntry
	now   func() time.Time
}

func newFlowTable() *flowTable {
	return &flowTable{flows: make(map[string]*flowEntry), now: time.Now}
}

func (t *flowTable) issue(relayState string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	for key, entry := range t.flows {
		if now.Sub(entry.issuedAt) > flowTTL {
			delete(t.flows, key)
		}
	}

	if entry, ok := t.flows[relayState]; ok && entry.state == RequestIssued {
		return fmt.Errorf("%w: request already issued for this relay state", ErrInvalidTransition)
	}
	t.flows[relayState] = &flowEntry{state: RequestIssued, issuedAt: now}
	return nil
}

func (t *flowTable) resolve(relayState string, ok bool) (LoginState, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, found := t.flows[relayState]
	if !found || entry.state != RequestIssued {
		return Unauthenticated, fmt.Errorf("%w: no issued request for this relay state", ErrInvalidTransition)
	}
	delete(t.flows, relayState)
	if ok {
		return Authenticated, nil
	}
	return Failed, nil
}

func (t *flowTable) state(relayState string) LoginState {
	t.mu.Lock()
	defer t.mu.Unlock()
	if entry, ok := t.flows[relayState]; ok {
		return entry.state
	}
	return Unauthenticated
}

// ResolveFlow finishes the login attempt identified by relayState, moving it
// to Authenticated or Failed. Resolving an unknown or already finished flow
// returns ErrInvalidTransition.
func (a *Adapter) ResolveFlow(relayState string, succeeded bool) (LoginState, error) {
	return a.flows.resolve(relayState, succeeded)
}

// FlowState reports the current state of a login attempt. Unknown relay
// states are Unauthenticated.
func (a *Adapter) FlowState(relayState string) LoginState {
	return a.flows.state(relayState)
}
