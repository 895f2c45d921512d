package auth

import (
	"fmt"
	"sync"

	"github.com/latchkey-io/latchkey/internal/domain"
)

// Registry keys for the built-in strategies.
const (
	TypeBasic      = "basic_auth"
	TypeSession    = "session_auth"
	TypeSessionExp = "session_exp_auth"
	TypeSessionDB  = "session_db_auth"
)

// Factory builds a strategy instance from configuration and its wired
// collaborators. Factories fail fast on missing collaborators so a
// misconfiguration is a startup error, not a request-time surprise.
type Factory func(cfg Config, deps Collaborators) (Strategy, error)

// Registry maps auth type names to factories. The composition root
// calls Create exactly once at startup; Register and Unregister exist
// so embedding applications can add strategies or strip built-ins
// before that call. All methods are safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns a registry pre-populated with the four built-in
// strategies.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register(TypeBasic, basicFactory)
	r.Register(TypeSession, sessionFactory)
	r.Register(TypeSessionExp, sessionExpFactory)
	r.Register(TypeSessionDB, sessionDBFactory)
	return r
}

// Register binds name to factory, replacing any previous binding.
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Unregister removes a binding. Removing an unknown name is a no-op.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.factories, name)
}

// Types returns the registered strategy names, for error messages and
// operator tooling. Order is unspecified.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	return names
}

// Create instantiates the strategy registered under name. An unknown
// name yields domain.ErrUnknownAuthType; callers at the composition
// root must treat that as fatal rather than falling back to another
// strategy.
func (r *Registry) Create(name string, cfg Config, deps Collaborators) (Strategy, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownAuthType, name)
	}
	strategy, err := factory(cfg, deps)
	if err != nil {
		return nil, fmt.Errorf("build %s strategy: %w", name, err)
	}
	return strategy, nil
}

func basicFactory(_ Config, deps Collaborators) (Strategy, error) {
	if deps.Users == nil {
		return nil, fmt.Errorf("basic_auth requires a user lookup")
	}
	if deps.Verifier == nil {
		return nil, fmt.Errorf("basic_auth requires a password verifier")
	}
	return NewBasicAuth(deps.Users, deps.Verifier), nil
}

func sessionFactory(cfg Config, deps Collaborators) (Strategy, error) {
	if err := requireSessionDeps(deps.Sessions != nil, deps); err != nil {
		return nil, err
	}
	return NewSessionAuth(cfg, deps.Sessions, deps.Users, deps.clock()), nil
}

func sessionExpFactory(cfg Config, deps Collaborators) (Strategy, error) {
	if err := requireSessionDeps(deps.Sessions != nil, deps); err != nil {
		return nil, err
	}
	return NewSessionExpAuth(cfg, deps.Sessions, deps.Users, deps.clock()), nil
}

func sessionDBFactory(cfg Config, deps Collaborators) (Strategy, error) {
	if err := requireSessionDeps(deps.DurableSessions != nil, deps); err != nil {
		return nil, err
	}
	return NewSessionDBAuth(cfg, deps.DurableSessions, deps.Users, deps.clock()), nil
}

func requireSessionDeps(haveStore bool, deps Collaborators) error {
	if !haveStore {
		return fmt.Errorf("session strategy requires a session store")
	}
	if deps.Users == nil {
		return fmt.Errorf("session strategy requires a user lookup")
	}
	return nil
}
