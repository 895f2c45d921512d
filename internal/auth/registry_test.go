package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/latchkey-io/latchkey/internal/adapters/memory"
	"github.com/latchkey-io/latchkey/internal/domain"
)

func registryDeps() Collaborators {
	return Collaborators{
		Users:           newFakeUsers(),
		Verifier:        fakeVerifier{},
		Sessions:        memory.NewSessionStore(),
		DurableSessions: memory.NewSessionStore(),
	}
}

func TestRegistryCreatesBuiltins(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	cfg := Config{SessionDuration: time.Minute}

	for _, name := range []string{TypeBasic, TypeSession, TypeSessionExp, TypeSessionDB} {
		strategy, err := registry.Create(name, cfg, registryDeps())
		if err != nil {
			t.Fatalf("Create(%s): %v", name, err)
		}
		if strategy.Name() != name {
			t.Fatalf("strategy name = %q, want %q", strategy.Name(), name)
		}
	}
}

func TestRegistryUnknownType(t *testing.T) {
	t.Parallel()

	_, err := NewRegistry().Create("token_auth", Config{}, registryDeps())
	if !errors.Is(err, domain.ErrUnknownAuthType) {
		t.Fatalf("err = %v, want %v", err, domain.ErrUnknownAuthType)
	}
}

func TestRegistryUnregister(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	registry.Unregister(TypeBasic)
	if _, err := registry.Create(TypeBasic, Config{}, registryDeps()); !errors.Is(err, domain.ErrUnknownAuthType) {
		t.Fatalf("err = %v, want %v", err, domain.ErrUnknownAuthType)
	}

	// Unregistering an unknown name is a no-op.
	registry.Unregister("never_registered")
}

func TestRegistryRegisterCustomStrategy(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	registry.Register("custom", func(cfg Config, deps Collaborators) (Strategy, error) {
		return NewBasicAuth(deps.Users, deps.Verifier), nil
	})

	strategy, err := registry.Create("custom", Config{}, registryDeps())
	if err != nil {
		t.Fatalf("Create(custom): %v", err)
	}
	if strategy == nil {
		t.Fatal("nil strategy")
	}
}

func TestRegistryFactoryValidatesDeps(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		authType string
		deps     Collaborators
	}{
		{"basic without users", TypeBasic, Collaborators{Verifier: fakeVerifier{}}},
		{"basic without verifier", TypeBasic, Collaborators{Users: newFakeUsers()}},
		{"session without store", TypeSession, Collaborators{Users: newFakeUsers()}},
		{"session_db without durable store", TypeSessionDB, Collaborators{
			Users:    newFakeUsers(),
			Sessions: memory.NewSessionStore(),
		}},
	}

	registry := NewRegistry()
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := registry.Create(tc.authType, Config{}, tc.deps); err == nil {
				t.Fatal("expected error for missing collaborator")
			}
		})
	}
}

func TestBasicStrategyHasNoSessionCapability(t *testing.T) {
	t.Parallel()

	strategy, err := NewRegistry().Create(TypeBasic, Config{}, registryDeps())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, ok := strategy.(SessionManager); ok {
		t.Fatal("basic_auth must not expose session management")
	}
}
