package session

import (
	"context"
	"fmt"
	"strings"
)

// Provider supplies the session the export control should act on.
// An absent session is reported as a zero Reference, not an error.
type Provider interface {
	Current(ctx context.Context) (Reference, error)
}

// ProviderFunc adapts an ordinary function to the Provider interface.
type ProviderFunc func(ctx context.Context) (Reference, error)

func (f ProviderFunc) Current(ctx context.Context) (Reference, error) {
	return f(ctx)
}

// StaticProvider always returns the same reference. Used in tests and when
// a control is embedded with a fixed session.
type StaticProvider struct {
	ID string
}

func (p StaticProvider) Current(ctx context.Context) (Reference, error) {
	return Reference{ID: strings.TrimSpace(p.ID)}, nil
}

// StoreProvider reads the active session from the repository.
type StoreProvider struct {
	repo Repository
}

func NewStoreProvider(repo Repository) *StoreProvider {
	return &StoreProvider{repo: repo}
}

func (p *StoreProvider) Current(ctx context.Context) (Reference, error) {
	s, err := p.repo.GetActiveSession(ctx)
	if err != nil {
		return Reference{}, fmt.Errorf("lookup active session: %w", err)
	}
	if s == nil {
		return Reference{}, nil
	}
	return Reference{ID: s.ID}, nil
}
