// Package settings holds the runtime completion settings an administrator
// can change while the server is running. The chat path reads them once per
// request through a Provider.
package settings

import (
	"context"
	"strings"
	"sync"
)

const (
	DefaultModel    = "gpt-3.5-turbo"
	DefaultEndpoint = "https://api.openai.com/v1/chat/completions"
)

type Settings struct {
	APIKey   string `json:"api_key"`
	Model    string `json:"model"`
	Endpoint string `json:"endpoint"`
}

type Provider interface {
	Current(ctx context.Context) (Settings, error)
}

type Store interface {
	Provider
	Save(ctx context.Context, s Settings) error
}

// WithDefaults fills an empty model or endpoint. The API key has no default.
func (s Settings) WithDefaults() Settings {
	s.APIKey = strings.TrimSpace(s.APIKey)
	s.Model = strings.TrimSpace(s.Model)
	s.Endpoint = strings.TrimSpace(s.Endpoint)
	if s.Model == "" {
		s.Model = DefaultModel
	}
	if s.Endpoint == "" {
		s.Endpoint = DefaultEndpoint
	}
	return s
}

// Masked keeps only the last four characters of the API key.
func (s Settings) Masked() Settings {
	k := s.APIKey
	switch {
	case k == "":
	case len(k) <= 4:
		s.APIKey = strings.Repeat("*", len(k))
	default:
		s.APIKey = strings.Repeat("*", len(k)-4) + k[len(k)-4:]
	}
	return s
}

type MemoryStore struct {
	mu  sync.RWMutex
	cur Settings
}

func NewMemoryStore(initial Settings) *MemoryStore {
	return &MemoryStore{cur: initial}
}

func (m *MemoryStore) Current(ctx context.Context) (Settings, error) {
	_ = ctx
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cur.WithDefaults(), nil
}

func (m *MemoryStore) Save(ctx context.Context, s Settings) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cur = s
	return nil
}
