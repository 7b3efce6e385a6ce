package memory

import (
	"context"
	"sync"

	"github.com/MaceGrim/ruhroh/internal/core/domain"
	"github.com/MaceGrim/ruhroh/internal/core/ports/driven"
)

// Ensure ConfigStore implements the interface.
var _ driven.ConfigStore = (*ConfigStore)(nil)

// ConfigStore is an in-memory implementation of driven.ConfigStore
// holding fixed settings. Used in tests and as the default when no
// configuration file is given.
type ConfigStore struct {
	mu      sync.RWMutex
	profile domain.RetrievalProfile
	gate    domain.GateConfig
	chat    domain.ChatConfig
}

// NewConfigStore creates a config store with the shipped defaults.
func NewConfigStore() *ConfigStore {
	return &ConfigStore{
		profile: domain.DefaultRetrievalProfile(),
		gate:    domain.DefaultGateConfig(),
		chat:    domain.DefaultChatConfig(),
	}
}

// Profile returns the retrieval profile.
func (s *ConfigStore) Profile() domain.RetrievalProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile
}

// Gate returns the call gate limits.
func (s *ConfigStore) Gate() domain.GateConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gate
}

// Chat returns the chat settings.
func (s *ConfigStore) Chat() domain.ChatConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.chat
}

// SetProfile replaces the retrieval profile. Test hook.
func (s *ConfigStore) SetProfile(p domain.RetrievalProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile = p
}

// SetChat replaces the chat settings. Test hook.
func (s *ConfigStore) SetChat(c domain.ChatConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chat = c
}

// SetGate replaces the gate limits. Test hook.
func (s *ConfigStore) SetGate(g domain.GateConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gate = g
}

// Load is a no-op for the in-memory store.
func (s *ConfigStore) Load() error { return nil }

// Watch blocks until ctx is cancelled; in-memory settings never change
// behind the caller's back.
func (s *ConfigStore) Watch(ctx context.Context, _ func()) error {
	<-ctx.Done()
	return ctx.Err()
}

// Path reports no backing file.
func (s *ConfigStore) Path() string { return "" }
