package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pelletier/go-toml/v2"

	"github.com/MaceGrim/ruhroh/internal/core/domain"
	"github.com/MaceGrim/ruhroh/internal/core/ports/driven"
	"github.com/MaceGrim/ruhroh/internal/logger"
)

// Ensure ConfigStore implements the interface.
var _ driven.ConfigStore = (*ConfigStore)(nil)

// debounceWindow coalesces the event bursts editors produce on save.
const debounceWindow = 100 * time.Millisecond

// ProviderConfig selects and configures the LLM provider. It is read
// once at startup; changing providers requires a restart.
type ProviderConfig struct {
	// Kind is "openai" or "ollama".
	Kind string `toml:"kind"`

	// APIKey authenticates hosted providers. Ignored for ollama.
	APIKey string `toml:"api_key"`

	// BaseURL overrides the provider endpoint.
	BaseURL string `toml:"base_url"`

	// Model and EmbeddingModel override the provider defaults.
	Model          string `toml:"model"`
	EmbeddingModel string `toml:"embedding_model"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	ListenAddr string `toml:"listen_addr"`
}

// fileConfig is the on-disk TOML shape. Absent keys keep their
// defaults; toml.Unmarshal only overwrites keys present in the file.
type fileConfig struct {
	DataDir  string         `toml:"data_dir"`
	Server   ServerConfig   `toml:"server"`
	Provider ProviderConfig `toml:"provider"`

	Retrieval retrievalSection `toml:"retrieval"`
	Gate      gateSection      `toml:"gate"`
	Chat      chatSection      `toml:"chat"`
}

type retrievalSection struct {
	VectorWeight       float64 `toml:"vector_weight"`
	KeywordWeight      float64 `toml:"keyword_weight"`
	RRFK               int     `toml:"rrf_k"`
	TopK               int     `toml:"top_k"`
	RelevanceThreshold float64 `toml:"relevance_threshold"`
	ContextPassages    int     `toml:"context_passages"`
}

type gateSection struct {
	RequestsPerMinute   int `toml:"requests_per_minute"`
	Burst               int `toml:"burst"`
	MaxConcurrent       int `toml:"max_concurrent"`
	BatchQueueThreshold int `toml:"batch_queue_threshold"`
}

type chatSection struct {
	FallbackEnabled bool `toml:"fallback_enabled"`
	HistoryMessages int  `toml:"history_messages"`
}

// snapshot is one validated, immutable view of the configuration.
type snapshot struct {
	profile  domain.RetrievalProfile
	gate     domain.GateConfig
	chat     domain.ChatConfig
	provider ProviderConfig
	server   ServerConfig
	dataDir  string
}

// ConfigStore is a TOML-file implementation of driven.ConfigStore.
// Reads return a consistent snapshot; Load swaps the whole snapshot
// atomically or not at all.
type ConfigStore struct {
	mu       sync.RWMutex
	filePath string
	current  snapshot
}

// NewConfigStore creates the store and loads the configuration file.
// If configDir is empty, defaults to ~/.ruhroh. A missing file is not
// an error; defaults apply until one is written.
func NewConfigStore(configDir string) (*ConfigStore, error) {
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home directory: %w", err)
		}
		configDir = filepath.Join(home, ".ruhroh")
	}
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	s := &ConfigStore{
		filePath: filepath.Join(configDir, "config.toml"),
		current:  defaultSnapshot(),
	}
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

func defaultSnapshot() snapshot {
	return snapshot{
		profile:  domain.DefaultRetrievalProfile(),
		gate:     domain.DefaultGateConfig(),
		chat:     domain.DefaultChatConfig(),
		provider: ProviderConfig{Kind: "openai"},
		server:   ServerConfig{ListenAddr: "127.0.0.1:8420"},
	}
}

func defaultFileConfig() fileConfig {
	def := defaultSnapshot()
	return fileConfig{
		Server:   def.server,
		Provider: def.provider,
		Retrieval: retrievalSection{
			VectorWeight:       def.profile.Fusion.VectorWeight,
			KeywordWeight:      def.profile.Fusion.KeywordWeight,
			RRFK:               def.profile.Fusion.RRFK,
			TopK:               def.profile.TopK,
			RelevanceThreshold: def.profile.RelevanceThreshold,
			ContextPassages:    def.profile.ContextPassages,
		},
		Gate: gateSection{
			RequestsPerMinute:   def.gate.RequestsPerMinute,
			Burst:               def.gate.Burst,
			MaxConcurrent:       def.gate.MaxConcurrent,
			BatchQueueThreshold: def.gate.BatchQueueThreshold,
		},
		Chat: chatSection{
			FallbackEnabled: def.chat.FallbackEnabled,
			HistoryMessages: def.chat.HistoryMessages,
		},
	}
}

// Load reads and validates the configuration file. On any error the
// previous snapshot stays in effect and the error is returned.
func (s *ConfigStore) Load() error {
	cfg := defaultFileConfig()

	data, err := os.ReadFile(s.filePath)
	switch {
	case os.IsNotExist(err):
		// No file yet, defaults apply.
	case err != nil:
		return fmt.Errorf("reading config: %w", err)
	default:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return fmt.Errorf("parsing %s: %w", s.filePath, err)
		}
	}

	next, err := buildSnapshot(cfg)
	if err != nil {
		return fmt.Errorf("validating %s: %w", s.filePath, err)
	}

	s.mu.Lock()
	s.current = next
	s.mu.Unlock()
	return nil
}

func buildSnapshot(cfg fileConfig) (snapshot, error) {
	next := snapshot{
		profile: domain.RetrievalProfile{
			ID: "default",
			Fusion: domain.FusionConfig{
				VectorWeight:  cfg.Retrieval.VectorWeight,
				KeywordWeight: cfg.Retrieval.KeywordWeight,
				RRFK:          cfg.Retrieval.RRFK,
			},
			TopK:               cfg.Retrieval.TopK,
			RelevanceThreshold: cfg.Retrieval.RelevanceThreshold,
			ContextPassages:    cfg.Retrieval.ContextPassages,
		},
		gate: domain.GateConfig{
			RequestsPerMinute:   cfg.Gate.RequestsPerMinute,
			Burst:               cfg.Gate.Burst,
			MaxConcurrent:       cfg.Gate.MaxConcurrent,
			BatchQueueThreshold: cfg.Gate.BatchQueueThreshold,
		},
		chat: domain.ChatConfig{
			FallbackEnabled: cfg.Chat.FallbackEnabled,
			HistoryMessages: cfg.Chat.HistoryMessages,
		},
		provider: cfg.Provider,
		server:   cfg.Server,
		dataDir:  cfg.DataDir,
	}

	if err := next.profile.Validate(); err != nil {
		return snapshot{}, err
	}
	if err := next.gate.Validate(); err != nil {
		return snapshot{}, err
	}
	if next.chat.HistoryMessages < 0 {
		return snapshot{}, fmt.Errorf("%w: history messages must be non-negative, got %d",
			domain.ErrInvalidInput, next.chat.HistoryMessages)
	}
	switch next.provider.Kind {
	case "openai", "ollama":
	default:
		return snapshot{}, fmt.Errorf("%w: unknown provider kind %q",
			domain.ErrInvalidInput, next.provider.Kind)
	}
	return next, nil
}

// Profile returns the live retrieval profile.
func (s *ConfigStore) Profile() domain.RetrievalProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.profile
}

// Gate returns the call gate limits.
func (s *ConfigStore) Gate() domain.GateConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.gate
}

// Chat returns the chat behaviour settings.
func (s *ConfigStore) Chat() domain.ChatConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.chat
}

// Provider returns the LLM provider settings. Read at startup only.
func (s *ConfigStore) Provider() ProviderConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.provider
}

// Server returns the HTTP listener settings.
func (s *ConfigStore) Server() ServerConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.server
}

// DataDir returns the configured data directory, empty for the default.
func (s *ConfigStore) DataDir() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.dataDir
}

// Path returns the configuration file path.
func (s *ConfigStore) Path() string {
	return s.filePath
}

// Watch reloads the configuration when the file changes and invokes
// onChange after each successful reload. It blocks until ctx is
// cancelled. Editors replace files on save, so the watch is on the
// directory rather than the file itself.
func (s *ConfigStore) Watch(ctx context.Context, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(s.filePath)); err != nil {
		return fmt.Errorf("watching config directory: %w", err)
	}

	var debounce *time.Timer
	reload := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != s.filePath {
				continue
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Rename) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceWindow, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})

		case <-reload:
			if err := s.Load(); err != nil {
				logger.Warn("config reload failed, keeping previous configuration: %v", err)
				continue
			}
			logger.Debug("configuration reloaded from %s", s.filePath)
			if onChange != nil {
				onChange()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("config watcher error: %v", err)
		}
	}
}

// Save writes the given TOML content to the config file, creating it
// with restricted permissions. Used by `ruhroh config init`.
func (s *ConfigStore) Save(content []byte) error {
	return os.WriteFile(s.filePath, content, 0600)
}

// ExampleConfig renders the default configuration as TOML, suitable as
// a starting file.
func ExampleConfig() ([]byte, error) {
	cfg := defaultFileConfig()
	return toml.Marshal(cfg)
}
