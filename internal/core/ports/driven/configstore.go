package driven

import (
	"context"

	"github.com/MaceGrim/ruhroh/internal/core/domain"
)

// ConfigStore provides access to application configuration.
// Implementations handle persistence (e.g., TOML files), validation and
// change notification. Accessors return a consistent snapshot; a reload
// never exposes a half-applied configuration.
type ConfigStore interface {
	// Profile returns the live retrieval profile.
	Profile() domain.RetrievalProfile

	// Gate returns the call gate limits.
	Gate() domain.GateConfig

	// Chat returns the chat behaviour settings.
	Chat() domain.ChatConfig

	// Load reads and validates configuration from storage. Invalid
	// configuration leaves the previous snapshot in effect.
	Load() error

	// Watch invokes onChange after each successful reload triggered by
	// a file change. It blocks until ctx is cancelled.
	Watch(ctx context.Context, onChange func()) error

	// Path returns the configuration file path.
	Path() string
}
