// Package cli provides the command-line interface. Commands drive the
// core services directly; the serve command additionally exposes them
// over HTTP and MCP.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/MaceGrim/ruhroh/internal/adapters/driven/config/file"
	"github.com/MaceGrim/ruhroh/internal/core/ports/driving"
	"github.com/MaceGrim/ruhroh/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

// localUser identifies the CLI caller. The CLI always acts as the
// local single user.
const localUser = "local"

// evalWorker is the slice of the background runner the CLI needs.
type evalWorker interface {
	// Run polls for pending runs until the context is cancelled.
	Run(ctx context.Context)

	// RunOnce claims and executes at most one pending run.
	RunOnce(ctx context.Context) error
}

// Injected services. Set via Configure before Execute.
var (
	chatService   driving.ChatService
	threadService driving.ThreadService
	searchService driving.SearchService
	evalService   driving.EvalService
	configStore   *file.ConfigStore
	evalRunner    evalWorker
)

// Deps carries everything the commands need.
type Deps struct {
	Chat    driving.ChatService
	Threads driving.ThreadService
	Search  driving.SearchService
	Evals   driving.EvalService
	Config  *file.ConfigStore
	Runner  evalWorker
}

// Configure injects the service dependencies.
func Configure(deps Deps) {
	chatService = deps.Chat
	threadService = deps.Threads
	searchService = deps.Search
	evalService = deps.Evals
	configStore = deps.Config
	evalRunner = deps.Runner
}

var verboseFlag bool

var rootCmd = &cobra.Command{
	Use:   "ruhroh",
	Short: "Chat with your documents",
	Long: `Ruhroh answers questions from your own documents using hybrid
retrieval (BM25 + vector search with rank fusion) and a language model,
with citations back to the source passages.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verboseFlag)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "enable verbose logging")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
