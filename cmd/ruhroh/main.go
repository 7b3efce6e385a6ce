// Command ruhroh is the document-chat service: hybrid retrieval with
// rank fusion, cited answers over your own documents, and background
// quality evaluation.
package main

import (
	"fmt"
	"os"

	"github.com/MaceGrim/ruhroh/internal/adapters/driven/config/file"
	"github.com/MaceGrim/ruhroh/internal/adapters/driven/llm/ollama"
	"github.com/MaceGrim/ruhroh/internal/adapters/driven/llm/openai"
	"github.com/MaceGrim/ruhroh/internal/adapters/driven/storage/sqlite"
	"github.com/MaceGrim/ruhroh/internal/adapters/driving/cli"
	"github.com/MaceGrim/ruhroh/internal/core/ports/driven"
	"github.com/MaceGrim/ruhroh/internal/core/services"
	"github.com/MaceGrim/ruhroh/internal/logger"
)

func main() {
	if err := run(); err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
}

func run() error {
	config, err := file.NewConfigStore("")
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	store, err := sqlite.NewStore(config.DataDir())
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()

	provider, err := buildProvider(config.Provider())
	if err != nil {
		return err
	}
	defer provider.Close()

	gate := services.NewCallGate(config.Gate())
	defer gate.Close()

	// Live chat goes through the interactive lane; evaluation runs take
	// the batch lane and yield to it.
	interactiveLLM := services.NewGatedLLM(provider, gate, services.PriorityInteractive)
	batchLLM := services.NewGatedLLM(provider, gate, services.PriorityBatch)

	retriever := services.NewRetriever(store.PassageStore(), interactiveLLM)
	planner := services.NewPlanner(retriever, interactiveLLM)

	batchRetriever := services.NewRetriever(store.PassageStore(), batchLLM)
	runner := services.NewEvalRunner(store.EvalStore(), store.PassageStore(), batchRetriever, batchLLM)

	cli.Configure(cli.Deps{
		Chat:    services.NewChatService(store.ThreadStore(), retriever, planner, interactiveLLM, config),
		Threads: services.NewThreadService(store.ThreadStore()),
		Search:  services.NewSearchService(retriever, config),
		Evals:   services.NewEvalService(store.EvalStore(), config),
		Config:  config,
		Runner:  runner,
	})

	return cli.Execute()
}

// buildProvider constructs the configured LLM provider. The OpenAI API
// key may come from the config file or the OPENAI_API_KEY environment
// variable.
func buildProvider(cfg file.ProviderConfig) (driven.LLMProvider, error) {
	switch cfg.Kind {
	case "ollama":
		return ollama.New(ollama.Config{
			BaseURL:        cfg.BaseURL,
			Model:          cfg.Model,
			EmbeddingModel: cfg.EmbeddingModel,
		}), nil
	default:
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		return openai.New(openai.Config{
			APIKey:         apiKey,
			BaseURL:        cfg.BaseURL,
			Model:          cfg.Model,
			EmbeddingModel: cfg.EmbeddingModel,
		})
	}
}
