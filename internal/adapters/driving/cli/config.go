package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/MaceGrim/ruhroh/internal/adapters/driven/config/file"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	RunE:  runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current configuration",
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the default settings",
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file path",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if configStore == nil {
			return errors.New("config store not configured")
		}
		cmd.Println(configStore.Path())
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	if configStore == nil {
		return errors.New("config store not configured")
	}

	profile := configStore.Profile()
	gate := configStore.Gate()
	chat := configStore.Chat()
	provider := configStore.Provider()

	cmd.Printf("Config file: %s\n\n", configStore.Path())
	cmd.Printf("Provider: %s", provider.Kind)
	if provider.Model != "" {
		cmd.Printf(" (model %s)", provider.Model)
	}
	cmd.Println()
	cmd.Printf("Retrieval: weights %.2f/%.2f, rrf k %d, top k %d, threshold %.2f, context %d\n",
		profile.Fusion.VectorWeight, profile.Fusion.KeywordWeight,
		profile.Fusion.RRFK, profile.TopK, profile.RelevanceThreshold, profile.ContextPassages)
	cmd.Printf("Gate: %d req/min (burst %d), %d concurrent, batch threshold %d\n",
		gate.RequestsPerMinute, gate.Burst, gate.MaxConcurrent, gate.BatchQueueThreshold)
	cmd.Printf("Chat: fallback %v, history %d messages\n",
		chat.FallbackEnabled, chat.HistoryMessages)
	return nil
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	if configStore == nil {
		return errors.New("config store not configured")
	}

	if _, err := os.Stat(configStore.Path()); err == nil {
		return fmt.Errorf("config file already exists at %s", configStore.Path())
	}

	content, err := file.ExampleConfig()
	if err != nil {
		return fmt.Errorf("rendering default config: %w", err)
	}
	if err := configStore.Save(content); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	cmd.Printf("Wrote %s\n", configStore.Path())
	return nil
}
