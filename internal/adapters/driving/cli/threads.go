package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MaceGrim/ruhroh/internal/core/domain"
)

var threadsCmd = &cobra.Command{
	Use:   "threads",
	Short: "Manage chat threads",
	RunE:  runThreadsList,
}

var threadsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List chat threads",
	RunE:  runThreadsList,
}

var threadsShowCmd = &cobra.Command{
	Use:   "show [thread-id]",
	Short: "Print a thread's transcript",
	Args:  cobra.ExactArgs(1),
	RunE:  runThreadsShow,
}

var threadsRenameCmd = &cobra.Command{
	Use:   "rename [thread-id] [name]",
	Short: "Rename a thread",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if threadService == nil {
			return errors.New("thread service not configured")
		}
		return threadService.RenameThread(cmd.Context(), localUser, args[0], args[1])
	},
}

var threadsDeleteCmd = &cobra.Command{
	Use:   "delete [thread-id]",
	Short: "Delete a thread and its messages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if threadService == nil {
			return errors.New("thread service not configured")
		}
		return threadService.DeleteThread(cmd.Context(), localUser, args[0])
	},
}

func init() {
	threadsCmd.AddCommand(threadsListCmd)
	threadsCmd.AddCommand(threadsShowCmd)
	threadsCmd.AddCommand(threadsRenameCmd)
	threadsCmd.AddCommand(threadsDeleteCmd)
	rootCmd.AddCommand(threadsCmd)
}

func runThreadsList(cmd *cobra.Command, _ []string) error {
	if threadService == nil {
		return errors.New("thread service not configured")
	}

	threads, err := threadService.ListThreads(cmd.Context(), localUser)
	if err != nil {
		return err
	}
	if len(threads) == 0 {
		cmd.Println("No threads.")
		return nil
	}

	for _, t := range threads {
		cmd.Printf("  %s  %s (updated %s)\n", t.ID, t.Name, t.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

func runThreadsShow(cmd *cobra.Command, args []string) error {
	if threadService == nil {
		return errors.New("thread service not configured")
	}

	messages, err := threadService.History(cmd.Context(), localUser, args[0])
	if err != nil {
		return fmt.Errorf("loading thread: %w", err)
	}

	for _, m := range messages {
		switch m.Role {
		case domain.RoleUser:
			cmd.Printf("> %s\n\n", m.Content)
		case domain.RoleAssistant:
			cmd.Printf("%s\n", m.Content)
			for _, c := range m.Citations {
				cmd.Printf("  [%d] %s\n", c.Index, c.DocumentName)
			}
			cmd.Println()
		}
	}
	return nil
}
