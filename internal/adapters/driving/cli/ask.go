package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MaceGrim/ruhroh/internal/core/domain"
	"github.com/MaceGrim/ruhroh/internal/logger"
)

var askThreadID string

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question answered from your documents",
	Long: `Runs one chat turn: retrieves relevant passages, generates an
answer grounded in them and prints it with citations.

Without --thread a new conversation is started; pass a thread id to
keep follow-up context.`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askThreadID, "thread", "t", "", "continue an existing thread")
	rootCmd.AddCommand(askCmd)
}

// terminalSink prints a chat turn's event stream to the terminal.
// Tokens stream as they arrive; stages only show in verbose mode.
type terminalSink struct {
	cmd       *cobra.Command
	citations []domain.Citation
	errEvent  *domain.StreamEvent
}

func (s *terminalSink) Send(event domain.StreamEvent) error {
	switch event.Type {
	case domain.EventStatus:
		logger.Debug("stage: %s", event.Stage)
	case domain.EventToken:
		s.cmd.Print(event.Content)
	case domain.EventCitation:
		if event.Citation != nil {
			s.citations = append(s.citations, *event.Citation)
		}
	case domain.EventDone:
		s.cmd.Println()
		if !event.FromDocuments {
			s.cmd.Println()
			s.cmd.Println("(answered from general knowledge, not your documents)")
		}
	case domain.EventError:
		ev := event
		s.errEvent = &ev
	}
	return nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := args[0]

	if chatService == nil || threadService == nil {
		return errors.New("chat service not configured")
	}

	ctx := cmd.Context()
	threadID := askThreadID
	if threadID == "" {
		thread, err := threadService.CreateThread(ctx, localUser, "")
		if err != nil {
			return fmt.Errorf("creating thread: %w", err)
		}
		threadID = thread.ID
	}

	sink := &terminalSink{cmd: cmd}
	if err := chatService.StreamTurn(ctx, localUser, threadID, question, sink); err != nil {
		if sink.errEvent != nil {
			return fmt.Errorf("%s: %s", sink.errEvent.Code, sink.errEvent.Message)
		}
		return err
	}

	if len(sink.citations) > 0 {
		cmd.Println()
		cmd.Println("Sources:")
		for _, c := range sink.citations {
			if c.Page > 0 {
				cmd.Printf("  [%d] %s, p.%d\n", c.Index, c.DocumentName, c.Page)
			} else {
				cmd.Printf("  [%d] %s\n", c.Index, c.DocumentName)
			}
		}
	}

	cmd.Println()
	cmd.Printf("Thread: %s (use --thread %s for follow-ups)\n", threadID, threadID)
	return nil
}
