package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/MaceGrim/ruhroh/internal/core/domain"
	"github.com/MaceGrim/ruhroh/internal/core/ports/driving"
)

var (
	evalMode       string
	evalSampleSize int
	evalChunks     []string
	evalJSON       bool
)

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Evaluate retrieval and answer quality",
	Long: `Commands for running quality evaluations over your corpus.

An evaluation generates (or takes) a question set, runs each question
through the retrieval pipeline for every configuration under test, and
scores the results (hit rate, MRR, context precision; plus LLM-judged
answer metrics in generation mode).`,
}

var evalRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Trigger an evaluation and wait for it to finish",
	RunE:  runEvalRun,
}

var evalListCmd = &cobra.Command{
	Use:   "list",
	Short: "List evaluation runs",
	RunE:  runEvalList,
}

var evalResultsCmd = &cobra.Command{
	Use:   "results [run-id]",
	Short: "Show per-question results for a run",
	Args:  cobra.ExactArgs(1),
	RunE:  runEvalResults,
}

func init() {
	evalRunCmd.Flags().StringVar(&evalMode, "mode", "retrieval", "evaluation mode: retrieval or generation")
	evalRunCmd.Flags().IntVar(&evalSampleSize, "sample-size", 0, "number of questions to generate (0 = default)")
	evalRunCmd.Flags().StringSliceVar(&evalChunks, "chunk-config", nil, "chunk configuration ids to sweep")
	evalResultsCmd.Flags().BoolVar(&evalJSON, "json", false, "output results as JSON")

	evalCmd.AddCommand(evalRunCmd)
	evalCmd.AddCommand(evalListCmd)
	evalCmd.AddCommand(evalResultsCmd)
	rootCmd.AddCommand(evalCmd)
}

func runEvalRun(cmd *cobra.Command, _ []string) error {
	if evalService == nil || evalRunner == nil {
		return errors.New("eval service not configured")
	}

	ctx := cmd.Context()
	run, err := evalService.TriggerRun(ctx, driving.TriggerRequest{
		UserID:         localUser,
		Mode:           domain.EvalMode(evalMode),
		ChunkConfigIDs: evalChunks,
		SampleSize:     evalSampleSize,
	})
	if err != nil {
		return fmt.Errorf("triggering run: %w", err)
	}
	cmd.Printf("Run %s triggered (%s mode)\n", run.ID, run.Mode)

	// No background worker here; drive the run to completion in-process.
	if err := evalRunner.RunOnce(ctx); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("executing run: %w", err)
	}

	final, progress, err := evalService.RunStatus(ctx, localUser, run.ID)
	if err != nil {
		return err
	}
	cmd.Printf("Run %s: %s (%d/%d questions, %d failed)\n",
		final.ID, final.Status, progress.Completed, progress.Total, progress.Failed)
	if final.Error != "" {
		cmd.Printf("Error: %s\n", final.Error)
	}
	if final.Status == domain.EvalCompleted {
		return printSummary(ctx, cmd, final.ID)
	}
	return nil
}

func runEvalList(cmd *cobra.Command, _ []string) error {
	if evalService == nil {
		return errors.New("eval service not configured")
	}

	runs, err := evalService.ListRuns(cmd.Context(), localUser)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		cmd.Println("No evaluation runs.")
		return nil
	}

	for _, run := range runs {
		line := fmt.Sprintf("  %s  %-10s %-10s %d questions",
			run.ID, run.Status, run.Mode, len(run.Questions))
		if !run.CompletedAt.IsZero() {
			line += fmt.Sprintf("  finished %s", run.CompletedAt.Format(time.RFC3339))
		}
		cmd.Println(line)
	}
	return nil
}

func runEvalResults(cmd *cobra.Command, args []string) error {
	if evalService == nil {
		return errors.New("eval service not configured")
	}
	if evalJSON {
		results, err := evalService.Results(cmd.Context(), localUser, args[0])
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}
	return printSummary(cmd.Context(), cmd, args[0])
}

// printSummary aggregates results per configuration pair.
func printSummary(ctx context.Context, cmd *cobra.Command, runID string) error {
	results, err := evalService.Results(ctx, localUser, runID)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		cmd.Println("No results.")
		return nil
	}

	type aggregate struct {
		hits, total, failed int
		mrr, precision      float64
		faith, relevancy    float64
		judged              int
	}
	pairs := make(map[string]*aggregate)
	var order []string

	for _, r := range results {
		key := r.ProfileID
		if r.ChunkConfigID != "" {
			key += " / " + r.ChunkConfigID
		}
		agg, ok := pairs[key]
		if !ok {
			agg = &aggregate{}
			pairs[key] = agg
			order = append(order, key)
		}
		agg.total++
		if r.Err != "" {
			agg.failed++
			continue
		}
		if r.Hit {
			agg.hits++
		}
		agg.mrr += r.ReciprocalRank
		agg.precision += r.ContextPrecision
		if r.Faithfulness >= 0 {
			agg.faith += r.Faithfulness
			agg.relevancy += r.AnswerRelevancy
			agg.judged++
		}
	}

	cmd.Println("Results:")
	for _, key := range order {
		agg := pairs[key]
		scored := agg.total - agg.failed
		if scored == 0 {
			cmd.Printf("  %s: all %d questions failed\n", key, agg.total)
			continue
		}
		cmd.Printf("  %s: hit rate %.2f, MRR %.3f, precision %.3f (%d questions, %d failed)\n",
			key,
			float64(agg.hits)/float64(scored),
			agg.mrr/float64(scored),
			agg.precision/float64(scored),
			agg.total, agg.failed)
		if agg.judged > 0 {
			cmd.Printf("      faithfulness %.2f, relevancy %.2f\n",
				agg.faith/float64(agg.judged), agg.relevancy/float64(agg.judged))
		}
	}
	return nil
}
