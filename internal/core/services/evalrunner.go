package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MaceGrim/ruhroh/internal/core/domain"
	"github.com/MaceGrim/ruhroh/internal/core/ports/driven"
	"github.com/MaceGrim/ruhroh/internal/logger"
)

const questionGenPrompt = `Based on the following text, generate a single question that could be answered by the information in this text.

Text:
%s

Generate a clear, specific question. Only output the question, nothing else.`

const evalAnswerPrompt = `You are a helpful document assistant. Answer questions based on the provided context from the user's documents.

RULES:
1. Only use information from the CONTEXT section below
2. If the information is not in the context, say "I couldn't find this in your documents"
3. Be concise and direct in your answers

CONTEXT:
%s`

const faithfulnessPrompt = `You are evaluating the faithfulness of an AI-generated answer to a question based on the provided context. A faithful answer only makes claims supported by the context.

Question: %s

Context:
%s

Answer: %s

Evaluate the faithfulness of the answer on a scale from 0 to 1.
Respond with JSON only:
{"score": <float between 0 and 1>, "reasoning": "<brief explanation>"}`

const relevancyPrompt = `You are evaluating how relevant an AI-generated answer is to the original question. An answer is relevant if it directly addresses what was asked.

Question: %s

Answer: %s

Evaluate the answer relevancy on a scale from 0 to 1.
Respond with JSON only:
{"score": <float between 0 and 1>, "reasoning": "<brief explanation>"}`

const correctnessPrompt = `You are evaluating how correct an AI-generated answer is compared to the expected answer, in factual accuracy and completeness.

Question: %s

Expected answer: %s

Generated answer: %s

Evaluate the answer correctness on a scale from 0 to 1.
Respond with JSON only:
{"score": <float between 0 and 1>, "reasoning": "<brief explanation>"}`

// Checkpoint cadence: whichever of the two limits is hit first.
const (
	checkpointEvery    = 50
	checkpointInterval = 5 * time.Minute
)

// questionGenSnippet caps the passage text fed to question generation.
const questionGenSnippet = 1500

// shedBackoff is how long the runner waits before retrying a question
// whose batch call was shed by gate backpressure.
const shedBackoff = 5 * time.Second

// EvalRunner executes evaluation runs in the background: it claims
// pending runs, sweeps the question set over every configuration pair,
// checkpoints for resumability and honours cancellation. All provider
// calls go through the batch-priority gated provider.
type EvalRunner struct {
	store     driven.EvalStore
	passages  driven.PassageStore
	retriever *Retriever
	llm       driven.LLMProvider // gated, batch priority

	pollInterval time.Duration
	shedBackoff  time.Duration
}

// NewEvalRunner creates a runner. The provider must already be gated at
// batch priority.
func NewEvalRunner(store driven.EvalStore, passages driven.PassageStore, retriever *Retriever, llm driven.LLMProvider) *EvalRunner {
	return &EvalRunner{
		store:        store,
		passages:     passages,
		retriever:    retriever,
		llm:          llm,
		pollInterval: 5 * time.Second,
		shedBackoff:  shedBackoff,
	}
}

// Run polls for pending runs until ctx is cancelled. Intended to be
// started once as a long-lived goroutine.
func (r *EvalRunner) Run(ctx context.Context) {
	logger.Info("evaluation runner started")
	if n, err := r.store.RequeueRunning(ctx); err != nil {
		logger.Warn("could not requeue orphaned runs: %v", err)
	} else if n > 0 {
		logger.Info("requeued %d orphaned evaluation runs", n)
	}

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("evaluation runner stopped")
			return
		case <-ticker.C:
			if err := r.RunOnce(ctx); err != nil && !errors.Is(err, domain.ErrNotFound) {
				logger.Error("evaluation run failed: %v", err)
			}
		}
	}
}

// RunOnce claims and executes at most one pending run. Returns
// domain.ErrNotFound when no run is waiting.
func (r *EvalRunner) RunOnce(ctx context.Context) error {
	run, err := r.store.NextPending(ctx)
	if err != nil {
		return err
	}
	if err := r.store.ClaimRun(ctx, run.ID); err != nil {
		if errors.Is(err, domain.ErrRunClaimed) {
			// Another worker got there first.
			return nil
		}
		return err
	}
	logger.Info("claimed evaluation run %s (mode=%s, %d profiles)", run.ID, run.Mode, len(run.Profiles))

	if err := r.execute(ctx, &run); err != nil {
		logger.Error("run %s failed: %v", run.ID, err)
		if stErr := r.store.SetStatus(ctx, run.ID, domain.EvalFailed, err.Error()); stErr != nil {
			logger.Error("could not record failure for run %s: %v", run.ID, stErr)
		}
		return err
	}
	return nil
}

// execute runs the sweep. Per-question failures are recorded and
// skipped; only systemic failures (retrieval backend unreachable,
// storage errors) abort the run.
func (r *EvalRunner) execute(ctx context.Context, run *domain.EvalRun) error {
	if len(run.Questions) == 0 {
		questions, err := r.generateQuestions(ctx, run)
		if err != nil {
			return fmt.Errorf("generate questions: %w", err)
		}
		if len(questions) == 0 {
			return fmt.Errorf("no questions could be generated for run %s", run.ID)
		}
		if err := r.store.SetQuestions(ctx, run.ID, questions); err != nil {
			return fmt.Errorf("persist questions: %w", err)
		}
		run.Questions = questions
	}

	chunkConfigs := run.ChunkConfigIDs
	if len(chunkConfigs) == 0 {
		chunkConfigs = []string{""}
	}

	// Resume from the latest checkpoint if one exists.
	startConfig := 0
	completed := make(map[string]bool)
	if cp, err := r.store.GetCheckpoint(ctx, run.ID); err == nil {
		startConfig = cp.ConfigIndex
		for _, id := range cp.CompletedQuestionIDs {
			completed[id] = true
		}
		logger.Info("run %s resuming at configuration %d with %d questions done", run.ID, startConfig, len(completed))
	} else if !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("load checkpoint: %w", err)
	}

	lastCheckpoint := time.Now()
	sinceCheckpoint := 0

	for configIdx := startConfig; configIdx < len(run.Profiles)*len(chunkConfigs); configIdx++ {
		profile := run.Profiles[configIdx/len(chunkConfigs)]
		chunkConfig := chunkConfigs[configIdx%len(chunkConfigs)]

		if configIdx != startConfig {
			// A fresh configuration pair starts with a clean slate.
			completed = make(map[string]bool)
		}

		for _, question := range run.Questions {
			if completed[question.ID] {
				continue
			}

			if ctx.Err() != nil {
				// Worker shutdown: park the run for the next worker.
				return r.suspend(run.ID, configIdx, completed, run.Mode)
			}

			cancelled, err := r.cancelRequested(ctx, run.ID)
			if err != nil {
				return err
			}
			if cancelled {
				return r.finishCancelled(ctx, run.ID, configIdx, completed, run.Mode)
			}

			result := r.evaluateQuestion(ctx, run, question, profile, chunkConfig)
			for errors.Is(result.systemicErr, domain.ErrRateLimited) {
				// Gate backpressure shed the batch call: pause until
				// the queue drains rather than failing the question.
				logger.Debug("evaluation run %s: gate backpressure, retrying question %s", run.ID, question.ID)
				select {
				case <-time.After(r.shedBackoff):
				case <-ctx.Done():
					return r.suspend(run.ID, configIdx, completed, run.Mode)
				}
				cancelled, err := r.cancelRequested(ctx, run.ID)
				if err != nil {
					return err
				}
				if cancelled {
					return r.finishCancelled(ctx, run.ID, configIdx, completed, run.Mode)
				}
				result = r.evaluateQuestion(ctx, run, question, profile, chunkConfig)
			}
			if isSystemic(result.systemicErr) {
				return fmt.Errorf("retrieval backend unreachable: %s", result.Err)
			}
			if err := r.store.SaveResult(ctx, result.EvalResult); err != nil {
				return fmt.Errorf("persist result: %w", err)
			}

			completed[question.ID] = true
			sinceCheckpoint++
			if sinceCheckpoint >= checkpointEvery || time.Since(lastCheckpoint) >= checkpointInterval {
				if err := r.writeCheckpoint(ctx, run.ID, configIdx, completed, run.Mode); err != nil {
					return err
				}
				sinceCheckpoint = 0
				lastCheckpoint = time.Now()
			}
		}
	}

	if err := r.store.SetStatus(ctx, run.ID, domain.EvalCompleted, ""); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	logger.Info("evaluation run %s completed", run.ID)
	return nil
}

// questionOutcome pairs a result with the raw error for systemic
// classification.
type questionOutcome struct {
	domain.EvalResult
	systemicErr error
}

// evaluateQuestion scores one (question, configuration) pair. Failures
// are captured in the result, never returned.
func (r *EvalRunner) evaluateQuestion(ctx context.Context, run *domain.EvalRun, q domain.EvalQuestion, profile domain.RetrievalProfile, chunkConfig string) questionOutcome {
	start := time.Now()
	result := domain.EvalResult{
		RunID:             run.ID,
		QuestionID:        q.ID,
		ProfileID:         profile.ID,
		ChunkConfigID:     chunkConfig,
		Faithfulness:      -1,
		AnswerRelevancy:   -1,
		AnswerCorrectness: -1,
		CreatedAt:         start.UTC(),
	}

	filter := domain.SearchFilter{UserID: run.UserID, ChunkConfigID: chunkConfig}
	fused, err := r.retriever.Retrieve(ctx, q.Text, filter, profile)
	if err != nil {
		result.Err = err.Error()
		result.LatencyMS = float64(time.Since(start).Milliseconds())
		return questionOutcome{result, err}
	}

	passages, err := r.retriever.Hydrate(ctx, fused)
	if err != nil {
		result.Err = err.Error()
		result.LatencyMS = float64(time.Since(start).Milliseconds())
		return questionOutcome{result, err}
	}

	// Retrieval metrics against the question's source document.
	if q.SourceDocumentID != "" {
		fromSource := 0
		for i, p := range passages {
			if p.DocumentID == q.SourceDocumentID {
				fromSource++
				if !result.Hit {
					result.Hit = true
					result.ReciprocalRank = 1.0 / float64(i+1)
				}
			}
		}
		if len(passages) > 0 {
			result.ContextPrecision = float64(fromSource) / float64(len(passages))
		}
	}

	if run.Mode == domain.EvalModeGeneration {
		r.scoreGeneration(ctx, q, passages, &result)
	}

	result.LatencyMS = float64(time.Since(start).Milliseconds())
	return questionOutcome{result, nil}
}

// scoreGeneration generates an answer for the question and judges it.
// Judge failures degrade to the neutral score rather than failing the
// question.
func (r *EvalRunner) scoreGeneration(ctx context.Context, q domain.EvalQuestion, passages []domain.Passage, result *domain.EvalResult) {
	contextBlock := formatContext(passages)
	answer, err := r.llm.Complete(ctx, driven.CompletionRequest{
		Messages: []driven.ChatMessage{
			{Role: "system", Content: fmt.Sprintf(evalAnswerPrompt, contextBlock)},
			{Role: "user", Content: q.Text},
		},
		Temperature: 0.2,
	})
	if err != nil {
		result.Err = fmt.Sprintf("generate answer: %v", err)
		return
	}

	result.Faithfulness = r.judgeScore(ctx, fmt.Sprintf(faithfulnessPrompt, q.Text, contextBlock, answer))
	result.AnswerRelevancy = r.judgeScore(ctx, fmt.Sprintf(relevancyPrompt, q.Text, answer))
	if q.ExpectedAnswer != "" {
		result.AnswerCorrectness = r.judgeScore(ctx, fmt.Sprintf(correctnessPrompt, q.Text, q.ExpectedAnswer, answer))
	}
}

// judgeScore runs one LLM-as-judge call and parses {"score": x} from
// the reply. Markdown fences are tolerated; parse failure yields the
// neutral 0.5 and scores are clamped to [0,1].
func (r *EvalRunner) judgeScore(ctx context.Context, prompt string) float64 {
	out, err := r.llm.Complete(ctx, driven.CompletionRequest{
		Messages:    []driven.ChatMessage{{Role: "user", Content: prompt}},
		MaxTokens:   200,
		Temperature: 0.1,
	})
	if err != nil {
		logger.Warn("judge call failed: %v", err)
		return 0.5
	}
	return parseJudgeScore(out)
}

func parseJudgeScore(out string) float64 {
	out = strings.TrimSpace(out)
	if strings.HasPrefix(out, "```") {
		var kept []string
		for _, line := range strings.Split(out, "\n") {
			if !strings.HasPrefix(line, "```") {
				kept = append(kept, line)
			}
		}
		out = strings.Join(kept, "\n")
	}

	var parsed struct {
		Score float64 `json:"score"`
	}
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		logger.Warn("judge reply not parseable, using neutral score: %.80s", out)
		return 0.5
	}
	if parsed.Score < 0 {
		return 0
	}
	if parsed.Score > 1 {
		return 1
	}
	return parsed.Score
}

// generateQuestions samples passages from the user's corpus and asks
// the provider for one question per passage. Individual generation
// failures are skipped.
func (r *EvalRunner) generateQuestions(ctx context.Context, run *domain.EvalRun) ([]domain.EvalQuestion, error) {
	sampled, err := r.passages.SamplePassages(ctx, run.UserID, run.SampleSize)
	if err != nil {
		return nil, err
	}

	var questions []domain.EvalQuestion
	for _, p := range sampled {
		snippet := p.Content
		if runes := []rune(snippet); len(runes) > questionGenSnippet {
			snippet = string(runes[:questionGenSnippet])
		}
		out, err := r.llm.Complete(ctx, driven.CompletionRequest{
			Messages:    []driven.ChatMessage{{Role: "user", Content: fmt.Sprintf(questionGenPrompt, snippet)}},
			MaxTokens:   100,
			Temperature: 0.7,
		})
		if err != nil {
			logger.Warn("question generation failed for passage %s: %v", p.ID, err)
			continue
		}
		text := strings.TrimSpace(out)
		if text == "" {
			continue
		}
		questions = append(questions, domain.EvalQuestion{
			ID:               p.ID, // stable across restarts for checkpointing
			Text:             text,
			SourceDocumentID: p.DocumentID,
		})
	}
	return questions, nil
}

// suspend checkpoints and returns the run to pending so a later worker
// resumes it. Runs on a short detached context because the worker's own
// context is already cancelled during shutdown.
func (r *EvalRunner) suspend(runID string, configIdx int, completed map[string]bool, mode domain.EvalMode) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.writeCheckpoint(ctx, runID, configIdx, completed, mode); err != nil {
		return err
	}
	logger.Info("evaluation run %s suspended for shutdown", runID)
	return r.store.SetStatus(ctx, runID, domain.EvalPending, "")
}

// cancelRequested reports whether the run has entered cancelling.
func (r *EvalRunner) cancelRequested(ctx context.Context, runID string) (bool, error) {
	run, err := r.store.GetRun(ctx, runID)
	if err != nil {
		return false, fmt.Errorf("poll run status: %w", err)
	}
	return run.Status == domain.EvalCancelling, nil
}

// finishCancelled writes the final checkpoint and moves the run to
// cancelled, keeping all completed results.
func (r *EvalRunner) finishCancelled(ctx context.Context, runID string, configIdx int, completed map[string]bool, mode domain.EvalMode) error {
	if err := r.writeCheckpoint(ctx, runID, configIdx, completed, mode); err != nil {
		logger.Warn("final checkpoint for cancelled run %s: %v", runID, err)
	}
	if err := r.store.SetStatus(ctx, runID, domain.EvalCancelled, ""); err != nil {
		return fmt.Errorf("mark cancelled: %w", err)
	}
	logger.Info("evaluation run %s cancelled", runID)
	return nil
}

func (r *EvalRunner) writeCheckpoint(ctx context.Context, runID string, configIdx int, completed map[string]bool, mode domain.EvalMode) error {
	ids := make([]string, 0, len(completed))
	for id := range completed {
		ids = append(ids, id)
	}
	cp := domain.EvalCheckpoint{
		RunID:                runID,
		ConfigIndex:          configIdx,
		CompletedQuestionIDs: ids,
		Phase:                string(mode),
		WrittenAt:            time.Now().UTC(),
	}
	if err := r.store.SaveCheckpoint(ctx, cp); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	return nil
}

// isSystemic classifies an evaluation failure: provider-side errors are
// local to the question, anything else means the retrieval backend
// itself is unhealthy.
func isSystemic(err error) bool {
	if err == nil {
		return false
	}
	var pe *driven.ProviderError
	if errors.As(err, &pe) {
		return false
	}
	if errors.Is(err, domain.ErrRateLimited) || errors.Is(err, domain.ErrGateClosed) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}
