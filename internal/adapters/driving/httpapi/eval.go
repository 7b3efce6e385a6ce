package httpapi

import (
	"net/http"
	"time"

	"github.com/MaceGrim/ruhroh/internal/core/domain"
	"github.com/MaceGrim/ruhroh/internal/core/ports/driving"
)

type triggerRunRequest struct {
	Mode           string                `json:"mode,omitempty"`
	Profiles       []profilePayload      `json:"profiles,omitempty"`
	ChunkConfigIDs []string              `json:"chunk_config_ids,omitempty"`
	Questions      []evalQuestionPayload `json:"questions,omitempty"`
	SampleSize     int                   `json:"sample_size,omitempty"`
}

type profilePayload struct {
	ID                 string  `json:"id"`
	VectorWeight       float64 `json:"vector_weight"`
	KeywordWeight      float64 `json:"keyword_weight"`
	RRFK               int     `json:"rrf_k"`
	TopK               int     `json:"top_k"`
	RelevanceThreshold float64 `json:"relevance_threshold"`
	ContextPassages    int     `json:"context_passages"`
}

type evalQuestionPayload struct {
	ID               string `json:"id"`
	Text             string `json:"text"`
	ExpectedAnswer   string `json:"expected_answer,omitempty"`
	SourceDocumentID string `json:"source_document_id"`
}

type runResponse struct {
	ID            string     `json:"id"`
	Status        string     `json:"status"`
	Mode          string     `json:"mode"`
	QuestionCount int        `json:"question_count"`
	ConfigPairs   int        `json:"config_pairs"`
	Error         string     `json:"error,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`

	Progress *progressResponse `json:"progress,omitempty"`
}

type progressResponse struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
	Failed    int `json:"failed"`
}

type resultResponse struct {
	QuestionID        string  `json:"question_id"`
	ProfileID         string  `json:"profile_id"`
	ChunkConfigID     string  `json:"chunk_config_id,omitempty"`
	Hit               bool    `json:"hit"`
	ReciprocalRank    float64 `json:"reciprocal_rank"`
	ContextPrecision  float64 `json:"context_precision"`
	Faithfulness      float64 `json:"faithfulness"`
	AnswerRelevancy   float64 `json:"answer_relevancy"`
	AnswerCorrectness float64 `json:"answer_correctness"`
	LatencyMS         float64 `json:"latency_ms"`
	Err               string  `json:"error,omitempty"`
}

func toRunResponse(run domain.EvalRun) runResponse {
	resp := runResponse{
		ID:            run.ID,
		Status:        string(run.Status),
		Mode:          string(run.Mode),
		QuestionCount: len(run.Questions),
		ConfigPairs:   run.ConfigPairs(),
		Error:         run.Error,
		CreatedAt:     run.CreatedAt,
	}
	if !run.CompletedAt.IsZero() {
		completed := run.CompletedAt
		resp.CompletedAt = &completed
	}
	return resp
}

func (s *Server) handleTriggerRun(w http.ResponseWriter, r *http.Request) {
	var req triggerRunRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	trigger := driving.TriggerRequest{
		UserID:         userID(r),
		Mode:           domain.EvalMode(req.Mode),
		ChunkConfigIDs: req.ChunkConfigIDs,
		SampleSize:     req.SampleSize,
	}
	for _, p := range req.Profiles {
		trigger.Profiles = append(trigger.Profiles, domain.RetrievalProfile{
			ID: p.ID,
			Fusion: domain.FusionConfig{
				VectorWeight:  p.VectorWeight,
				KeywordWeight: p.KeywordWeight,
				RRFK:          p.RRFK,
			},
			TopK:               p.TopK,
			RelevanceThreshold: p.RelevanceThreshold,
			ContextPassages:    p.ContextPassages,
		})
	}
	for _, q := range req.Questions {
		trigger.Questions = append(trigger.Questions, domain.EvalQuestion{
			ID:               q.ID,
			Text:             q.Text,
			ExpectedAnswer:   q.ExpectedAnswer,
			SourceDocumentID: q.SourceDocumentID,
		})
	}

	run, err := s.evals.TriggerRun(r.Context(), trigger)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, toRunResponse(run))
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.evals.ListRuns(r.Context(), userID(r))
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]runResponse, 0, len(runs))
	for _, run := range runs {
		out = append(out, toRunResponse(run))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRunStatus(w http.ResponseWriter, r *http.Request) {
	run, progress, err := s.evals.RunStatus(r.Context(), userID(r), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	resp := toRunResponse(run)
	resp.Progress = &progressResponse{
		Completed: progress.Completed,
		Total:     progress.Total,
		Failed:    progress.Failed,
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	if err := s.evals.CancelRun(r.Context(), userID(r), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancellation requested"})
}

func (s *Server) handleRunResults(w http.ResponseWriter, r *http.Request) {
	results, err := s.evals.Results(r.Context(), userID(r), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]resultResponse, 0, len(results))
	for _, res := range results {
		out = append(out, resultResponse{
			QuestionID:        res.QuestionID,
			ProfileID:         res.ProfileID,
			ChunkConfigID:     res.ChunkConfigID,
			Hit:               res.Hit,
			ReciprocalRank:    res.ReciprocalRank,
			ContextPrecision:  res.ContextPrecision,
			Faithfulness:      res.Faithfulness,
			AnswerRelevancy:   res.AnswerRelevancy,
			AnswerCorrectness: res.AnswerCorrectness,
			LatencyMS:         res.LatencyMS,
			Err:               res.Err,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": out})
}
