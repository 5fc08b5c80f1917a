package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/jaeyoon-song/fabsight/internal/api/response"
	"github.com/jaeyoon-song/fabsight/internal/reportstore"
)

type questionResponse struct {
	Question       string               `json:"question"`
	ReportExists   bool                 `json:"report_exists"`
	SimilarReports []reportstore.Result `json:"similar_reports"`
	FinalAnswer    string               `json:"final_answer"`
	LLMCalls       int                  `json:"llm_calls"`
}

// NewQuestionHandler returns the handler for POST /api/v1/question.
func NewQuestionHandler(engine AnalysisEngine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Question string `json:"question"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if strings.TrimSpace(req.Question) == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "question is required", nil)
			return
		}

		s := engine.RunQuestionAnswer(r.Context(), req.Question)
		if s.Err != "" {
			response.Error(w, http.StatusUnprocessableEntity, "ANSWER_FAILED", s.Err, nil)
			return
		}

		similar := s.SimilarReports
		if similar == nil {
			similar = []reportstore.Result{}
		}
		response.JSON(w, questionResponse{
			Question:       s.Question,
			ReportExists:   s.ReportExists,
			SimilarReports: similar,
			FinalAnswer:    s.FinalAnswer,
			LLMCalls:       s.LLMCalls,
		})
	}
}
