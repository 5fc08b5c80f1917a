// Package handler contains the HTTP handlers for the triage API. Handlers
// depend on narrow interfaces so tests can stub the engine and stores.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jaeyoon-song/fabsight/internal/api/response"
	"github.com/jaeyoon-song/fabsight/internal/store"
	"github.com/jaeyoon-song/fabsight/internal/workflow"
	"github.com/jaeyoon-song/fabsight/pkg/models"
)

// AnalysisEngine defines the pipeline operations the handlers depend on.
type AnalysisEngine interface {
	RunAlarmAnalysis(ctx context.Context, date, eqpID, kpi string) workflow.State
	RunAlarmAnalysisPhase1(ctx context.Context, date, eqpID, kpi string) (string, workflow.State, error)
	RunAlarmAnalysisPhase2(ctx context.Context, sessionID string, selectedIndex *int) (workflow.State, error)
	RunQuestionAnswer(ctx context.Context, question string) workflow.State
	LatestAlarm(ctx context.Context) (*store.LatestAlarm, error)
}

var validKPIs = map[string]bool{
	models.KPIOEE:         true,
	models.KPITHP:         true,
	models.KPITAT:         true,
	models.KPIWIPExceed:   true,
	models.KPIWIPShortage: true,
}

type alarmRequest struct {
	Date  string `json:"date"`
	EqpID string `json:"eqp_id"`
	KPI   string `json:"kpi"`
}

// alarmAnalysisResponse is the completed alarm-route state as exposed by
// the API.
type alarmAnalysisResponse struct {
	Date           string             `json:"date"`
	EqpID          string             `json:"eqp_id"`
	KPI            string             `json:"kpi"`
	AlarmReason    string             `json:"alarm_reason,omitempty"`
	ProblemSummary string             `json:"problem_summary,omitempty"`
	RootCauses     []models.RootCause `json:"root_causes"`
	SelectedCause  *models.RootCause  `json:"selected_cause,omitempty"`
	SelectedIndex  *int               `json:"selected_cause_index,omitempty"`
	FinalReport    string             `json:"final_report"`
	ReportID       string             `json:"report_id"`
	RAGSaved       bool               `json:"rag_saved"`
	LLMCalls       int                `json:"llm_calls"`
}

func alarmResponseFrom(s workflow.State) alarmAnalysisResponse {
	return alarmAnalysisResponse{
		Date:           s.Date,
		EqpID:          s.EqpID,
		KPI:            s.KPI,
		AlarmReason:    s.AlarmReason,
		ProblemSummary: s.ProblemSummary,
		RootCauses:     s.RootCauses,
		SelectedCause:  s.SelectedCause,
		SelectedIndex:  s.SelectedIndex,
		FinalReport:    s.FinalReport,
		ReportID:       s.ReportID,
		RAGSaved:       s.RAGSaved,
		LLMCalls:       s.LLMCalls,
	}
}

func decodeAlarmRequest(w http.ResponseWriter, r *http.Request) (alarmRequest, bool) {
	var req alarmRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return req, false
		}
	}
	if req.KPI != "" && !validKPIs[req.KPI] {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
			"kpi must be one of OEE, THP, TAT, WIP_EXCEED, WIP_SHORTAGE", nil)
		return req, false
	}
	return req, true
}

// NewAlarmAnalyzeHandler returns the handler for POST /api/v1/alarm/analyze.
// An empty body (or empty identity fields) analyzes the latest alarm.
func NewAlarmAnalyzeHandler(engine AnalysisEngine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeAlarmRequest(w, r)
		if !ok {
			return
		}

		s := engine.RunAlarmAnalysis(r.Context(), req.Date, req.EqpID, req.KPI)
		if s.Err != "" {
			response.Error(w, http.StatusUnprocessableEntity, "ANALYSIS_FAILED", s.Err, nil)
			return
		}
		response.JSON(w, alarmResponseFrom(s))
	}
}

// phase1Response carries the session id an operator needs to complete the
// analysis with a selection.
type phase1Response struct {
	SessionID      string             `json:"session_id"`
	Date           string             `json:"date"`
	EqpID          string             `json:"eqp_id"`
	KPI            string             `json:"kpi"`
	AlarmReason    string             `json:"alarm_reason,omitempty"`
	ProblemSummary string             `json:"problem_summary,omitempty"`
	RootCauses     []models.RootCause `json:"root_causes"`
	LLMCalls       int                `json:"llm_calls"`
}

// NewAlarmPhase1Handler returns the handler for POST /api/v1/alarm/analyze/phase1.
func NewAlarmPhase1Handler(engine AnalysisEngine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeAlarmRequest(w, r)
		if !ok {
			return
		}

		sessionID, s, err := engine.RunAlarmAnalysisPhase1(r.Context(), req.Date, req.EqpID, req.KPI)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "SESSION_ERROR", err.Error(), nil)
			return
		}
		if s.Err != "" {
			response.Error(w, http.StatusUnprocessableEntity, "ANALYSIS_FAILED", s.Err, nil)
			return
		}

		response.JSON(w, phase1Response{
			SessionID:      sessionID,
			Date:           s.Date,
			EqpID:          s.EqpID,
			KPI:            s.KPI,
			AlarmReason:    s.AlarmReason,
			ProblemSummary: s.ProblemSummary,
			RootCauses:     s.RootCauses,
			LLMCalls:       s.LLMCalls,
		})
	}
}

// NewAlarmSelectHandler returns the handler for POST /api/v1/alarm/select.
// It resumes a phase-1 session with the operator's cause selection; omitting
// selected_index lets the pipeline auto-select the most probable candidate.
func NewAlarmSelectHandler(engine AnalysisEngine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			SessionID     string `json:"session_id"`
			SelectedIndex *int   `json:"selected_index"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if req.SessionID == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "session_id is required", nil)
			return
		}

		s, err := engine.RunAlarmAnalysisPhase2(r.Context(), req.SessionID, req.SelectedIndex)
		if err != nil {
			if errors.Is(err, workflow.ErrSessionNotFound) {
				response.Error(w, http.StatusNotFound, "SESSION_NOT_FOUND", err.Error(), nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "SESSION_ERROR", err.Error(), nil)
			return
		}
		if s.Err != "" {
			response.Error(w, http.StatusUnprocessableEntity, "ANALYSIS_FAILED", s.Err, nil)
			return
		}
		response.JSON(w, alarmResponseFrom(s))
	}
}

// NewLatestAlarmHandler returns the handler for GET /api/v1/alarm/latest.
func NewLatestAlarmHandler(engine AnalysisEngine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		latest, err := engine.LatestAlarm(r.Context())
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "NO_ALARM_FOUND",
					"No alarm-flagged KPI records found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "STORE_ERROR", err.Error(), nil)
			return
		}
		response.JSON(w, latest)
	}
}
