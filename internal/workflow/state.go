// Package workflow implements the alarm-triage and question-answering
// pipelines: a small state machine whose stages each return a partial
// update merged into a shared analysis state.
package workflow

import (
	"github.com/jaeyoon-song/fabsight/internal/reportstore"
	"github.com/jaeyoon-song/fabsight/pkg/models"
)

// Route names for State.Route.
const (
	RouteAlarm    = "alarm"
	RouteQuestion = "question"
)

// State is the single record threaded through a pipeline run. JSON tags
// exist because a phase-1 state is serialized into the session cache and
// deserialized by phase 2.
type State struct {
	Route string `json:"route"`

	// Alarm identity. May be unset on entry, meaning "resolve to the
	// latest alarm-flagged row".
	Date  string `json:"date,omitempty"`
	EqpID string `json:"eqp_id,omitempty"`
	KPI   string `json:"kpi,omitempty"`

	// Retrieved data.
	KPIRecord   *models.KPIRecord  `json:"kpi_record,omitempty"`
	LotStates   []models.LotState  `json:"lot_states,omitempty"`
	EqpStates   []models.EqpState  `json:"eqp_states,omitempty"`
	Recipes     []models.Recipe    `json:"recipes,omitempty"`
	Trend       []models.KPIRecord `json:"trend,omitempty"`
	AlarmReason string             `json:"alarm_reason,omitempty"`
	ContextText string             `json:"context_text,omitempty"`

	// Candidate analysis and decision.
	ProblemSummary string             `json:"problem_summary,omitempty"`
	RootCauses     []models.RootCause `json:"root_causes,omitempty"`
	SelectedCause  *models.RootCause  `json:"selected_cause,omitempty"`
	SelectedIndex  *int               `json:"selected_cause_index,omitempty"`

	// Output.
	FinalReport string `json:"final_report,omitempty"`
	ReportID    string `json:"report_id,omitempty"`
	RAGSaved    bool   `json:"rag_saved"`

	// Question route.
	Question       string               `json:"question,omitempty"`
	ReportExists   bool                 `json:"report_exists"`
	SimilarReports []reportstore.Result `json:"similar_reports,omitempty"`
	FinalAnswer    string               `json:"final_answer,omitempty"`

	// Bookkeeping. Err empty means success so far.
	LLMCalls int    `json:"llm_calls"`
	Err      string `json:"error,omitempty"`
}

// NewAlarmState returns a fresh alarm-route state. Empty identity fields
// mean the load stage resolves the latest alarm.
func NewAlarmState(date, eqpID, kpi string) State {
	return State{Route: RouteAlarm, Date: date, EqpID: eqpID, KPI: kpi}
}

// NewQuestionState returns a fresh question-route state.
func NewQuestionState(question string) State {
	return State{Route: RouteQuestion, Question: question}
}

// Update is the partial result a stage returns. Nil pointer fields and nil
// slices leave the corresponding state field untouched; LLMCalls is a delta
// added to the running counter.
type Update struct {
	Date  *string
	EqpID *string
	KPI   *string

	KPIRecord   *models.KPIRecord
	LotStates   []models.LotState
	EqpStates   []models.EqpState
	Recipes     []models.Recipe
	Trend       []models.KPIRecord
	AlarmReason *string
	ContextText *string

	ProblemSummary *string
	RootCauses     []models.RootCause
	SelectedCause  *models.RootCause
	SelectedIndex  *int

	FinalReport *string
	ReportID    *string
	RAGSaved    *bool

	ReportExists   *bool
	SimilarReports []reportstore.Result
	FinalAnswer    *string

	LLMCalls int
	Err      string
}

func (s *State) apply(u Update) {
	if u.Date != nil {
		s.Date = *u.Date
	}
	if u.EqpID != nil {
		s.EqpID = *u.EqpID
	}
	if u.KPI != nil {
		s.KPI = *u.KPI
	}
	if u.KPIRecord != nil {
		s.KPIRecord = u.KPIRecord
	}
	if u.LotStates != nil {
		s.LotStates = u.LotStates
	}
	if u.EqpStates != nil {
		s.EqpStates = u.EqpStates
	}
	if u.Recipes != nil {
		s.Recipes = u.Recipes
	}
	if u.Trend != nil {
		s.Trend = u.Trend
	}
	if u.AlarmReason != nil {
		s.AlarmReason = *u.AlarmReason
	}
	if u.ContextText != nil {
		s.ContextText = *u.ContextText
	}
	if u.ProblemSummary != nil {
		s.ProblemSummary = *u.ProblemSummary
	}
	if u.RootCauses != nil {
		s.RootCauses = u.RootCauses
	}
	if u.SelectedCause != nil {
		s.SelectedCause = u.SelectedCause
	}
	if u.SelectedIndex != nil {
		s.SelectedIndex = u.SelectedIndex
	}
	if u.FinalReport != nil {
		s.FinalReport = *u.FinalReport
	}
	if u.ReportID != nil {
		s.ReportID = *u.ReportID
	}
	if u.RAGSaved != nil {
		s.RAGSaved = *u.RAGSaved
	}
	if u.ReportExists != nil {
		s.ReportExists = *u.ReportExists
	}
	if u.SimilarReports != nil {
		s.SimilarReports = u.SimilarReports
	}
	if u.FinalAnswer != nil {
		s.FinalAnswer = *u.FinalAnswer
	}
	s.LLMCalls += u.LLMCalls
	if u.Err != "" {
		s.Err = u.Err
	}
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }
func boolPtr(b bool) *bool    { return &b }
