package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaeyoon-song/fabsight/internal/reportstore"
	"github.com/jaeyoon-song/fabsight/internal/store"
	"github.com/jaeyoon-song/fabsight/internal/workflow"
	"github.com/jaeyoon-song/fabsight/pkg/models"
)

type stubEngine struct {
	alarmState    workflow.State
	phase1ID      string
	phase1State   workflow.State
	phase1Err     error
	phase2State   workflow.State
	phase2Err     error
	questionState workflow.State
	latest        *store.LatestAlarm
	latestErr     error

	gotDate, gotEqpID, gotKPI string
	gotSessionID              string
	gotIndex                  *int
}

func (s *stubEngine) RunAlarmAnalysis(_ context.Context, date, eqpID, kpi string) workflow.State {
	s.gotDate, s.gotEqpID, s.gotKPI = date, eqpID, kpi
	return s.alarmState
}

func (s *stubEngine) RunAlarmAnalysisPhase1(_ context.Context, date, eqpID, kpi string) (string, workflow.State, error) {
	s.gotDate, s.gotEqpID, s.gotKPI = date, eqpID, kpi
	return s.phase1ID, s.phase1State, s.phase1Err
}

func (s *stubEngine) RunAlarmAnalysisPhase2(_ context.Context, sessionID string, idx *int) (workflow.State, error) {
	s.gotSessionID, s.gotIndex = sessionID, idx
	return s.phase2State, s.phase2Err
}

func (s *stubEngine) RunQuestionAnswer(context.Context, string) workflow.State {
	return s.questionState
}

func (s *stubEngine) LatestAlarm(context.Context) (*store.LatestAlarm, error) {
	return s.latest, s.latestErr
}

func completedState() workflow.State {
	idx := 0
	return workflow.State{
		Route: workflow.RouteAlarm,
		Date:  "2026-05-01", EqpID: "EQP-001", KPI: "OEE",
		RootCauses: []models.RootCause{
			{Cause: "downtime", Probability: 50, Evidence: "3h DOWN"},
		},
		SelectedCause: &models.RootCause{Cause: "downtime", Probability: 50, Evidence: "3h DOWN"},
		SelectedIndex: &idx,
		FinalReport:   "# 분석 리포트",
		ReportID:      "report_2026-05-01_EQP-001_OEE",
		RAGSaved:      true,
		LLMCalls:      2,
	}
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestAlarmAnalyzeHandler(t *testing.T) {
	engine := &stubEngine{alarmState: completedState()}
	h := NewAlarmAnalyzeHandler(engine)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/alarm/analyze",
		strings.NewReader(`{"date":"2026-05-01","eqp_id":"EQP-001","kpi":"OEE"}`))
	w := httptest.NewRecorder()
	h(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeBody(t, w)["data"].(map[string]any)
	assert.Equal(t, "report_2026-05-01_EQP-001_OEE", data["report_id"])
	assert.Equal(t, true, data["rag_saved"])
	assert.Equal(t, "OEE", engine.gotKPI)
}

func TestAlarmAnalyzeHandler_EmptyBodyAnalyzesLatest(t *testing.T) {
	engine := &stubEngine{alarmState: completedState()}
	h := NewAlarmAnalyzeHandler(engine)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/alarm/analyze", nil)
	w := httptest.NewRecorder()
	h(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, engine.gotDate)
	assert.Empty(t, engine.gotEqpID)
}

func TestAlarmAnalyzeHandler_InvalidKPI(t *testing.T) {
	h := NewAlarmAnalyzeHandler(&stubEngine{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/alarm/analyze",
		strings.NewReader(`{"kpi":"YIELD"}`))
	w := httptest.NewRecorder()
	h(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	errObj := decodeBody(t, w)["error"].(map[string]any)
	assert.Equal(t, "INVALID_REQUEST", errObj["code"])
}

func TestAlarmAnalyzeHandler_PipelineError(t *testing.T) {
	engine := &stubEngine{alarmState: workflow.State{Err: "no KPI record for date=2026-01-01 eqp_id=EQP-404"}}
	h := NewAlarmAnalyzeHandler(engine)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/alarm/analyze",
		strings.NewReader(`{"date":"2026-01-01","eqp_id":"EQP-404"}`))
	w := httptest.NewRecorder()
	h(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	errObj := decodeBody(t, w)["error"].(map[string]any)
	assert.Equal(t, "ANALYSIS_FAILED", errObj["code"])
	assert.Contains(t, errObj["message"], "EQP-404")
}

func TestAlarmPhase1Handler(t *testing.T) {
	engine := &stubEngine{
		phase1ID: "11111111-2222-3333-4444-555555555555",
		phase1State: workflow.State{
			Route: workflow.RouteAlarm,
			Date:  "2026-05-01", EqpID: "EQP-001", KPI: "OEE",
			RootCauses: []models.RootCause{{Cause: "downtime", Probability: 50, Evidence: "e"}},
			LLMCalls:   1,
		},
	}
	h := NewAlarmPhase1Handler(engine)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/alarm/analyze/phase1",
		strings.NewReader(`{"date":"2026-05-01","eqp_id":"EQP-001"}`))
	w := httptest.NewRecorder()
	h(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeBody(t, w)["data"].(map[string]any)
	assert.Equal(t, engine.phase1ID, data["session_id"])
	assert.Len(t, data["root_causes"], 1)
}

func TestAlarmSelectHandler(t *testing.T) {
	engine := &stubEngine{phase2State: completedState()}
	h := NewAlarmSelectHandler(engine)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/alarm/select",
		strings.NewReader(`{"session_id":"s1","selected_index":0}`))
	w := httptest.NewRecorder()
	h(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "s1", engine.gotSessionID)
	require.NotNil(t, engine.gotIndex)
	assert.Equal(t, 0, *engine.gotIndex)
}

func TestAlarmSelectHandler_MissingSession(t *testing.T) {
	h := NewAlarmSelectHandler(&stubEngine{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/alarm/select",
		strings.NewReader(`{"selected_index":0}`))
	w := httptest.NewRecorder()
	h(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAlarmSelectHandler_SessionNotFound(t *testing.T) {
	engine := &stubEngine{phase2Err: workflow.ErrSessionNotFound}
	h := NewAlarmSelectHandler(engine)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/alarm/select",
		strings.NewReader(`{"session_id":"gone"}`))
	w := httptest.NewRecorder()
	h(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	errObj := decodeBody(t, w)["error"].(map[string]any)
	assert.Equal(t, "SESSION_NOT_FOUND", errObj["code"])
}

func TestAlarmSelectHandler_InvalidIndex(t *testing.T) {
	engine := &stubEngine{phase2State: workflow.State{Err: "invalid selection index 7 (have 3 candidates)"}}
	h := NewAlarmSelectHandler(engine)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/alarm/select",
		strings.NewReader(`{"session_id":"s1","selected_index":7}`))
	w := httptest.NewRecorder()
	h(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestLatestAlarmHandler(t *testing.T) {
	engine := &stubEngine{latest: &store.LatestAlarm{Date: "2026-05-01", EqpID: "EQP-001"}}
	h := NewLatestAlarmHandler(engine)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/alarm/latest", nil)
	w := httptest.NewRecorder()
	h(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeBody(t, w)["data"].(map[string]any)
	assert.Equal(t, "2026-05-01", data["date"])
	assert.Equal(t, "EQP-001", data["eqp_id"])
}

func TestLatestAlarmHandler_NoAlarms(t *testing.T) {
	engine := &stubEngine{latestErr: store.ErrNotFound}
	h := NewLatestAlarmHandler(engine)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/alarm/latest", nil)
	w := httptest.NewRecorder()
	h(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestQuestionHandler(t *testing.T) {
	engine := &stubEngine{questionState: workflow.State{
		Route:        workflow.RouteQuestion,
		Question:     "어제 알람 원인이 뭐야?",
		ReportExists: true,
		FinalAnswer:  "다운타임이 원인이었습니다.",
		LLMCalls:     1,
	}}
	h := NewQuestionHandler(engine)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/question",
		strings.NewReader(`{"question":"어제 알람 원인이 뭐야?"}`))
	w := httptest.NewRecorder()
	h(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeBody(t, w)["data"].(map[string]any)
	assert.Equal(t, "다운타임이 원인이었습니다.", data["final_answer"])
	assert.Equal(t, true, data["report_exists"])
	// similar_reports is always a list, never null.
	assert.NotNil(t, data["similar_reports"])
}

func TestQuestionHandler_EmptyQuestion(t *testing.T) {
	h := NewQuestionHandler(&stubEngine{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/question",
		strings.NewReader(`{"question":"   "}`))
	w := httptest.NewRecorder()
	h(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// --- report handlers ---

type stubReports struct {
	reportstore.Store
	results map[string]*reportstore.Result
	deleted []string
}

func (s *stubReports) All(context.Context) ([]reportstore.Result, error) {
	out := make([]reportstore.Result, 0, len(s.results))
	for _, r := range s.results {
		out = append(out, *r)
	}
	return out, nil
}

func (s *stubReports) Get(_ context.Context, id string) (*reportstore.Result, error) {
	if r, ok := s.results[id]; ok {
		return r, nil
	}
	return nil, reportstore.ErrReportNotFound
}

func (s *stubReports) Delete(_ context.Context, id string) error {
	s.deleted = append(s.deleted, id)
	delete(s.results, id)
	return nil
}

func reportRequest(t *testing.T, method, path, reportID string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("reportID", reportID)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestListReportsHandler(t *testing.T) {
	reports := &stubReports{results: map[string]*reportstore.Result{
		"r1": {ID: "r1", Document: "doc"},
	}}
	h := NewListReportsHandler(reports)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports", nil)
	w := httptest.NewRecorder()
	h(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Len(t, body["data"], 1)
	meta := body["meta"].(map[string]any)
	assert.Equal(t, float64(1), meta["total"])
}

func TestGetReportHandler(t *testing.T) {
	reports := &stubReports{results: map[string]*reportstore.Result{
		"report_2026-05-01_EQP-001_OEE": {ID: "report_2026-05-01_EQP-001_OEE", Document: "doc"},
	}}
	h := NewGetReportHandler(reports)

	w := httptest.NewRecorder()
	h(w, reportRequest(t, http.MethodGet, "/api/v1/reports/report_2026-05-01_EQP-001_OEE", "report_2026-05-01_EQP-001_OEE"))

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeBody(t, w)["data"].(map[string]any)
	assert.Equal(t, "doc", data["document"])
}

func TestGetReportHandler_NotFound(t *testing.T) {
	h := NewGetReportHandler(&stubReports{results: map[string]*reportstore.Result{}})

	w := httptest.NewRecorder()
	h(w, reportRequest(t, http.MethodGet, "/api/v1/reports/nope", "nope"))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteReportHandler(t *testing.T) {
	reports := &stubReports{results: map[string]*reportstore.Result{
		"r1": {ID: "r1"},
	}}
	h := NewDeleteReportHandler(reports)

	w := httptest.NewRecorder()
	h(w, reportRequest(t, http.MethodDelete, "/api/v1/reports/r1", "r1"))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"r1"}, reports.deleted)
}
