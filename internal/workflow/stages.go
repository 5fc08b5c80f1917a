package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jaeyoon-song/fabsight/internal/analysis"
	"github.com/jaeyoon-song/fabsight/internal/reportstore"
	"github.com/jaeyoon-song/fabsight/internal/store"
	"github.com/jaeyoon-song/fabsight/pkg/dateparse"
	"github.com/jaeyoon-song/fabsight/pkg/models"
)

// Similarity distances below this count as "a relevant prior report exists"
// on the question route.
const relevanceThreshold = 2.0

// rawResponseLimit caps how much of an unparseable model response is quoted
// in the resulting error message.
const rawResponseLimit = 200

// loadAlarmKPI resolves the alarm identity and fetches the KPI row. With no
// identity supplied it resolves the most recent alarm-flagged row first.
func (e *Engine) loadAlarmKPI(ctx context.Context, s State) Update {
	date, eqpID := s.Date, s.EqpID

	if date == "" && eqpID == "" {
		latest, err := e.store.GetLatestAlarm(ctx)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return Update{Err: "no alarm-flagged KPI records found"}
			}
			return Update{Err: fmt.Sprintf("resolving latest alarm: %v", err)}
		}
		date, eqpID = latest.Date, latest.EqpID
	}

	if date == "" || eqpID == "" {
		return Update{Err: "both date and equipment id are required"}
	}

	rec, err := e.store.GetKPIDaily(ctx, date, eqpID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Update{Err: fmt.Sprintf("no KPI record for date=%s eqp_id=%s", date, eqpID)}
		}
		return Update{Err: fmt.Sprintf("loading KPI record: %v", err)}
	}

	kpi := s.KPI
	if kpi == "" {
		kpi = analysis.DetectAlarmKPI(*rec)
	}
	target, actual := analysis.TargetActual(*rec, kpi)
	_, reason := analysis.CheckAlarmCondition(kpi, target, actual)

	return Update{
		Date:        strPtr(date),
		EqpID:       strPtr(eqpID),
		KPI:         strPtr(kpi),
		KPIRecord:   rec,
		AlarmReason: strPtr(reason),
	}
}

// fetchContext collects the day's lot events, equipment events, recipes and
// trend window, then renders the context text. Recipe and trend lookups are
// enrichment; their failures are logged and tolerated. Lot and equipment
// lookups are core evidence, so their failures halt the run.
func (e *Engine) fetchContext(ctx context.Context, s State) Update {
	if s.KPIRecord == nil {
		return Update{Err: "no KPI record loaded"}
	}

	lots, err := e.store.ListLotStates(ctx, s.EqpID, s.Date)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return Update{Err: fmt.Sprintf("loading lot states: %v", err)}
	}
	events, err := e.store.ListEqpStates(ctx, s.EqpID, s.Date)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return Update{Err: fmt.Sprintf("loading equipment states: %v", err)}
	}

	recipes, err := e.store.ListRecipes(ctx, s.EqpID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		e.logger.Warn("recipe lookup failed", "eqp_id", s.EqpID, "error", err)
		recipes = nil
	}
	trend, err := e.store.ListKPITrend(ctx, s.EqpID, s.Date, trendDays)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		e.logger.Warn("trend lookup failed", "eqp_id", s.EqpID, "error", err)
		trend = nil
	}

	text := analysis.FormatContext(analysis.ContextInput{
		Record:  *s.KPIRecord,
		KPI:     s.KPI,
		Reason:  s.AlarmReason,
		Lots:    lots,
		Events:  events,
		Recipes: recipes,
		Trend:   trend,
	})

	return Update{
		LotStates:   lots,
		EqpStates:   events,
		Recipes:     recipes,
		Trend:       trend,
		ContextText: strPtr(text),
	}
}

// candidatePayload is the JSON contract the root-cause prompt demands.
type candidatePayload struct {
	ProblemSummary string             `json:"problem_summary"`
	RootCauses     []models.RootCause `json:"root_causes"`
}

// analyzeRootCauses asks the model for 3-5 root-cause hypotheses. Parse or
// validation failures carry the raw response prefix and are not retried;
// one prompt gets one shot.
func (e *Engine) analyzeRootCauses(ctx context.Context, s State) Update {
	if s.ContextText == "" {
		return Update{Err: "no context text available for analysis"}
	}

	resp, err := e.complete(ctx, models.CompletionRequest{
		Prompt:      rootCausePrompt(s.ContextText),
		MaxTokens:   2048,
		Temperature: 0.2,
	})
	if err != nil {
		return Update{LLMCalls: 1, Err: fmt.Sprintf("root-cause analysis failed: %v", err)}
	}

	var payload candidatePayload
	if err := json.Unmarshal([]byte(extractJSON(resp)), &payload); err != nil {
		return Update{LLMCalls: 1, Err: fmt.Sprintf(
			"parsing root-cause response: %v (response prefix: %q)", err, truncate(resp, rawResponseLimit))}
	}
	if err := validateCandidates(payload.RootCauses); err != nil {
		return Update{LLMCalls: 1, Err: fmt.Sprintf(
			"invalid root-cause response: %v (response prefix: %q)", err, truncate(resp, rawResponseLimit))}
	}

	u := Update{RootCauses: payload.RootCauses, LLMCalls: 1}
	if payload.ProblemSummary != "" {
		u.ProblemSummary = strPtr(payload.ProblemSummary)
	}
	return u
}

func validateCandidates(causes []models.RootCause) error {
	if len(causes) == 0 {
		return errors.New("missing root_causes")
	}
	for i, c := range causes {
		if c.Cause == "" {
			return fmt.Errorf("candidate %d: missing cause", i)
		}
		if c.Evidence == "" {
			return fmt.Errorf("candidate %d: missing evidence", i)
		}
		if c.Probability < 0 || c.Probability > 100 {
			return fmt.Errorf("candidate %d: probability %d out of range", i, c.Probability)
		}
	}
	return nil
}

// applyChoice resolves which candidate the rest of the pipeline commits to.
// An externally supplied index is validated; without one the most probable
// candidate wins, first occurrence on ties.
func (e *Engine) applyChoice(_ context.Context, s State) Update {
	if len(s.RootCauses) == 0 {
		return Update{Err: "no root-cause candidates"}
	}

	idx := -1
	if s.SelectedIndex != nil {
		idx = *s.SelectedIndex
		if idx < 0 || idx >= len(s.RootCauses) {
			return Update{Err: fmt.Sprintf("invalid selection index %d (have %d candidates)", idx, len(s.RootCauses))}
		}
	} else {
		for i, c := range s.RootCauses {
			if idx == -1 || c.Probability > s.RootCauses[idx].Probability {
				idx = i
			}
		}
	}

	cause := s.RootCauses[idx]
	return Update{SelectedCause: &cause, SelectedIndex: intPtr(idx)}
}

// writeReport produces the final narrative report and the deterministic
// report id. The id depends only on (date, eqp, kpi) so re-running the same
// alarm yields the same id even when the report text differs.
func (e *Engine) writeReport(ctx context.Context, s State) Update {
	if s.SelectedCause == nil {
		return Update{Err: "no root cause selected"}
	}

	summary := s.ProblemSummary
	if summary == "" {
		summary = fallbackProblemSummary(s.KPIRecord, s.KPI)
	}

	report, err := e.complete(ctx, models.CompletionRequest{
		Prompt:      reportPrompt(summary, s.SelectedCause.Cause, s.SelectedCause.Evidence, s.ContextText),
		MaxTokens:   4096,
		Temperature: 0.3,
	})
	if err != nil {
		return Update{LLMCalls: 1, Err: fmt.Sprintf("generating final report: %v", err)}
	}

	reportID := fmt.Sprintf("report_%s_%s_%s", s.Date, s.EqpID, s.KPI)

	return Update{
		ProblemSummary: strPtr(summary),
		FinalReport:    strPtr(report),
		ReportID:       strPtr(reportID),
		LLMCalls:       1,
	}
}

// fallbackProblemSummary renders a templated summary when the model did not
// produce one alongside the candidates.
func fallbackProblemSummary(rec *models.KPIRecord, kpi string) string {
	var kpiName, unit string
	switch kpi {
	case models.KPIOEE:
		kpiName, unit = "OEE (Overall Equipment Effectiveness)", "%"
	case models.KPITHP:
		kpiName, unit = "처리량 (Throughput)", "개"
	case models.KPITAT:
		kpiName, unit = "처리 시간 (Turn Around Time)", "시간"
	default:
		kpiName, unit = "재공품 (Work In Process)", "개"
	}

	if rec == nil {
		return fmt.Sprintf("%s 지표에 문제가 발생했습니다. (상세 수치 없음)", kpiName)
	}

	target, actual := analysis.TargetActual(*rec, kpi)
	gap := actual - target
	gapPercent := 0.0
	if target != 0 {
		gapPercent = gap / target * 100
	}

	return fmt.Sprintf(`%s 지표에 문제가 발생했습니다.

- 목표치: %g%s
- 실제치: %g%s
- 차이: %+.2f%s (%+.1f%%)

장비 %s에서 %s에 발생한 문제입니다.`,
		kpiName, target, unit, actual, unit, gap, unit, gapPercent, rec.EqpID, rec.Date)
}

// summaryMetaLimit caps the problem-summary excerpt stored in report metadata.
const summaryMetaLimit = 200

// persistReport writes the report into the vector store. Persistence is a
// soft outcome: any failure logs a reason and leaves rag_saved false without
// halting the pipeline, since the caller already has the report text.
// An existing record with the same id is a success no-op, never an overwrite.
func (e *Engine) persistReport(ctx context.Context, s State) Update {
	if s.ReportID == "" || s.FinalReport == "" {
		return Update{Err: "no report to persist"}
	}

	if _, err := e.reports.Get(ctx, s.ReportID); err == nil {
		e.logger.Info("report already stored", "report_id", s.ReportID)
		return Update{RAGSaved: boolPtr(true)}
	} else if !errors.Is(err, reportstore.ErrReportNotFound) {
		e.logger.Warn("report existence check failed", "report_id", s.ReportID, "error", err)
		return Update{RAGSaved: boolPtr(false)}
	}

	embedding, err := e.embed(ctx, s.FinalReport)
	if err != nil {
		e.logger.Warn("report embedding failed", "report_id", s.ReportID, "error", err)
		return Update{RAGSaved: boolPtr(false)}
	}

	metadata := map[string]any{
		"date":            s.Date,
		"eqp_id":          s.EqpID,
		"kpi":             s.KPI,
		"alarm_flag":      1,
		"source":          "ai_analysis",
		"problem_summary": truncate(s.ProblemSummary, summaryMetaLimit),
	}
	if s.KPIRecord != nil {
		metadata["line_id"] = s.KPIRecord.LineID
		metadata["oper_id"] = s.KPIRecord.OperID
	}
	if s.SelectedCause != nil {
		metadata["selected_cause"] = s.SelectedCause.Cause
		metadata["cause_probability"] = s.SelectedCause.Probability
	}

	if err := e.reports.Add(ctx, s.ReportID, s.FinalReport, embedding, metadata); err != nil {
		e.logger.Warn("report insert failed", "report_id", s.ReportID, "error", err)
		return Update{RAGSaved: boolPtr(false)}
	}

	if _, err := e.reports.Get(ctx, s.ReportID); err != nil {
		e.logger.Warn("report verification failed", "report_id", s.ReportID, "error", err)
		return Update{RAGSaved: boolPtr(false)}
	}

	e.logger.Info("report persisted", "report_id", s.ReportID)
	return Update{RAGSaved: boolPtr(true)}
}

// lookupReport decides whether a relevant prior report exists for the
// question. An explicit date in the question short-circuits to an exact
// metadata lookup; otherwise the nearest neighbor by embedding distance
// decides. Lookup failures are soft, the answer stage copes with zero
// retrieved reports.
func (e *Engine) lookupReport(ctx context.Context, s State) Update {
	if strings.TrimSpace(s.Question) == "" {
		return Update{Err: "question text is required"}
	}

	if date, ok := dateparse.Extract(s.Question); ok {
		res, err := e.reports.GetByDate(ctx, date)
		if err == nil {
			res.Distance = 0
			return Update{
				ReportExists:   boolPtr(true),
				SimilarReports: []reportstore.Result{*res},
			}
		}
		if !errors.Is(err, reportstore.ErrReportNotFound) {
			e.logger.Warn("date lookup failed", "date", date, "error", err)
		}
	}

	embedding, err := e.embed(ctx, s.Question)
	if err != nil {
		e.logger.Warn("question embedding failed", "error", err)
		return Update{ReportExists: boolPtr(false)}
	}
	results, err := e.reports.Query(ctx, embedding, 1)
	if err != nil {
		e.logger.Warn("similarity search failed", "error", err)
		return Update{ReportExists: boolPtr(false)}
	}

	exists := len(results) > 0 && results[0].Distance < relevanceThreshold
	return Update{ReportExists: boolPtr(exists)}
}

// Result-count tiers for the answer stage.
const (
	smallResultCount = 3
	midResultCount   = 5
	largeResultCap   = 20
)

var (
	allKeywords  = []string{"전부", "모든", "모두", "전체"}
	manyKeywords = []string{"비교", "여러", "최근"}
)

// resultCount classifies how many reports the question wants grounded in.
func (e *Engine) resultCount(ctx context.Context, question string) int {
	for _, kw := range allKeywords {
		if strings.Contains(question, kw) {
			n, err := e.reports.Count(ctx)
			if err != nil || n <= 0 || n > largeResultCap {
				return largeResultCap
			}
			return n
		}
	}
	for _, kw := range manyKeywords {
		if strings.Contains(question, kw) {
			return midResultCount
		}
	}
	return smallResultCount
}

// answerQuestion grounds an answer in retrieved reports. Date-matched
// reports from the lookup stage are reused verbatim; otherwise a fresh
// similarity search runs with a question-dependent result count.
func (e *Engine) answerQuestion(ctx context.Context, s State) Update {
	reports := s.SimilarReports
	if len(reports) == 0 {
		k := e.resultCount(ctx, s.Question)
		if embedding, err := e.embed(ctx, s.Question); err != nil {
			e.logger.Warn("question embedding failed", "error", err)
		} else if results, err := e.reports.Query(ctx, embedding, k); err != nil {
			e.logger.Warn("similarity search failed", "error", err)
		} else {
			reports = results
		}
	}

	answer, err := e.complete(ctx, models.CompletionRequest{
		Prompt:      answerPrompt(s.Question, reports),
		MaxTokens:   2048,
		Temperature: 0.3,
	})
	if err != nil {
		return Update{LLMCalls: 1, Err: fmt.Sprintf("answer generation failed: %v", err)}
	}

	return Update{
		FinalAnswer:    strPtr(answer),
		SimilarReports: reports,
		LLMCalls:       1,
	}
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
