package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jaeyoon-song/fabsight/internal/cache"
	"github.com/jaeyoon-song/fabsight/internal/config"
	"github.com/jaeyoon-song/fabsight/internal/reportstore"
	"github.com/jaeyoon-song/fabsight/internal/store"
	"github.com/jaeyoon-song/fabsight/pkg/models"
)

// ErrSessionNotFound is returned by RunAlarmAnalysisPhase2 when the session
// id is unknown or its TTL has elapsed.
var ErrSessionNotFound = errors.New("analysis session not found")

// trendDays is the KPI history window included in the analysis context.
const trendDays = 7

// Engine sequences the triage stages. One Engine serves all requests;
// per-run state lives in State values, never on the Engine.
type Engine struct {
	store   store.Store
	reports reportstore.Store
	ai      models.AIProvider
	cache   cache.Cache
	cfg     config.WorkflowConfig
	timeout time.Duration
	logger  *slog.Logger
}

func NewEngine(
	st store.Store,
	reports reportstore.Store,
	provider models.AIProvider,
	c cache.Cache,
	cfg config.WorkflowConfig,
	inferenceTimeout time.Duration,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		store:   st,
		reports: reports,
		ai:      provider,
		cache:   c,
		cfg:     cfg,
		timeout: inferenceTimeout,
		logger:  logger,
	}
}

type stage func(ctx context.Context, s State) Update

// run advances the state through the given stages. A stage that sets Err
// stops the sequence; later stages never see an errored state.
func (e *Engine) run(ctx context.Context, s State, stages ...stage) State {
	for _, st := range stages {
		if s.Err != "" {
			return s
		}
		s.apply(st(ctx, s))
	}
	return s
}

// complete wraps a model completion call in the configured inference timeout.
func (e *Engine) complete(ctx context.Context, req models.CompletionRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return e.ai.Complete(ctx, req)
}

// embed wraps an embedding call in the configured inference timeout.
func (e *Engine) embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return e.ai.Embed(ctx, text)
}

// RunAlarmAnalysis executes the single-phase alarm route. With all three
// identity fields supplied the completed state is served from and written
// to the result cache. Latest-alarm runs (empty identity) bypass the cache
// so every invocation reflects current data.
func (e *Engine) RunAlarmAnalysis(ctx context.Context, date, eqpID, kpi string) State {
	cacheable := date != "" && eqpID != "" && kpi != ""
	key := cache.AnalysisKey(date, eqpID, kpi)

	if cacheable {
		if s, ok := e.cachedState(ctx, key); ok {
			e.logger.Info("analysis served from cache", "date", date, "eqp_id", eqpID, "kpi", kpi)
			return s
		}
	}

	s := e.run(ctx, NewAlarmState(date, eqpID, kpi),
		e.loadAlarmKPI,
		e.fetchContext,
		e.analyzeRootCauses,
		e.applyChoice,
		e.writeReport,
		e.persistReport,
	)

	if cacheable && s.Err == "" && s.RAGSaved {
		e.cacheState(ctx, key, s, e.cfg.AnalysisCacheTTL)
	}
	return s
}

// RunAlarmAnalysisPhase1 runs the alarm route up to candidate generation and
// parks the state in the session cache for a human to pick a cause. The
// returned session id keys the parked state for RunAlarmAnalysisPhase2.
func (e *Engine) RunAlarmAnalysisPhase1(ctx context.Context, date, eqpID, kpi string) (string, State, error) {
	s := e.run(ctx, NewAlarmState(date, eqpID, kpi),
		e.loadAlarmKPI,
		e.fetchContext,
		e.analyzeRootCauses,
	)
	if s.Err != "" {
		return "", s, nil
	}

	sessionID := uuid.NewString()
	data, err := json.Marshal(s)
	if err != nil {
		return "", s, fmt.Errorf("serializing session state: %w", err)
	}
	if err := e.cache.Set(ctx, cache.SessionKey(sessionID), data, e.cfg.SessionTTL); err != nil {
		return "", s, fmt.Errorf("saving session state: %w", err)
	}

	e.logger.Info("analysis session created", "session_id", sessionID, "candidates", len(s.RootCauses))
	return sessionID, s, nil
}

// RunAlarmAnalysisPhase2 resumes a parked session with the operator's
// selection and completes the pipeline. The session entry is deleted only
// after an error-free run; a failed phase 2 leaves it intact so the same
// session can be retried within its TTL.
func (e *Engine) RunAlarmAnalysisPhase2(ctx context.Context, sessionID string, selectedIndex *int) (State, error) {
	key := cache.SessionKey(sessionID)

	data, ok, err := e.cache.Get(ctx, key)
	if err != nil {
		return State{}, fmt.Errorf("loading session state: %w", err)
	}
	if !ok {
		return State{}, fmt.Errorf("%w: session %s expired or unknown, run phase 1 again", ErrSessionNotFound, sessionID)
	}

	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return State{}, fmt.Errorf("decoding session state: %w", err)
	}
	s.SelectedIndex = selectedIndex

	s = e.run(ctx, s,
		e.applyChoice,
		e.writeReport,
		e.persistReport,
	)

	if s.Err == "" {
		if err := e.cache.Delete(ctx, key); err != nil {
			e.logger.Warn("session cleanup failed", "session_id", sessionID, "error", err)
		}
	}
	return s, nil
}

// RunQuestionAnswer executes the question route. Completed answers are
// cached by a hash of the normalized question text.
func (e *Engine) RunQuestionAnswer(ctx context.Context, question string) State {
	key := cache.QuestionKey(question)

	if s, ok := e.cachedState(ctx, key); ok {
		e.logger.Info("answer served from cache")
		return s
	}

	s := e.run(ctx, NewQuestionState(question),
		e.lookupReport,
		e.answerQuestion,
	)

	if s.Err == "" {
		e.cacheState(ctx, key, s, e.cfg.QACacheTTL)
	}
	return s
}

// LatestAlarm exposes the most recent alarm identity for the API layer.
func (e *Engine) LatestAlarm(ctx context.Context) (*store.LatestAlarm, error) {
	return e.store.GetLatestAlarm(ctx)
}

func (e *Engine) cachedState(ctx context.Context, key string) (State, bool) {
	data, ok, err := e.cache.Get(ctx, key)
	if err != nil {
		e.logger.Warn("cache read failed", "key", key, "error", err)
		return State{}, false
	}
	if !ok {
		return State{}, false
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		e.logger.Warn("cache entry corrupt", "key", key, "error", err)
		return State{}, false
	}
	return s, true
}

func (e *Engine) cacheState(ctx context.Context, key string, s State, ttl time.Duration) {
	data, err := json.Marshal(s)
	if err != nil {
		e.logger.Warn("cache encode failed", "key", key, "error", err)
		return
	}
	if err := e.cache.Set(ctx, key, data, ttl); err != nil {
		e.logger.Warn("cache write failed", "key", key, "error", err)
	}
}
