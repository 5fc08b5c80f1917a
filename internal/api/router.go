// Package api wires the HTTP surface of the triage service.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	mw "github.com/jaeyoon-song/fabsight/internal/api/middleware"
	"github.com/jaeyoon-song/fabsight/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	RateLimit *mw.RateLimit

	HealthHandler http.HandlerFunc

	AlarmAnalyzeHandler http.HandlerFunc
	AlarmPhase1Handler  http.HandlerFunc
	AlarmSelectHandler  http.HandlerFunc
	LatestAlarmHandler  http.HandlerFunc

	QuestionHandler http.HandlerFunc

	ListReportsHandler  http.HandlerFunc
	GetReportHandler    http.HandlerFunc
	DeleteReportHandler http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	// Public health check
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))

	// Rate-limited routes
	r.Group(func(r chi.Router) {
		if deps.RateLimit != nil {
			r.Use(deps.RateLimit.Limit)
		}

		r.Post("/api/v1/alarm/analyze", orNotImplemented(deps.AlarmAnalyzeHandler))
		r.Post("/api/v1/alarm/analyze/phase1", orNotImplemented(deps.AlarmPhase1Handler))
		r.Post("/api/v1/alarm/select", orNotImplemented(deps.AlarmSelectHandler))
		r.Get("/api/v1/alarm/latest", orNotImplemented(deps.LatestAlarmHandler))

		r.Post("/api/v1/question", orNotImplemented(deps.QuestionHandler))

		r.Get("/api/v1/reports", orNotImplemented(deps.ListReportsHandler))
		r.Get("/api/v1/reports/{reportID}", orNotImplemented(deps.GetReportHandler))
		r.Delete("/api/v1/reports/{reportID}", orNotImplemented(deps.DeleteReportHandler))
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
