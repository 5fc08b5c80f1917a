package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jaeyoon-song/fabsight/internal/api/response"
	"github.com/jaeyoon-song/fabsight/internal/reportstore"
)

// NewListReportsHandler returns the handler for GET /api/v1/reports.
func NewListReportsHandler(reports reportstore.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		all, err := reports.All(r.Context())
		if err != nil {
			response.Error(w, http.StatusBadGateway, "REPORT_STORE_ERROR", err.Error(), nil)
			return
		}
		if all == nil {
			all = []reportstore.Result{}
		}
		response.Collection(w, all, response.PaginationMeta{
			Page:  1,
			Limit: len(all),
			Total: len(all),
		})
	}
}

// NewGetReportHandler returns the handler for GET /api/v1/reports/{reportID}.
func NewGetReportHandler(reports reportstore.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "reportID")
		result, err := reports.Get(r.Context(), id)
		if err != nil {
			if errors.Is(err, reportstore.ErrReportNotFound) {
				response.Error(w, http.StatusNotFound, "REPORT_NOT_FOUND",
					"No report with id "+id, nil)
				return
			}
			response.Error(w, http.StatusBadGateway, "REPORT_STORE_ERROR", err.Error(), nil)
			return
		}
		response.JSON(w, result)
	}
}

// NewDeleteReportHandler returns the handler for DELETE /api/v1/reports/{reportID}.
func NewDeleteReportHandler(reports reportstore.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "reportID")
		if _, err := reports.Get(r.Context(), id); err != nil {
			if errors.Is(err, reportstore.ErrReportNotFound) {
				response.Error(w, http.StatusNotFound, "REPORT_NOT_FOUND",
					"No report with id "+id, nil)
				return
			}
			response.Error(w, http.StatusBadGateway, "REPORT_STORE_ERROR", err.Error(), nil)
			return
		}
		if err := reports.Delete(r.Context(), id); err != nil {
			response.Error(w, http.StatusBadGateway, "REPORT_STORE_ERROR", err.Error(), nil)
			return
		}
		response.JSON(w, map[string]string{"deleted": id})
	}
}
