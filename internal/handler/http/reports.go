package http

import (
	"log/slog"
	"net/http"

	"github.com/AlejandroAndrade98/embipos/internal/domain"
	"github.com/AlejandroAndrade98/embipos/internal/service"
	"github.com/AlejandroAndrade98/embipos/pkg/httputil"
	"github.com/AlejandroAndrade98/embipos/pkg/validator"
)

// ReportHandler serves sales reports and goals.
type ReportHandler struct {
	reports *service.ReportService
	goals   *service.GoalsService
	logger  *slog.Logger
}

// NewReportHandler creates a new report HTTP handler.
func NewReportHandler(reports *service.ReportService, goals *service.GoalsService, logger *slog.Logger) *ReportHandler {
	return &ReportHandler{reports: reports, goals: goals, logger: logger}
}

// Daily handles GET /api/v1/reports/daily?date=
func (h *ReportHandler) Daily(w http.ResponseWriter, r *http.Request) {
	op, ok := operator(w, r)
	if !ok {
		return
	}

	rep, err := h.reports.Daily(r.Context(), op, r.URL.Query().Get("date"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, rep)
}

// Range handles GET /api/v1/reports/range?from=&to=
func (h *ReportHandler) Range(w http.ResponseWriter, r *http.Request) {
	op, ok := operator(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	rep, err := h.reports.Range(r.Context(), op, q.Get("from"), q.Get("to"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, rep)
}

// Rows handles GET /api/v1/reports/rows?from=&to=
func (h *ReportHandler) Rows(w http.ResponseWriter, r *http.Request) {
	op, ok := operator(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	rows, err := h.reports.Rows(r.Context(), op, q.Get("from"), q.Get("to"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, rows)
}

// GetGoals handles GET /api/v1/goals
func (h *ReportHandler) GetGoals(w http.ResponseWriter, r *http.Request) {
	op, ok := operator(w, r)
	if !ok {
		return
	}

	g, err := h.goals.Get(r.Context(), op)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, g)
}

// UpdateGoals handles PUT /api/v1/goals
func (h *ReportHandler) UpdateGoals(w http.ResponseWriter, r *http.Request) {
	op, ok := operator(w, r)
	if !ok {
		return
	}

	var req domain.GoalsPatch
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	g, err := h.goals.Update(r.Context(), op, req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, g)
}

// Progress handles GET /api/v1/goals/progress
func (h *ReportHandler) Progress(w http.ResponseWriter, r *http.Request) {
	op, ok := operator(w, r)
	if !ok {
		return
	}

	p, err := h.goals.Progress(r.Context(), op)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, p)
}
