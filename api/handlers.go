/*
handlers.go - HTTP API handlers for the performance monitoring system

PURPOSE:
  Exposes the progress-tracking engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Years:
    GET    /api/years                    List financial years
    GET    /api/years/active             The single active financial year
    POST   /api/years                    Create a financial year
  Dashboard:
    GET    /api/dashboard                KPA cards + summary for a year
    GET    /api/kpas/{id}/drilldown      Per-item rows for one KPA
  Progress:
    GET    /api/targets/{id}/updates     Update history for a target
    GET    /api/targets/{id}/status      Computed RAG/YTD/forecast
    POST   /api/targets/{id}/updates     Save a draft update
    POST   /api/updates/{id}/submit      Submit for approval
    POST   /api/updates/{id}/approve     Approve a submitted update
    POST   /api/updates/{id}/reject      Return for revision
  Finance:
    GET    /api/items/{id}/costlines     Cost lines for a plan item
    POST   /api/items/{id}/costlines     Create or update a cost line

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 401/403: Authentication / capability failures (auth.go)
  - 404: Entity not found or archived
  - 409: Workflow conflict (approving an unsubmitted draft)
  - 422: Mandatory evidence missing
  - 423: Reporting period locked (quarter closed past grace)
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - auth.go: Authentication middleware
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/BigAlzz/smon/fiscal"
	"github.com/BigAlzz/smon/plan"
	"github.com/BigAlzz/smon/progress"
	"github.com/BigAlzz/smon/rollup"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Store is the persistence surface the handlers need. Both the SQLite
// and in-memory stores satisfy it.
type Store interface {
	progress.Store
	rollup.Store

	ActiveFinancialYear(ctx context.Context) (*fiscal.FinancialYear, error)
	ListFinancialYears(ctx context.Context) ([]fiscal.FinancialYear, error)
	SaveFinancialYear(ctx context.Context, fy fiscal.FinancialYear) error
	SaveCostLine(ctx context.Context, cl plan.CostLine) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store      Store
	Service    *progress.Service
	Aggregator *rollup.Aggregator
	Clock      fiscal.Clock
	Log        *slog.Logger
}

// NewHandler wires handlers over the store and workflow service.
func NewHandler(store Store, svc *progress.Service, clock fiscal.Clock) *Handler {
	if clock == nil {
		clock = fiscal.SystemClock{}
	}
	return &Handler{
		Store:      store,
		Service:    svc,
		Aggregator: rollup.NewAggregator(store),
		Clock:      clock,
		Log:        slog.Default(),
	}
}

// =============================================================================
// FINANCIAL YEAR HANDLERS
// =============================================================================

// ListYears returns all financial years, newest first.
func (h *Handler) ListYears(w http.ResponseWriter, r *http.Request) {
	years, err := h.Store.ListFinancialYears(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list financial years", err)
		return
	}

	dtos := make([]FinancialYearDTO, len(years))
	for i, fy := range years {
		dtos[i] = toYearDTO(fy)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetActiveYear returns the single active financial year.
func (h *Handler) GetActiveYear(w http.ResponseWriter, r *http.Request) {
	fy, err := h.Store.ActiveFinancialYear(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get active financial year", err)
		return
	}
	if fy == nil {
		writeError(w, http.StatusNotFound, "No active financial year", nil)
		return
	}
	writeJSON(w, http.StatusOK, toYearDTO(*fy))
}

// CreateYear creates a South African financial year from its start year.
func (h *Handler) CreateYear(w http.ResponseWriter, r *http.Request) {
	var req CreateYearRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.StartYear < 2000 || req.StartYear > 2100 {
		writeError(w, http.StatusBadRequest, "start_year out of range", nil)
		return
	}

	fy := fiscal.NewSAFinancialYear(req.StartYear)
	fy.ID = plan.NewID()
	fy.Active = req.IsActive
	fy.Description = req.Description

	if err := h.Store.SaveFinancialYear(r.Context(), fy); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save financial year", err)
		return
	}
	writeJSON(w, http.StatusCreated, toYearDTO(fy))
}

// =============================================================================
// DASHBOARD HANDLERS
// =============================================================================

// GetDashboard returns the KPA cards and summary for a financial year.
// Query params: year (default: active year), org_unit, as_of (default: today).
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	fy, err := h.resolveYear(ctx, r.URL.Query().Get("year"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to resolve financial year", err)
		return
	}
	if fy == nil {
		writeError(w, http.StatusNotFound, "No active financial year", nil)
		return
	}

	asOf, ok := h.resolveAsOf(w, r.URL.Query().Get("as_of"))
	if !ok {
		return
	}

	dash, err := h.Aggregator.DashboardFor(ctx, *fy, r.URL.Query().Get("org_unit"), asOf)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build dashboard", err)
		return
	}
	writeJSON(w, http.StatusOK, toDashboardDTO(dash))
}

// GetDrilldown returns per-item rows for one KPA.
func (h *Handler) GetDrilldown(w http.ResponseWriter, r *http.Request) {
	kpaID := plan.KPAID(chi.URLParam(r, "id"))

	asOf, ok := h.resolveAsOf(w, r.URL.Query().Get("as_of"))
	if !ok {
		return
	}

	dd, err := h.Aggregator.DrilldownFor(r.Context(), kpaID, asOf)
	if err != nil {
		if progress.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "KPA not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to build drilldown", err)
		return
	}
	writeJSON(w, http.StatusOK, toDrilldownDTO(dd))
}

// =============================================================================
// PROGRESS UPDATE HANDLERS
// =============================================================================

// ListTargetUpdates returns the update history for a target within its
// financial year.
func (h *Handler) ListTargetUpdates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	targetID := plan.TargetID(chi.URLParam(r, "id"))

	fy, err := h.Store.FinancialYearForTarget(ctx, targetID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to resolve financial year", err)
		return
	}
	if fy == nil {
		writeError(w, http.StatusNotFound, "Target not found", nil)
		return
	}

	updates, err := h.Store.ListUpdates(ctx, targetID, fy.Start, fy.End)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list updates", err)
		return
	}

	dtos := make([]ProgressUpdateDTO, len(updates))
	for i, u := range updates {
		dtos[i] = toUpdateDTO(u)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetTargetStatus returns the computed RAG, YTD figures, and forecast for
// one target.
func (h *Handler) GetTargetStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	targetID := plan.TargetID(chi.URLParam(r, "id"))

	target, err := h.Store.GetTarget(ctx, targetID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get target", err)
		return
	}
	if target == nil || !target.State.IsActive() {
		writeError(w, http.StatusNotFound, "Target not found", nil)
		return
	}

	fy, err := h.Store.FinancialYearForTarget(ctx, targetID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to resolve financial year", err)
		return
	}
	if fy == nil {
		writeError(w, http.StatusNotFound, "Target has no financial year", nil)
		return
	}

	asOf, ok := h.resolveAsOf(w, r.URL.Query().Get("as_of"))
	if !ok {
		return
	}

	updates, err := h.Store.ListUpdates(ctx, targetID, fy.Start, fiscal.MinDate(fy.End, asOf))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list updates", err)
		return
	}

	ytdTarget := progress.YTDTargetValue(*target, *fy, asOf)
	ytdActual := progress.SumActualsYTD(updates, *fy, asOf)

	writeJSON(w, http.StatusOK, TargetStatusDTO{
		TargetID:  string(target.ID),
		Name:      target.Name,
		AsOf:      asOf.String(),
		RAG:       string(progress.TargetRAG(*target, updates, *fy, asOf)),
		YTDTarget: ytdTarget.String(),
		YTDActual: ytdActual.String(),
		Percent:   progress.ComputePercent(ytdActual, ytdTarget).StringFixed(2),
		Variance:  progress.VarianceAbsolute(ytdActual, ytdTarget).String(),
		Forecast:  progress.ComputeForecastValue(*target, updates, ytdActual, *fy, asOf).StringFixed(2),
	})
}

// SaveDraft creates or replaces the draft update for a reporting period.
func (h *Handler) SaveDraft(w http.ResponseWriter, r *http.Request) {
	targetID := plan.TargetID(chi.URLParam(r, "id"))

	var req SaveDraftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	in, err := h.draftInput(r.Context(), targetID, req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid draft payload", err)
		return
	}

	saved, err := h.Service.SaveDraft(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUpdateDTO(saved))
}

func (h *Handler) draftInput(ctx context.Context, targetID plan.TargetID, req SaveDraftRequest) (progress.DraftInput, error) {
	periodStart, err := fiscal.ParseDate(req.PeriodStart)
	if err != nil {
		return progress.DraftInput{}, err
	}
	periodEnd, err := fiscal.ParseDate(req.PeriodEnd)
	if err != nil {
		return progress.DraftInput{}, err
	}
	actual, err := parseDecimalField(req.ActualValue)
	if err != nil {
		return progress.DraftInput{}, err
	}

	var forecast *decimal.Decimal
	if req.ForecastValue != nil && *req.ForecastValue != "" {
		v, err := decimal.NewFromString(*req.ForecastValue)
		if err != nil {
			return progress.DraftInput{}, err
		}
		forecast = &v
	}

	var actor plan.UserID
	if p, ok := PrincipalFrom(ctx); ok {
		actor = p.UserID
	}

	return progress.DraftInput{
		TargetID:           targetID,
		PeriodType:         plan.PeriodType(req.PeriodType),
		PeriodStart:        periodStart,
		PeriodEnd:          periodEnd,
		PeriodName:         req.PeriodName,
		ActualValue:        actual,
		Narrative:          req.Narrative,
		EvidenceURLs:       req.EvidenceURLs,
		EvidenceText:       req.EvidenceText,
		RiskRating:         plan.RiskRating(req.RiskRating),
		Issues:             req.Issues,
		CorrectiveActions:  req.CorrectiveActions,
		ForecastValue:      forecast,
		ForecastConfidence: plan.ForecastConfidence(req.ForecastConfidence),
		Actor:              actor,
	}, nil
}

// SubmitUpdate marks a draft as submitted.
func (h *Handler) SubmitUpdate(w http.ResponseWriter, r *http.Request) {
	id := plan.UpdateID(chi.URLParam(r, "id"))
	actor := actorFrom(r.Context())

	saved, err := h.Service.Submit(r.Context(), id, actor, nil)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUpdateDTO(saved))
}

// ApproveUpdate records approval on a submitted update.
func (h *Handler) ApproveUpdate(w http.ResponseWriter, r *http.Request) {
	id := plan.UpdateID(chi.URLParam(r, "id"))

	var req ReviewRequest
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}

	saved, err := h.Service.Approve(r.Context(), id, actorFrom(r.Context()), req.Comments)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUpdateDTO(saved))
}

// RejectUpdate returns a submitted update to draft state.
func (h *Handler) RejectUpdate(w http.ResponseWriter, r *http.Request) {
	id := plan.UpdateID(chi.URLParam(r, "id"))

	var req ReviewRequest
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}

	saved, err := h.Service.Reject(r.Context(), id, actorFrom(r.Context()), req.Comments)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUpdateDTO(saved))
}

// =============================================================================
// COST LINE HANDLERS
// =============================================================================

// ListCostLines returns cost lines for a plan item.
func (h *Handler) ListCostLines(w http.ResponseWriter, r *http.Request) {
	itemID := plan.PlanItemID(chi.URLParam(r, "id"))

	lines, err := h.Store.ListCostLines(r.Context(), itemID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list cost lines", err)
		return
	}

	dtos := make([]CostLineDTO, len(lines))
	for i, cl := range lines {
		dtos[i] = toCostLineDTO(cl)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SaveCostLine creates or updates a cost line on a plan item.
func (h *Handler) SaveCostLine(w http.ResponseWriter, r *http.Request) {
	itemID := plan.PlanItemID(chi.URLParam(r, "id"))

	var req SaveCostLineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	cl, err := costLineFrom(itemID, req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid cost line payload", err)
		return
	}

	if err := h.Store.SaveCostLine(r.Context(), cl); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save cost line", err)
		return
	}
	writeJSON(w, http.StatusCreated, toCostLineDTO(cl))
}

func costLineFrom(itemID plan.PlanItemID, req SaveCostLineRequest) (plan.CostLine, error) {
	budgeted, err := parseDecimalField(req.BudgetedAmount)
	if err != nil {
		return plan.CostLine{}, err
	}
	committed, err := parseDecimalField(req.CommittedAmount)
	if err != nil {
		return plan.CostLine{}, err
	}
	actual, err := parseDecimalField(req.ActualSpend)
	if err != nil {
		return plan.CostLine{}, err
	}
	start, err := fiscal.ParseDate(req.CostPeriodStart)
	if err != nil {
		return plan.CostLine{}, err
	}
	end, err := fiscal.ParseDate(req.CostPeriodEnd)
	if err != nil {
		return plan.CostLine{}, err
	}

	id := plan.CostLineID(req.ID)
	if id == "" {
		id = plan.CostLineID(plan.NewID())
	}

	return plan.CostLine{
		ID:                  id,
		PlanItemID:          itemID,
		CostType:            plan.CostType(req.CostType),
		Description:         req.Description,
		BudgetedAmount:      budgeted,
		CommittedAmount:     committed,
		ActualSpend:         actual,
		CostPeriodStart:     start,
		CostPeriodEnd:       end,
		FundingSource:       plan.FundingSource(req.FundingSource),
		PurchaseOrderNumber: req.PurchaseOrderNumber,
		SupplierVendor:      req.SupplierVendor,
		State:               plan.StateActive,
	}, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// resolveYear looks up the named year, or the active one when empty.
func (h *Handler) resolveYear(ctx context.Context, id string) (*fiscal.FinancialYear, error) {
	if id == "" {
		return h.Store.ActiveFinancialYear(ctx)
	}
	return h.Store.GetFinancialYear(ctx, id)
}

// resolveAsOf parses the as_of query param, defaulting to today. Writes
// a 400 and returns false on a malformed date.
func (h *Handler) resolveAsOf(w http.ResponseWriter, raw string) (fiscal.Date, bool) {
	if raw == "" {
		return h.Clock.Today(), true
	}
	d, err := fiscal.ParseDate(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid as_of date", err)
		return fiscal.Date{}, false
	}
	return d, true
}

func actorFrom(ctx context.Context) plan.UserID {
	if p, ok := PrincipalFrom(ctx); ok {
		return p.UserID
	}
	return ""
}

// writeServiceError maps workflow errors onto HTTP statuses.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	var locked *progress.PeriodLockedError
	switch {
	case errors.As(err, &locked):
		writeJSON(w, http.StatusLocked, ErrorResponse{
			Error:      "Reporting period is locked",
			Details:    locked.Error(),
			QuarterEnd: locked.QuarterEnd.String(),
			GraceDays:  locked.GraceDays,
		})
	case errors.Is(err, progress.ErrEvidenceRequired):
		writeError(w, http.StatusUnprocessableEntity, "Evidence is required based on sustained Amber/Red status", nil)
	case errors.Is(err, progress.ErrValidation):
		writeError(w, http.StatusBadRequest, "Validation failed", err)
	case errors.Is(err, progress.ErrNotSubmitted):
		writeError(w, http.StatusConflict, "Update has not been submitted", nil)
	case progress.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	default:
		h.Log.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
