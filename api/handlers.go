/*
handlers.go - HTTP API handlers for the compensation engine

PURPOSE:
  Exposes the CTC engine via REST. Handles HTTP request/response, JSON
  serialization, and delegates to the lifecycle service. The handlers
  hold no business logic: every rule lives in the comp package.

ENDPOINTS:
  Resolution:
    POST   /api/preview                          Resolve, nothing persisted

  Structures:
    POST   /api/employees/{id}/structures        Submit
    GET    /api/employees/{id}/structures        History (effective month asc)
    GET    /api/employees/{id}/structures/current
    GET    /api/structures/{id}
    GET    /api/structures/{id}/comparison       Change vs superseded structure
    GET    /api/structures/{id}/letter           CTC annexure PDF
    POST   /api/structures/{id}/submit           Draft -> pending_approval
    POST   /api/structures/{id}/approve
    POST   /api/structures/{id}/reject
    GET    /api/structures/pending
    GET    /api/stats

  Catalog (admin):
    GET    /api/catalog
    PUT    /api/catalog

  Directory (read-only passthrough):
    GET    /api/employees
    GET    /api/employees/{id}

ERROR HANDLING:
  Errors map to status by taxonomy, using the comp classification
  helpers:
  - 400: validation and reconciliation errors (submitter's to fix)
  - 401: missing/denied authorization decision
  - 404: unknown structure/employee, no current structure
  - 409: state conflicts, duplicate month, lost current-pointer CAS
  - 500: catalog configuration errors (logged distinctly - a deployment
         bug, not the submitter's fault) and everything else

AUTHORIZATION:
  The external auth layer decides who may approve; these handlers only
  forward its verdict. Deployments front this API with their own
  authentication middleware.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - letter.go: PDF generation
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/warp/comp-engine/comp"
	"github.com/warp/comp-engine/directory"
	"github.com/warp/comp-engine/factory"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service      *comp.Service
	Directory    directory.Directory
	CatalogStore comp.CatalogStore // optional; persists admin catalog changes
	Log          zerolog.Logger
}

// NewHandler creates a new handler.
func NewHandler(service *comp.Service, dir directory.Directory, catalogStore comp.CatalogStore, log zerolog.Logger) *Handler {
	return &Handler{
		Service:      service,
		Directory:    dir,
		CatalogStore: catalogStore,
		Log:          log.With().Str("component", "api").Logger(),
	}
}

// =============================================================================
// RESOLUTION
// =============================================================================

// Preview resolves a structure without persisting anything.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	var req PreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	in := comp.PreviewInput{
		Overrides:              toOverrides(req.Overrides),
		AnnualCTC:              comp.NewMoney(req.AnnualCTC),
		RetentionBonus:         comp.NewMoney(req.RetentionBonus),
		RetentionVestingMonths: req.RetentionVestingMonths,
	}
	if req.Catalog != nil {
		catalog, err := factory.FromJSON(*req.Catalog)
		if err != nil {
			h.writeDomainError(w, err)
			return
		}
		in.Catalog = &catalog
	}

	resolved, err := h.Service.Preview(in)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResolvedDTO(resolved))
}

// =============================================================================
// STRUCTURE LIFECYCLE
// =============================================================================

// SubmitStructure creates a structure for the employee in the URL.
func (h *Handler) SubmitStructure(w http.ResponseWriter, r *http.Request) {
	employeeID := comp.EmployeeID(chi.URLParam(r, "id"))

	if _, err := h.Directory.Get(r.Context(), employeeID); err != nil {
		if errors.Is(err, directory.ErrEmployeeNotFound) {
			writeError(w, http.StatusNotFound, "employee not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "directory lookup failed", err)
		return
	}

	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	month, err := comp.ParseMonth(req.EffectiveMonth)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid effective_month", err)
		return
	}

	structure, err := h.Service.Submit(r.Context(), comp.SubmitInput{
		EmployeeID:             employeeID,
		AnnualCTC:              comp.NewMoney(req.AnnualCTC),
		RetentionBonus:         comp.NewMoney(req.RetentionBonus),
		RetentionVestingMonths: req.RetentionVestingMonths,
		EffectiveMonth:         month,
		Overrides:              toOverrides(req.Overrides),
		Remarks:                req.Remarks,
		SubmittedBy:            req.SubmittedBy,
		AsDraft:                req.AsDraft,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toStructureDTO(structure))
}

// SubmitDraft moves a staged draft to pending approval.
func (h *Handler) SubmitDraft(w http.ResponseWriter, r *http.Request) {
	id := comp.StructureID(chi.URLParam(r, "id"))

	var req DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	structure, err := h.Service.SubmitForApproval(r.Context(), id, req.DecidedBy)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStructureDTO(structure))
}

// ApproveStructure approves a pending structure and makes it current.
func (h *Handler) ApproveStructure(w http.ResponseWriter, r *http.Request) {
	id := comp.StructureID(chi.URLParam(r, "id"))

	var req DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	structure, err := h.Service.Approve(r.Context(), id, h.authFor(req), req.Remarks)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStructureDTO(structure))
}

// RejectStructure rejects a pending structure. Reason is required.
func (h *Handler) RejectStructure(w http.ResponseWriter, r *http.Request) {
	id := comp.StructureID(chi.URLParam(r, "id"))

	var req DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	structure, err := h.Service.Reject(r.Context(), id, h.authFor(req), req.Reason)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStructureDTO(structure))
}

// authFor builds the Authorization from the decision request. The auth
// verdict itself comes from upstream middleware in a real deployment;
// here a named actor is treated as authorized, which keeps the engine's
// contract (refuse when no decision was supplied) intact.
func (h *Handler) authFor(req DecisionRequest) comp.Authorization {
	return comp.Authorization{
		ActorID: req.DecidedBy,
		Role:    req.Role,
		Allowed: req.DecidedBy != "",
	}
}

// =============================================================================
// READS
// =============================================================================

// GetStructure returns one structure by id.
func (h *Handler) GetStructure(w http.ResponseWriter, r *http.Request) {
	id := comp.StructureID(chi.URLParam(r, "id"))

	structure, err := h.Service.Get(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStructureDTO(structure))
}

// GetCurrentStructure returns the employee's structure presently in effect.
func (h *Handler) GetCurrentStructure(w http.ResponseWriter, r *http.Request) {
	employeeID := comp.EmployeeID(chi.URLParam(r, "id"))

	structure, err := h.Service.GetCurrent(r.Context(), employeeID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStructureDTO(structure))
}

// GetHistory returns every structure version for the employee.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	employeeID := comp.EmployeeID(chi.URLParam(r, "id"))

	history, err := h.Service.GetHistory(r.Context(), employeeID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	dtos := make([]StructureDTO, 0, len(history))
	for _, s := range history {
		dtos = append(dtos, toStructureDTO(s))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetComparison returns the monthly-gross change against the superseded
// structure.
func (h *Handler) GetComparison(w http.ResponseWriter, r *http.Request) {
	id := comp.StructureID(chi.URLParam(r, "id"))

	cmp, err := h.Service.CompareToPrevious(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ComparisonDTO{
		Applicable:      cmp.Applicable,
		OldGrossMonthly: cmp.OldGrossMonthly.Float64(),
		NewGrossMonthly: cmp.NewGrossMonthly.Float64(),
		PercentChange:   cmp.PercentChange,
	})
}

// ListPending returns all structures awaiting a decision.
func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	pending, err := h.Service.ListPending(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	dtos := make([]StructureDTO, 0, len(pending))
	for _, s := range pending {
		dtos = append(dtos, toStructureDTO(s))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetStats returns the approval-queue totals.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Service.Stats(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// =============================================================================
// CATALOG ADMIN
// =============================================================================

// GetCatalog returns the current process-wide catalog.
func (h *Handler) GetCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, factory.ToJSON(h.Service.Catalog()))
}

// ReplaceCatalog swaps the process-wide catalog. The replacement must
// keep every mandatory component (dropping one is a config bug, not an
// editable choice).
func (h *Handler) ReplaceCatalog(w http.ResponseWriter, r *http.Request) {
	var cfg factory.CatalogJSON
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	catalog, err := factory.FromJSON(cfg)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if err := catalog.CheckMandatory(factory.MandatoryKeys()); err != nil {
		h.writeDomainError(w, err)
		return
	}
	if err := h.Service.ReplaceCatalog(catalog); err != nil {
		h.writeDomainError(w, err)
		return
	}

	if h.CatalogStore != nil {
		raw, _ := json.Marshal(factory.ToJSON(catalog))
		if err := h.CatalogStore.SaveCatalog(r.Context(), string(raw)); err != nil {
			// The in-process swap already happened; persistence failure
			// only risks losing the change on restart.
			h.Log.Error().Err(err).Msg("failed to persist catalog")
		}
	}

	writeJSON(w, http.StatusOK, factory.ToJSON(h.Service.Catalog()))
}

// =============================================================================
// DIRECTORY PASSTHROUGH
// =============================================================================

// ListEmployees returns all directory records.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Directory.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "directory lookup failed", err)
		return
	}
	dtos := make([]EmployeeDTO, 0, len(employees))
	for _, e := range employees {
		dtos = append(dtos, toEmployeeDTO(e))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetEmployee returns one directory record (with existing salary for
// target-CTC pre-fill).
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	employeeID := comp.EmployeeID(chi.URLParam(r, "id"))

	employee, err := h.Directory.Get(r.Context(), employeeID)
	if err != nil {
		if errors.Is(err, directory.ErrEmployeeNotFound) {
			writeError(w, http.StatusNotFound, "employee not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "directory lookup failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(employee))
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := errorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps the comp error taxonomy to HTTP status codes.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case comp.IsClientError(err):
		writeError(w, http.StatusBadRequest, "invalid submission", err)
	case errors.Is(err, comp.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "authorization required", err)
	case comp.IsNotFound(err):
		writeError(w, http.StatusNotFound, "not found", err)
	case comp.IsConflict(err):
		writeError(w, http.StatusConflict, "conflict", err)
	case comp.IsConfigError(err):
		// Catalog invariant violations are deployment bugs, not the
		// submitter's fault. Log loudly, surface distinctly.
		h.Log.Error().Err(err).Msg("catalog configuration error")
		writeError(w, http.StatusInternalServerError, "catalog configuration error", err)
	default:
		h.Log.Error().Err(err).Msg("internal error")
		writeError(w, http.StatusInternalServerError, "internal error", err)
	}
}
