package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/txledger/internal/adapter/http/dto"
	"github.com/iho/txledger/internal/domain"
	"github.com/iho/txledger/internal/usecase"
)

// BalanceService is the part of usecase.BalanceUseCase the handler needs.
type BalanceService interface {
	Get(ctx context.Context, holder domain.HolderRef, currency string) (*domain.Balance, error)
	List(ctx context.Context, limit, offset int) ([]*domain.Balance, error)
	States(ctx context.Context, holder domain.HolderRef, currency string, limit, offset int) ([]*domain.BalanceState, error)
	Recalculate(ctx context.Context, holder domain.HolderRef, currency string) (*domain.Balance, error)
}

// ReconciliationService produces reconciliation reports.
type ReconciliationService interface {
	GenerateReconciliationReport(ctx context.Context) (*usecase.ReconciliationReport, error)
}

// BalanceHandler handles balance HTTP requests.
type BalanceHandler struct {
	balances       BalanceService
	reconciliation ReconciliationService
}

// NewBalanceHandler creates a new BalanceHandler.
func NewBalanceHandler(balances BalanceService, reconciliation ReconciliationService) *BalanceHandler {
	return &BalanceHandler{balances: balances, reconciliation: reconciliation}
}

// Get returns one balance. Unknown balances read as zero.
func (h *BalanceHandler) Get(w http.ResponseWriter, r *http.Request) {
	holder, err := holderParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid holder", err.Error())
		return
	}

	b, err := h.balances.Get(r.Context(), holder, chi.URLParam(r, "currency"))
	if err != nil {
		writeDomainError(w, "failed to get balance", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.BalanceFromDomain(b))
}

// List lists stored balances.
func (h *BalanceHandler) List(w http.ResponseWriter, r *http.Request) {
	balances, err := h.balances.List(r.Context(), parseIntQuery(r, "limit", 20), parseIntQuery(r, "offset", 0))
	if err != nil {
		writeDomainError(w, "failed to list balances", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.BalancesFromDomain(balances))
}

// States lists the recalculation snapshots of a balance.
func (h *BalanceHandler) States(w http.ResponseWriter, r *http.Request) {
	holder, err := holderParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid holder", err.Error())
		return
	}

	states, err := h.balances.States(
		r.Context(), holder, chi.URLParam(r, "currency"),
		parseIntQuery(r, "limit", 20), parseIntQuery(r, "offset", 0),
	)
	if err != nil {
		writeDomainError(w, "failed to list balance states", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.BalanceStatesFromDomain(states))
}

// Recalculate rebuilds a balance from its history.
func (h *BalanceHandler) Recalculate(w http.ResponseWriter, r *http.Request) {
	holder, err := holderParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid holder", err.Error())
		return
	}

	b, err := h.balances.Recalculate(r.Context(), holder, chi.URLParam(r, "currency"))
	if err != nil {
		writeDomainError(w, "failed to recalculate balance", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.BalanceFromDomain(b))
}

// Reconcile compares every stored balance with its history.
func (h *BalanceHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	report, err := h.reconciliation.GenerateReconciliationReport(r.Context())
	if err != nil {
		writeDomainError(w, "failed to reconcile balances", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ReconciliationReportFromUseCase(report))
}
