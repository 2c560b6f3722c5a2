package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/iho/txledger/internal/adapter/http/dto"
	"github.com/iho/txledger/internal/domain"
	"github.com/iho/txledger/internal/usecase"
)

// TransactionService is the part of usecase.TransactionUseCase the handler
// needs.
type TransactionService interface {
	Create(ctx context.Context, input usecase.CreateTransactionInput) (*domain.Transaction, error)
	CreateBatch(ctx context.Context, inputs []usecase.CreateTransactionInput) ([]*domain.Transaction, error)
	Get(ctx context.Context, id string) (*domain.Transaction, error)
	ListByHolder(ctx context.Context, filter domain.TransactionFilter) ([]*domain.Transaction, error)
	UpdateStatus(ctx context.Context, id string, status domain.TransactionStatus, meta map[string]any) (*domain.Transaction, error)
	Delete(ctx context.Context, id string) error
}

// TransactionHandler handles transaction HTTP requests.
type TransactionHandler struct {
	svc TransactionService
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(svc TransactionService) *TransactionHandler {
	return &TransactionHandler{svc: svc}
}

// Create commits a single transaction.
func (h *TransactionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	input, err := req.ToUseCaseInput()
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid transaction", err.Error())
		return
	}
	if overridesLocks(input) && !lockOverridesAllowed(r) {
		writeLockOverrideDenied(w)
		return
	}

	tx, err := h.svc.Create(r.Context(), input)
	if err != nil {
		writeDomainError(w, "failed to create transaction", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.TransactionFromDomain(tx))
}

// CreateBatch commits several legs atomically under one batch id.
func (h *TransactionHandler) CreateBatch(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if len(req.Legs) == 0 {
		writeError(w, http.StatusBadRequest, "invalid batch", "batch has no legs")
		return
	}

	inputs, err := req.ToUseCaseInput()
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid batch", err.Error())
		return
	}
	if !lockOverridesAllowed(r) {
		for _, input := range inputs {
			if overridesLocks(input) {
				writeLockOverrideDenied(w)
				return
			}
		}
	}

	txs, err := h.svc.CreateBatch(r.Context(), inputs)
	if err != nil {
		writeDomainError(w, "failed to create batch", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.TransactionsFromDomain(txs))
}

// Get retrieves a transaction by ID.
func (h *TransactionHandler) Get(w http.ResponseWriter, r *http.Request) {
	tx, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "failed to get transaction", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.TransactionFromDomain(tx))
}

// UpdateStatus changes the status of a transaction.
func (h *TransactionHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	status, err := req.ToStatus()
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid status", err.Error())
		return
	}

	tx, err := h.svc.UpdateStatus(r.Context(), chi.URLParam(r, "id"), status, req.Metadata)
	if err != nil {
		writeDomainError(w, "failed to update transaction", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.TransactionFromDomain(tx))
}

// Delete removes a transaction.
func (h *TransactionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, "failed to delete transaction", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListByHolder lists transactions touching a holder.
func (h *TransactionHandler) ListByHolder(w http.ResponseWriter, r *http.Request) {
	holder, err := holderParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid holder", err.Error())
		return
	}

	includeInvisible, _ := strconv.ParseBool(r.URL.Query().Get("include_invisible"))

	txs, err := h.svc.ListByHolder(r.Context(), domain.TransactionFilter{
		Holder:           holder,
		Currency:         r.URL.Query().Get("currency"),
		Limit:            parseIntQuery(r, "limit", 20),
		Offset:           parseIntQuery(r, "offset", 0),
		IncludeInvisible: includeInvisible,
	})
	if err != nil {
		writeDomainError(w, "failed to list transactions", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.TransactionsFromDomain(txs))
}

type lockOverrideKey struct{}

// AllowLockOverrides marks r as permitted to set lock_key and no_lock.
// Requests without the mark are refused with 403 when they carry either.
func AllowLockOverrides(r *http.Request) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), lockOverrideKey{}, true))
}

func lockOverridesAllowed(r *http.Request) bool {
	allowed, _ := r.Context().Value(lockOverrideKey{}).(bool)
	return allowed
}

func overridesLocks(input usecase.CreateTransactionInput) bool {
	return input.NoLock || input.LockKey != ""
}

func writeLockOverrideDenied(w http.ResponseWriter) {
	writeError(w, http.StatusForbidden, "insufficient permissions", "lock_key and no_lock require the admin role")
}
