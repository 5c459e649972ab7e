package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dafibh/fortuna/fortuna-backend/internal/ledger"
	"github.com/dafibh/fortuna/fortuna-backend/internal/money"
	"github.com/labstack/echo/v4"
)

// TransactionHandler serves the ledger's transaction/transfer operations
// (spec §6 CreateTransaction/EditTransaction/DeleteTransaction/
// CreateTransfer).
type TransactionHandler struct {
	ledger *ledger.Service
}

// NewTransactionHandler constructs a TransactionHandler.
func NewTransactionHandler(l *ledger.Service) *TransactionHandler {
	return &TransactionHandler{ledger: l}
}

type createTransactionRequest struct {
	AccountID       string  `json:"account_id"`
	CategoryID      string  `json:"category_id"`
	TransactionDate string  `json:"transaction_date"`
	AmountMinor     int64   `json:"amount_minor"`
	Memo            *string `json:"memo,omitempty"`
	Status          string  `json:"status,omitempty"`
}

func parseDate(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}

// CreateTransaction handles POST /transactions (spec §6).
func (h *TransactionHandler) CreateTransaction(c echo.Context) error {
	var req createTransactionRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, err)
	}
	date, err := parseDate(req.TransactionDate)
	if err != nil {
		return writeError(c, err)
	}

	result, err := h.ledger.Create(c.Request().Context(), ledger.CreateInput{
		AccountID:       req.AccountID,
		CategoryID:      req.CategoryID,
		TransactionDate: date,
		AmountMinor:     money.Minor(req.AmountMinor),
		Memo:            req.Memo,
		Status:          ledger.Status(req.Status),
	})
	if err != nil {
		return writeError(c, err)
	}
	return writeCreated(c, result)
}

type editTransactionRequest struct {
	AccountID       string  `json:"account_id"`
	CategoryID      string  `json:"category_id"`
	TransactionDate string  `json:"transaction_date"`
	AmountMinor     int64   `json:"amount_minor"`
	Memo            *string `json:"memo,omitempty"`
	Status          string  `json:"status"`
}

// EditTransaction handles PATCH /transactions/:concept_id (spec §6).
func (h *TransactionHandler) EditTransaction(c echo.Context) error {
	var req editTransactionRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, err)
	}
	date, err := parseDate(req.TransactionDate)
	if err != nil {
		return writeError(c, err)
	}

	txn, err := h.ledger.Edit(c.Request().Context(), c.Param("concept_id"), ledger.EditInput{
		AccountID:       req.AccountID,
		CategoryID:      req.CategoryID,
		TransactionDate: date,
		AmountMinor:     money.Minor(req.AmountMinor),
		Memo:            req.Memo,
		Status:          ledger.Status(req.Status),
	})
	if err != nil {
		return writeError(c, err)
	}
	return writeOK(c, txn)
}

// DeleteTransaction handles DELETE /transactions/:concept_id (spec §6).
func (h *TransactionHandler) DeleteTransaction(c echo.Context) error {
	if err := h.ledger.Delete(c.Request().Context(), c.Param("concept_id")); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ListByAccount handles GET /accounts/:id/transactions.
func (h *TransactionHandler) ListByAccount(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	statusFilter := ledger.StatusFilter(c.QueryParam("status"))

	var start, end *time.Time
	if v := c.QueryParam("start"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			return writeError(c, err)
		}
		start = &t
	}
	if v := c.QueryParam("end"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			return writeError(c, err)
		}
		end = &t
	}

	txns, err := h.ledger.ListByAccount(c.Request().Context(), c.Param("id"), start, end, limit, statusFilter)
	if err != nil {
		return writeError(c, err)
	}
	return writeOK(c, txns)
}

// BulkClearTransactions handles POST /transactions/bulk-clear, the
// reconciliation worksheet's "accept all pending" action.
func (h *TransactionHandler) BulkClearTransactions(c echo.Context) error {
	var req struct {
		ConceptIDs []string `json:"concept_ids"`
	}
	if err := c.Bind(&req); err != nil {
		return writeError(c, err)
	}
	txns, err := h.ledger.BulkClearTransactions(c.Request().Context(), req.ConceptIDs)
	if err != nil {
		return writeError(c, err)
	}
	return writeOK(c, txns)
}

// ListRecent handles GET /transactions/recent.
func (h *TransactionHandler) ListRecent(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	txns, err := h.ledger.ListRecent(c.Request().Context(), limit)
	if err != nil {
		return writeError(c, err)
	}
	return writeOK(c, txns)
}

type createTransferRequest struct {
	SourceAccountID      string  `json:"source_account_id"`
	DestinationAccountID string  `json:"destination_account_id"`
	AmountMinor          int64   `json:"amount_minor"`
	TransactionDate      string  `json:"transaction_date"`
	Memo                 *string `json:"memo,omitempty"`
}

// CreateTransfer handles POST /transfers (spec §6 CreateTransfer).
func (h *TransactionHandler) CreateTransfer(c echo.Context) error {
	var req createTransferRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, err)
	}
	date, err := parseDate(req.TransactionDate)
	if err != nil {
		return writeError(c, err)
	}

	result, err := h.ledger.Transfer(c.Request().Context(), ledger.TransferInput{
		SourceAccountID:      req.SourceAccountID,
		DestinationAccountID: req.DestinationAccountID,
		AmountMinor:          money.Minor(req.AmountMinor),
		TransactionDate:      date,
		Memo:                 req.Memo,
	})
	if err != nil {
		return writeError(c, err)
	}
	return writeCreated(c, result)
}
