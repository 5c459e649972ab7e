package httpapi

import (
	"strconv"

	"github.com/dafibh/fortuna/fortuna-backend/internal/money"
	"github.com/dafibh/fortuna/fortuna-backend/internal/reconciliation"
	"github.com/labstack/echo/v4"
)

// ReconciliationHandler serves the reconciliation core (spec §6
// CreateReconciliation/GetReconciliationWorksheet).
type ReconciliationHandler struct {
	reconciliation *reconciliation.Service
}

// NewReconciliationHandler constructs a ReconciliationHandler.
func NewReconciliationHandler(r *reconciliation.Service) *ReconciliationHandler {
	return &ReconciliationHandler{reconciliation: r}
}

type reconciliationRequest struct {
	AccountID             string `json:"account_id"`
	StatementDate         string `json:"statement_date"`
	StatementBalanceMinor int64  `json:"statement_balance_minor"`
}

// GetWorksheet handles GET /reconciliations/worksheet (spec §6
// GetReconciliationWorksheet).
func (h *ReconciliationHandler) GetWorksheet(c echo.Context) error {
	accountID := c.QueryParam("account_id")
	statementDate, err := parseDate(c.QueryParam("statement_date"))
	if err != nil {
		return writeError(c, err)
	}
	var balance int64
	if v := c.QueryParam("statement_balance_minor"); v != "" {
		balance, _ = strconv.ParseInt(v, 10, 64)
	}

	ws, err := h.reconciliation.Worksheet(c.Request().Context(), accountID, statementDate, money.Minor(balance))
	if err != nil {
		return writeError(c, err)
	}
	return writeOK(c, ws)
}

// CreateReconciliation handles POST /reconciliations (spec §6
// CreateReconciliation).
func (h *ReconciliationHandler) CreateReconciliation(c echo.Context) error {
	var req reconciliationRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, err)
	}
	date, err := parseDate(req.StatementDate)
	if err != nil {
		return writeError(c, err)
	}

	cp, err := h.reconciliation.Commit(c.Request().Context(), reconciliation.CommitInput{
		AccountID:             req.AccountID,
		StatementDate:         date,
		StatementBalanceMinor: money.Minor(req.StatementBalanceMinor),
	})
	if err != nil {
		return writeError(c, err)
	}
	return writeCreated(c, cp)
}

// GetLatest handles GET /accounts/:id/reconciliations/latest.
func (h *ReconciliationHandler) GetLatest(c echo.Context) error {
	cp, err := h.reconciliation.Latest(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return writeOK(c, cp)
}

// ListHistory handles GET /accounts/:id/reconciliations.
func (h *ReconciliationHandler) ListHistory(c echo.Context) error {
	history, err := h.reconciliation.History(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return writeOK(c, history)
}
