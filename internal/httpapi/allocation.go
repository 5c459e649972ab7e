package httpapi

import (
	"time"

	"github.com/dafibh/fortuna/fortuna-backend/internal/allocation"
	"github.com/dafibh/fortuna/fortuna-backend/internal/money"
	"github.com/labstack/echo/v4"
)

// AllocationHandler serves the allocation core's envelope-move operations
// (spec §6 CreateAllocation).
type AllocationHandler struct {
	allocation *allocation.Service
}

// NewAllocationHandler constructs an AllocationHandler.
func NewAllocationHandler(a *allocation.Service) *AllocationHandler {
	return &AllocationHandler{allocation: a}
}

type createAllocationRequest struct {
	AllocationDate string  `json:"allocation_date"`
	FromCategoryID string  `json:"from_category_id"`
	ToCategoryID   string  `json:"to_category_id"`
	AmountMinor    int64   `json:"amount_minor"`
	Memo           *string `json:"memo,omitempty"`
}

// CreateAllocation handles POST /allocations (spec §6 CreateAllocation).
func (h *AllocationHandler) CreateAllocation(c echo.Context) error {
	var req createAllocationRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, err)
	}
	date, err := parseDate(req.AllocationDate)
	if err != nil {
		return writeError(c, err)
	}

	result, err := h.allocation.Allocate(c.Request().Context(), allocation.AllocateInput{
		AllocationDate: date,
		FromCategoryID: req.FromCategoryID,
		ToCategoryID:   req.ToCategoryID,
		AmountMinor:    money.Minor(req.AmountMinor),
		Memo:           req.Memo,
	})
	if err != nil {
		return writeError(c, err)
	}
	return writeCreated(c, result)
}

type editAllocationRequest struct {
	AllocationDate string  `json:"allocation_date"`
	FromCategoryID string  `json:"from_category_id"`
	ToCategoryID   string  `json:"to_category_id"`
	AmountMinor    int64   `json:"amount_minor"`
	Memo           *string `json:"memo,omitempty"`
}

// EditAllocation handles PATCH /allocations/:concept_id.
func (h *AllocationHandler) EditAllocation(c echo.Context) error {
	var req editAllocationRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, err)
	}
	date, err := parseDate(req.AllocationDate)
	if err != nil {
		return writeError(c, err)
	}

	result, err := h.allocation.Edit(c.Request().Context(), c.Param("concept_id"), allocation.EditInput{
		AllocationDate: date,
		FromCategoryID: req.FromCategoryID,
		ToCategoryID:   req.ToCategoryID,
		AmountMinor:    money.Minor(req.AmountMinor),
		Memo:           req.Memo,
	})
	if err != nil {
		return writeError(c, err)
	}
	return writeOK(c, result)
}

// DeleteAllocation handles DELETE /allocations/:concept_id.
func (h *AllocationHandler) DeleteAllocation(c echo.Context) error {
	if err := h.allocation.Delete(c.Request().Context(), c.Param("concept_id")); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(204)
}

// ListForMonth handles GET /allocations?month_start=YYYY-MM-DD.
func (h *AllocationHandler) ListForMonth(c echo.Context) error {
	monthStart, err := monthParam(c, "month_start")
	if err != nil {
		return writeError(c, err)
	}
	list, err := h.allocation.ListForMonth(c.Request().Context(), monthStart)
	if err != nil {
		return writeError(c, err)
	}
	return writeOK(c, list)
}

func monthParam(c echo.Context, name string) (time.Time, error) {
	v := c.QueryParam(name)
	if v == "" {
		v = time.Now().UTC().Format("2006-01")
	}
	if len(v) == 7 {
		v += "-01"
	}
	return parseDate(v)
}
