package httpapi

import (
	"time"

	"github.com/dafibh/fortuna/fortuna-backend/internal/cache"
	"github.com/dafibh/fortuna/fortuna-backend/internal/readmodel"
	"github.com/labstack/echo/v4"
)

// ReadModelHandler serves the engine's read-only aggregate views (spec §6
// GetNetWorthCurrent/GetAccountHistory/GetNetWorthHistory/
// GetReadyToAssign/ListBudgetCategories).
type ReadModelHandler struct {
	readmodel *readmodel.Service
}

// NewReadModelHandler constructs a ReadModelHandler.
func NewReadModelHandler(r *readmodel.Service) *ReadModelHandler {
	return &ReadModelHandler{readmodel: r}
}

// GetNetWorthCurrent handles GET /net-worth.
func (h *ReadModelHandler) GetNetWorthCurrent(c echo.Context) error {
	snap, err := h.readmodel.NetWorthCurrent(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return writeOK(c, snap)
}

// GetAccountHistory handles GET /accounts/:id/history.
func (h *ReadModelHandler) GetAccountHistory(c echo.Context) error {
	start, end, err := dateRangeParams(c)
	if err != nil {
		return writeError(c, err)
	}
	statusFilter := readmodel.StatusFilter(c.QueryParam("status"))

	points, err := h.readmodel.AccountHistory(c.Request().Context(), c.Param("id"), start, end, statusFilter)
	if err != nil {
		return writeError(c, err)
	}
	return writeOK(c, points)
}

// GetNetWorthHistory handles GET /net-worth/history.
func (h *ReadModelHandler) GetNetWorthHistory(c echo.Context) error {
	start, end, err := dateRangeParams(c)
	if err != nil {
		return writeError(c, err)
	}
	points, err := h.readmodel.NetWorthHistory(c.Request().Context(), start, end)
	if err != nil {
		return writeError(c, err)
	}
	return writeOK(c, points)
}

// GetReadyToAssign handles GET /ready-to-assign?month_start=YYYY-MM-DD.
func (h *ReadModelHandler) GetReadyToAssign(c echo.Context) error {
	monthStart, err := monthParam(c, "month_start")
	if err != nil {
		return writeError(c, err)
	}
	rta, err := h.readmodel.ReadyToAssign(c.Request().Context(), monthStart)
	if err != nil {
		return writeError(c, err)
	}
	return writeOK(c, map[string]interface{}{"month_start": monthStart.Format("2006-01-02"), "ready_to_assign_minor": rta})
}

// ListBudgetCategories handles GET /budget-categories?month_start=YYYY-MM-DD.
func (h *ReadModelHandler) ListBudgetCategories(c echo.Context) error {
	monthStart, err := monthParam(c, "month_start")
	if err != nil {
		return writeError(c, err)
	}
	rows, err := h.readmodel.ListBudgetCategories(c.Request().Context(), monthStart)
	if err != nil {
		return writeError(c, err)
	}
	return writeOK(c, rows)
}

// GetMonthlySummary handles GET /months/summary?month_start=YYYY-MM-DD.
func (h *ReadModelHandler) GetMonthlySummary(c echo.Context) error {
	monthStart, err := monthParam(c, "month_start")
	if err != nil {
		return writeError(c, err)
	}
	summary, err := h.readmodel.Summary(c.Request().Context(), monthStart)
	if err != nil {
		return writeError(c, err)
	}
	return writeOK(c, summary)
}

func dateRangeParams(c echo.Context) (start, end time.Time, err error) {
	start, err = parseDate(c.QueryParam("start_date"))
	if err != nil {
		return
	}
	end, err = parseDate(c.QueryParam("end_date"))
	return
}

// CacheHandler serves the operator-triggered derived-state rebuild (spec
// §4.9).
type CacheHandler struct {
	cache *cache.Service
}

// NewCacheHandler constructs a CacheHandler.
func NewCacheHandler(ch *cache.Service) *CacheHandler {
	return &CacheHandler{cache: ch}
}

// Rebuild handles POST /admin/rebuild-cache.
func (h *CacheHandler) Rebuild(c echo.Context) error {
	if err := h.cache.Rebuild(c.Request().Context()); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(204)
}
