package httpapi

import (
	"github.com/labstack/echo/v4"
)

// Handlers bundles every HTTP adapter the engine exposes, mirroring the
// teacher's handler.RegisterRoutes(e, ...) grouping.
type Handlers struct {
	Account        *AccountHandler
	Category       *CategoryHandler
	Transaction    *TransactionHandler
	Allocation     *AllocationHandler
	Reconciliation *ReconciliationHandler
	ReadModel      *ReadModelHandler
	Cache          *CacheHandler
	WebSocket      *WebSocketHandler
}

// RegisterRoutes wires every domain operation onto e under /api/v1. No
// auth middleware is attached (spec §1: authentication does not exist;
// this engine runs behind whatever reverse proxy the operator chooses).
func RegisterRoutes(e *echo.Echo, h Handlers) {
	api := e.Group("/api/v1")

	accounts := api.Group("/accounts")
	accounts.POST("", h.Account.CreateAccount)
	accounts.GET("", h.Account.ListAccounts)
	accounts.GET("/:id", h.Account.GetAccount)
	accounts.PATCH("/:id", h.Account.UpdateAccount)
	accounts.GET("/:id/transactions", h.Transaction.ListByAccount)
	accounts.GET("/:id/history", h.ReadModel.GetAccountHistory)
	accounts.GET("/:id/reconciliations/latest", h.Reconciliation.GetLatest)
	accounts.GET("/:id/reconciliations", h.Reconciliation.ListHistory)

	categories := api.Group("/categories")
	categories.POST("", h.Category.CreateCategory)
	categories.GET("", h.Category.ListCategories)
	categories.PATCH("/:id", h.Category.UpdateCategory)
	categories.DELETE("/:id", h.Category.DeleteCategory)

	api.GET("/category-groups", h.Category.ListCategoryGroups)

	transactions := api.Group("/transactions")
	transactions.POST("", h.Transaction.CreateTransaction)
	transactions.GET("/recent", h.Transaction.ListRecent)
	transactions.PATCH("/:concept_id", h.Transaction.EditTransaction)
	transactions.DELETE("/:concept_id", h.Transaction.DeleteTransaction)
	transactions.POST("/bulk-clear", h.Transaction.BulkClearTransactions)

	api.POST("/transfers", h.Transaction.CreateTransfer)

	allocations := api.Group("/allocations")
	allocations.POST("", h.Allocation.CreateAllocation)
	allocations.GET("", h.Allocation.ListForMonth)
	allocations.PATCH("/:concept_id", h.Allocation.EditAllocation)
	allocations.DELETE("/:concept_id", h.Allocation.DeleteAllocation)

	reconciliations := api.Group("/reconciliations")
	reconciliations.GET("/worksheet", h.Reconciliation.GetWorksheet)
	reconciliations.POST("", h.Reconciliation.CreateReconciliation)

	api.GET("/net-worth", h.ReadModel.GetNetWorthCurrent)
	api.GET("/net-worth/history", h.ReadModel.GetNetWorthHistory)
	api.GET("/ready-to-assign", h.ReadModel.GetReadyToAssign)
	api.GET("/budget-categories", h.ReadModel.ListBudgetCategories)
	api.GET("/months/summary", h.ReadModel.GetMonthlySummary)

	admin := api.Group("/admin")
	admin.POST("/rebuild-cache", h.Cache.Rebuild)

	e.GET("/ws", h.WebSocket.HandleWS)
}
