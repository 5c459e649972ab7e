package httpapi

import (
	"net/http"
	"time"

	"github.com/dafibh/fortuna/fortuna-backend/internal/registry"
	"github.com/labstack/echo/v4"
)

// AccountHandler serves the registry's account operations (spec §6
// CreateAccount/UpdateAccount).
type AccountHandler struct {
	registry *registry.Service
}

// NewAccountHandler constructs an AccountHandler.
func NewAccountHandler(r *registry.Service) *AccountHandler {
	return &AccountHandler{registry: r}
}

type createAccountRequest struct {
	AccountID    string  `json:"account_id,omitempty"`
	Name         string  `json:"name"`
	AccountType  string  `json:"account_type,omitempty"`
	AccountClass string  `json:"account_class"`
	AccountRole  string  `json:"account_role,omitempty"`
	Currency     string  `json:"currency,omitempty"`
	OpenedOn     *string `json:"opened_on,omitempty"`
}

// CreateAccount handles POST /accounts (spec §6 CreateAccount).
func (h *AccountHandler) CreateAccount(c echo.Context) error {
	var req createAccountRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, err)
	}

	input := registry.CreateAccountInput{
		AccountID:    req.AccountID,
		Name:         req.Name,
		AccountType:  registry.AccountType(req.AccountType),
		AccountClass: registry.AccountClass(req.AccountClass),
		AccountRole:  registry.AccountRole(req.AccountRole),
		Currency:     req.Currency,
	}
	if req.OpenedOn != nil {
		t, err := time.Parse("2006-01-02", *req.OpenedOn)
		if err != nil {
			return writeError(c, err)
		}
		input.OpenedOn = &t
	}

	account, err := h.registry.CreateAccount(c.Request().Context(), input)
	if err != nil {
		return writeError(c, err)
	}
	return writeCreated(c, account)
}

type updateAccountRequest struct {
	Name     *string `json:"name,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
}

// UpdateAccount handles PATCH /accounts/:id (spec §6 UpdateAccount).
func (h *AccountHandler) UpdateAccount(c echo.Context) error {
	var req updateAccountRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, err)
	}
	account, err := h.registry.UpdateAccount(c.Request().Context(), c.Param("id"), registry.UpdateAccountInput{
		Name:     req.Name,
		IsActive: req.IsActive,
	})
	if err != nil {
		return writeError(c, err)
	}
	return writeOK(c, account)
}

// GetAccount handles GET /accounts/:id.
func (h *AccountHandler) GetAccount(c echo.Context) error {
	account, err := h.registry.GetAccount(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return writeOK(c, account)
}

// ListAccounts handles GET /accounts.
func (h *AccountHandler) ListAccounts(c echo.Context) error {
	includeInactive := c.QueryParam("include_inactive") == "true"
	accounts, err := h.registry.ListAccounts(c.Request().Context(), includeInactive)
	if err != nil {
		return writeError(c, err)
	}
	return writeOK(c, accounts)
}

// CategoryHandler serves the registry's category/group operations.
type CategoryHandler struct {
	registry *registry.Service
}

// NewCategoryHandler constructs a CategoryHandler.
func NewCategoryHandler(r *registry.Service) *CategoryHandler {
	return &CategoryHandler{registry: r}
}

type createCategoryRequest struct {
	CategoryID        string  `json:"category_id,omitempty"`
	GroupID           *string `json:"group_id,omitempty"`
	Name              string  `json:"name"`
	AllowTransactions bool    `json:"allow_transactions"`
	AllowAllocations  bool    `json:"allow_allocations"`
	IsEnvelope        bool    `json:"is_envelope"`
}

// CreateCategory handles POST /categories.
func (h *CategoryHandler) CreateCategory(c echo.Context) error {
	var req createCategoryRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, err)
	}
	cat, err := h.registry.CreateCategory(c.Request().Context(), registry.CreateCategoryInput{
		CategoryID:        req.CategoryID,
		GroupID:           req.GroupID,
		Name:              req.Name,
		AllowTransactions: req.AllowTransactions,
		AllowAllocations:  req.AllowAllocations,
		IsEnvelope:        req.IsEnvelope,
	})
	if err != nil {
		return writeError(c, err)
	}
	return writeCreated(c, cat)
}

type updateCategoryRequest struct {
	Name    *string `json:"name,omitempty"`
	GroupID *string `json:"group_id,omitempty"`
}

// UpdateCategory handles PATCH /categories/:id.
func (h *CategoryHandler) UpdateCategory(c echo.Context) error {
	var req updateCategoryRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, err)
	}
	cat, err := h.registry.UpdateCategory(c.Request().Context(), c.Param("id"), registry.UpdateCategoryInput{
		Name:    req.Name,
		GroupID: req.GroupID,
	})
	if err != nil {
		return writeError(c, err)
	}
	return writeOK(c, cat)
}

// DeleteCategory handles DELETE /categories/:id.
func (h *CategoryHandler) DeleteCategory(c echo.Context) error {
	if err := h.registry.DeleteCategory(c.Request().Context(), c.Param("id")); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ListCategories handles GET /categories.
func (h *CategoryHandler) ListCategories(c echo.Context) error {
	cats, err := h.registry.ListCategories(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return writeOK(c, cats)
}

// ListCategoryGroups handles GET /category-groups.
func (h *CategoryHandler) ListCategoryGroups(c echo.Context) error {
	groups, err := h.registry.ListCategoryGroups(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return writeOK(c, groups)
}
