package registry

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dafibh/fortuna/fortuna-backend/internal/ledgererr"
	"github.com/dafibh/fortuna/fortuna-backend/internal/money"
	"github.com/dafibh/fortuna/fortuna-backend/internal/storage"
	"github.com/google/uuid"
)

const maxCategoryNameLength = 100

// GoalType is the optional envelope-goal shape (spec §3).
type GoalType string

const (
	GoalTypeTargetDate GoalType = "target_date"
	GoalTypeRecurring  GoalType = "recurring"
)

// Category is a budgeting envelope or a fixed system category (spec §3).
type Category struct {
	CategoryID        string
	GroupID           *string
	Name              string
	IsSystem          bool
	AllowTransactions bool
	AllowAllocations  bool
	IsEnvelope        bool
	IsPayment         bool
	GoalType          *GoalType
	GoalAmountMinor   *money.Minor
	GoalTargetDate    *time.Time
	GoalFrequency     *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// CategoryGroup groups categories for display (spec §3).
type CategoryGroup struct {
	GroupID   string
	Name      string
	SortOrder int
	IsActive  bool
}

// CreateCategoryInput is the CreateCategory wire contract.
type CreateCategoryInput struct {
	CategoryID       string // optional; generated if empty
	GroupID          *string
	Name             string
	AllowTransactions bool
	AllowAllocations  bool
	IsEnvelope        bool
}

// CreateCategory creates a user category. System categories are never
// created through this path (they are seeded once by migration).
func (s *Service) CreateCategory(ctx context.Context, input CreateCategoryInput) (*Category, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ledgererr.Validationf("name is required").WithField("name")
	}
	if len(name) > maxCategoryNameLength {
		return nil, ledgererr.Validationf("name exceeds maximum length").WithField("name")
	}
	if input.GroupID != nil && *input.GroupID == ReservedPaymentsGroupID {
		return nil, ledgererr.Validation(ledgererr.ErrReservedGroupProtected).WithField("group_id")
	}

	categoryID := input.CategoryID
	if categoryID == "" {
		categoryID = uuid.NewString()
	}

	cat := &Category{
		CategoryID:        categoryID,
		GroupID:           input.GroupID,
		Name:              name,
		AllowTransactions: input.AllowTransactions,
		AllowAllocations:  input.AllowAllocations,
		IsEnvelope:        input.IsEnvelope,
	}

	now := time.Now().UTC()
	err := s.gateway.WithUnitOfWork(ctx, func(ctx context.Context, uow *storage.UnitOfWork) error {
		_, err := uow.Tx().ExecContext(ctx, `
			INSERT INTO categories (category_id, group_id, name, is_system, allow_transactions, allow_allocations, is_envelope, is_payment, created_at, updated_at)
			VALUES (?, ?, ?, FALSE, ?, ?, ?, FALSE, ?, ?)`,
			cat.CategoryID, cat.GroupID, cat.Name, cat.AllowTransactions, cat.AllowAllocations, cat.IsEnvelope, now, now)
		if err != nil {
			return ledgererr.Storage(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	cat.CreatedAt, cat.UpdatedAt = now, now
	return cat, nil
}

// UpdateCategoryInput carries the mutable fields of a user category.
type UpdateCategoryInput struct {
	Name    *string
	GroupID *string
}

// UpdateCategory renames/regroups a category, refusing to touch system
// categories (spec §4.10: "mutations respect capability flags; system
// categories are protected").
func (s *Service) UpdateCategory(ctx context.Context, categoryID string, input UpdateCategoryInput) (*Category, error) {
	cat, err := s.GetCategory(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	if cat.IsSystem {
		return nil, ledgererr.Validation(ledgererr.ErrSystemCategoryProtected)
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, ledgererr.Validationf("name is required").WithField("name")
		}
		cat.Name = name
	}
	if input.GroupID != nil {
		if *input.GroupID == ReservedPaymentsGroupID {
			return nil, ledgererr.Validation(ledgererr.ErrReservedGroupProtected).WithField("group_id")
		}
		cat.GroupID = input.GroupID
	}

	now := time.Now().UTC()
	err = s.gateway.WithUnitOfWork(ctx, func(ctx context.Context, uow *storage.UnitOfWork) error {
		_, err := uow.Tx().ExecContext(ctx, `UPDATE categories SET name = ?, group_id = ?, updated_at = ? WHERE category_id = ?`,
			cat.Name, cat.GroupID, now, cat.CategoryID)
		if err != nil {
			return ledgererr.Storage(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	cat.UpdatedAt = now
	return cat, nil
}

// DeleteCategory removes a user category; system and payment categories
// are protected.
func (s *Service) DeleteCategory(ctx context.Context, categoryID string) error {
	cat, err := s.GetCategory(ctx, categoryID)
	if err != nil {
		return err
	}
	if cat.IsSystem || cat.IsPayment {
		return ledgererr.Validation(ledgererr.ErrSystemCategoryProtected)
	}
	return s.gateway.WithUnitOfWork(ctx, func(ctx context.Context, uow *storage.UnitOfWork) error {
		_, err := uow.Tx().ExecContext(ctx, `DELETE FROM categories WHERE category_id = ?`, categoryID)
		if err != nil {
			return ledgererr.Storage(err)
		}
		return nil
	})
}

// GetCategory reads a single category by id.
func (s *Service) GetCategory(ctx context.Context, categoryID string) (*Category, error) {
	row := s.gateway.DB().QueryRowContext(ctx, categorySelectSQL+` WHERE category_id = ?`, categoryID)
	return scanCategory(row)
}

// GetCategoryTx reads a single category inside a unit of work, used by the
// ledger/allocation write path to validate capability flags (spec §4.2
// step 1, §4.4 step 1).
func GetCategoryTx(ctx context.Context, q storage.Querier, categoryID string) (*Category, error) {
	row := q.QueryRowContext(ctx, categorySelectSQL+` WHERE category_id = ?`, categoryID)
	return scanCategory(row)
}

// ListCategories returns every category (system and user).
func (s *Service) ListCategories(ctx context.Context) ([]*Category, error) {
	rows, err := s.gateway.DB().QueryContext(ctx, categorySelectSQL)
	if err != nil {
		return nil, ledgererr.Storage(err)
	}
	defer rows.Close()

	var out []*Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, ledgererr.Storage(err)
		}
		out = append(out, c)
	}
	return out, ledgererr.Storage(rows.Err())
}

const categorySelectSQL = `
	SELECT category_id, group_id, name, is_system, allow_transactions, allow_allocations, is_envelope, is_payment,
		goal_type, goal_amount_minor, goal_target_date, goal_frequency, created_at, updated_at
	FROM categories`

func scanCategory(row rowScanner) (*Category, error) {
	c := &Category{}
	var groupID sql.NullString
	var goalType, goalFrequency sql.NullString
	var goalAmount sql.NullInt64
	var goalTargetDate sql.NullTime

	err := row.Scan(&c.CategoryID, &groupID, &c.Name, &c.IsSystem, &c.AllowTransactions, &c.AllowAllocations,
		&c.IsEnvelope, &c.IsPayment, &goalType, &goalAmount, &goalTargetDate, &goalFrequency, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ledgererr.Validation(ledgererr.ErrUnknownCategory).WithField("category_id")
	}
	if err != nil {
		return nil, ledgererr.Storage(err)
	}
	if groupID.Valid {
		c.GroupID = &groupID.String
	}
	if goalType.Valid {
		g := GoalType(goalType.String)
		c.GoalType = &g
	}
	if goalAmount.Valid {
		m := money.Minor(goalAmount.Int64)
		c.GoalAmountMinor = &m
	}
	if goalTargetDate.Valid {
		c.GoalTargetDate = &goalTargetDate.Time
	}
	if goalFrequency.Valid {
		c.GoalFrequency = &goalFrequency.String
	}
	return c, nil
}

// ensureCreditPaymentCategoryTx upserts the credit-card payment category
// for accountID inside the reserved payments group (spec §4.6). Idempotent
// so it can run on every credit account create/update.
func (s *Service) ensureCreditPaymentCategoryTx(ctx context.Context, tx *sql.Tx, accountID, accountName string) error {
	categoryID := PaymentCategoryID(accountID)
	groupID := ReservedPaymentsGroupID
	now := time.Now().UTC()

	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM categories WHERE category_id = ?)`, categoryID).Scan(&exists); err != nil {
		return ledgererr.Storage(err)
	}
	if exists {
		return nil
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO categories (category_id, group_id, name, is_system, allow_transactions, allow_allocations, is_envelope, is_payment, created_at, updated_at)
		VALUES (?, ?, ?, FALSE, FALSE, TRUE, TRUE, TRUE, ?, ?)`,
		categoryID, groupID, fmt.Sprintf("%s Payment", accountName), now, now)
	if err != nil {
		return ledgererr.Storage(err)
	}
	return nil
}

// ListCategoryGroups returns every category group, ordered by sort_order.
func (s *Service) ListCategoryGroups(ctx context.Context) ([]*CategoryGroup, error) {
	rows, err := s.gateway.DB().QueryContext(ctx, `SELECT group_id, name, sort_order, is_active FROM category_groups ORDER BY sort_order`)
	if err != nil {
		return nil, ledgererr.Storage(err)
	}
	defer rows.Close()

	var out []*CategoryGroup
	for rows.Next() {
		g := &CategoryGroup{}
		if err := rows.Scan(&g.GroupID, &g.Name, &g.SortOrder, &g.IsActive); err != nil {
			return nil, ledgererr.Storage(err)
		}
		out = append(out, g)
	}
	return out, ledgererr.Storage(rows.Err())
}

// CreateCategoryGroup creates a user category group; the reserved payments
// group id is protected.
func (s *Service) CreateCategoryGroup(ctx context.Context, groupID, name string, sortOrder int) (*CategoryGroup, error) {
	if groupID == ReservedPaymentsGroupID {
		return nil, ledgererr.Validation(ledgererr.ErrReservedGroupProtected).WithField("group_id")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ledgererr.Validationf("name is required").WithField("name")
	}
	err := s.gateway.WithUnitOfWork(ctx, func(ctx context.Context, uow *storage.UnitOfWork) error {
		_, err := uow.Tx().ExecContext(ctx, `INSERT INTO category_groups (group_id, name, sort_order, is_active) VALUES (?, ?, ?, TRUE)`, groupID, name, sortOrder)
		if err != nil {
			return ledgererr.Storage(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &CategoryGroup{GroupID: groupID, Name: name, SortOrder: sortOrder, IsActive: true}, nil
}
