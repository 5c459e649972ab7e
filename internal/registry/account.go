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

// AccountType is the balance-sign convention for an account (spec §3).
type AccountType string

const (
	AccountTypeAsset     AccountType = "asset"
	AccountTypeLiability AccountType = "liability"
)

// AccountClass further narrows the account's behavior within its type.
type AccountClass string

const (
	AccountClassCash       AccountClass = "cash"
	AccountClassCredit     AccountClass = "credit"
	AccountClassAccessible AccountClass = "accessible"
	AccountClassInvestment AccountClass = "investment"
	AccountClassLoan       AccountClass = "loan"
	AccountClassTangible   AccountClass = "tangible"
)

// AccountRole determines whether the account participates in envelope
// budgeting (on_budget) or is tracking-only.
type AccountRole string

const (
	AccountRoleOnBudget AccountRole = "on_budget"
	AccountRoleTracking AccountRole = "tracking"
)

// ClassToType is the required account_type for each account_class (spec
// §3: "account_type consistent with account_class: credit/loan ⇒
// liability; others ⇒ asset").
var ClassToType = map[AccountClass]AccountType{
	AccountClassCash:       AccountTypeAsset,
	AccountClassCredit:     AccountTypeLiability,
	AccountClassAccessible: AccountTypeAsset,
	AccountClassInvestment: AccountTypeAsset,
	AccountClassLoan:       AccountTypeLiability,
	AccountClassTangible:   AccountTypeAsset,
}

// Account is the registry's account record (spec §3).
type Account struct {
	AccountID          string
	Name               string
	AccountType        AccountType
	AccountClass       AccountClass
	AccountRole        AccountRole
	CurrentBalanceMinor money.Minor
	Currency           string
	IsActive           bool
	OpenedOn           time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

const maxAccountNameLength = 255

// CreateAccountInput is the CreateAccount wire contract (spec §6).
type CreateAccountInput struct {
	AccountID           string // optional; generated if empty
	Name                string
	AccountType         AccountType
	AccountClass        AccountClass
	AccountRole         AccountRole
	Currency            string
	OpenedOn            *time.Time
	OpeningBalanceMinor money.Minor // must be zero; non-zero raises InvalidBalance
}

func validateAccountName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ledgererr.Validationf("name is required").WithField("name")
	}
	if len(name) > maxAccountNameLength {
		return "", ledgererr.Validationf("name exceeds maximum length").WithField("name")
	}
	return name, nil
}

// CreateAccount creates an account plus its per-class detail SCD-2 row,
// enforcing the opening-balance rule and upserting the credit-card payment
// category for credit accounts (spec §4.10).
func (s *Service) CreateAccount(ctx context.Context, input CreateAccountInput) (*Account, error) {
	name, err := validateAccountName(input.Name)
	if err != nil {
		return nil, err
	}

	wantType, ok := ClassToType[input.AccountClass]
	if !ok {
		return nil, ledgererr.Validation(ledgererr.ErrUnknownClass).WithField("account_class")
	}
	if input.AccountType == "" {
		input.AccountType = wantType
	} else if input.AccountType != wantType {
		return nil, ledgererr.Validation(ledgererr.ErrClassTypeMismatch).WithField("account_type")
	}

	if !input.OpeningBalanceMinor.IsZero() {
		return nil, ledgererr.Validation(ledgererr.ErrInvalidBalance).WithField("opening_balance_minor")
	}

	if input.AccountRole == "" {
		input.AccountRole = AccountRoleOnBudget
	}
	if input.Currency == "" {
		input.Currency = "USD"
	}
	openedOn := money.DayOf(time.Now())
	if input.OpenedOn != nil {
		openedOn = money.DayOf(*input.OpenedOn)
	}

	accountID := input.AccountID
	if accountID == "" {
		accountID = uuid.NewString()
	}

	account := &Account{
		AccountID:    accountID,
		Name:         name,
		AccountType:  input.AccountType,
		AccountClass: input.AccountClass,
		AccountRole:  input.AccountRole,
		Currency:     input.Currency,
		IsActive:     true,
		OpenedOn:     openedOn,
	}

	err = s.gateway.WithUnitOfWork(ctx, func(ctx context.Context, uow *storage.UnitOfWork) error {
		tx := uow.Tx()
		now := time.Now().UTC()
		_, err := tx.ExecContext(ctx, `
			INSERT INTO accounts (account_id, name, account_type, account_class, account_role, current_balance_minor, currency, is_active, opened_on, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, 0, ?, TRUE, ?, ?, ?)`,
			account.AccountID, account.Name, string(account.AccountType), string(account.AccountClass), string(account.AccountRole), account.Currency, account.OpenedOn, now, now)
		if err != nil {
			return ledgererr.Storage(err)
		}
		account.CreatedAt, account.UpdatedAt = now, now

		if _, err := s.insertEmptyDetailTx(ctx, tx, account.AccountID, account.AccountClass); err != nil {
			return err
		}

		if account.AccountClass == AccountClassCredit {
			if err := s.ensureCreditPaymentCategoryTx(ctx, tx, account.AccountID, account.Name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return account, nil
}

// UpdateAccountInput carries the only fields CreateAccount leaves mutable:
// metadata. Balance can never be set directly (spec §4.10).
type UpdateAccountInput struct {
	Name     *string
	IsActive *bool
}

// UpdateAccount updates account metadata only; direct balance mutation is
// always rejected by construction (UpdateAccountInput has no balance
// field).
func (s *Service) UpdateAccount(ctx context.Context, accountID string, input UpdateAccountInput) (*Account, error) {
	account, err := s.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		name, err := validateAccountName(*input.Name)
		if err != nil {
			return nil, err
		}
		account.Name = name
	}
	if input.IsActive != nil {
		if *input.IsActive == false && !account.CurrentBalanceMinor.IsZero() {
			return nil, ledgererr.Validation(ledgererr.ErrAccountNotInactivatable)
		}
		account.IsActive = *input.IsActive
	}

	err = s.gateway.WithUnitOfWork(ctx, func(ctx context.Context, uow *storage.UnitOfWork) error {
		now := time.Now().UTC()
		_, err := uow.Tx().ExecContext(ctx, `
			UPDATE accounts SET name = ?, is_active = ?, updated_at = ? WHERE account_id = ?`,
			account.Name, account.IsActive, now, account.AccountID)
		if err != nil {
			return ledgererr.Storage(err)
		}
		if account.AccountClass == AccountClassCredit {
			if err := s.ensureCreditPaymentCategoryTx(ctx, uow.Tx(), account.AccountID, account.Name); err != nil {
				return err
			}
		}
		account.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// GetAccount reads a single account.
func (s *Service) GetAccount(ctx context.Context, accountID string) (*Account, error) {
	row := s.gateway.DB().QueryRowContext(ctx, `
		SELECT account_id, name, account_type, account_class, account_role, current_balance_minor, currency, is_active, opened_on, created_at, updated_at
		FROM accounts WHERE account_id = ?`, accountID)
	return scanAccount(row)
}

// AccountActiveAndTypeFull reads the full account row inside a unit of
// work (or any storage.Querier), so callers mid-transaction see their own
// just-applied balance updates.
func AccountActiveAndTypeFull(ctx context.Context, q storage.Querier, accountID string) (*Account, error) {
	row := q.QueryRowContext(ctx, `
		SELECT account_id, name, account_type, account_class, account_role, current_balance_minor, currency, is_active, opened_on, created_at, updated_at
		FROM accounts WHERE account_id = ?`, accountID)
	return scanAccount(row)
}

// ListAccounts returns all accounts, optionally including inactive ones.
func (s *Service) ListAccounts(ctx context.Context, includeInactive bool) ([]*Account, error) {
	query := `SELECT account_id, name, account_type, account_class, account_role, current_balance_minor, currency, is_active, opened_on, created_at, updated_at FROM accounts`
	if !includeInactive {
		query += ` WHERE is_active = TRUE`
	}
	rows, err := s.gateway.DB().QueryContext(ctx, query)
	if err != nil {
		return nil, ledgererr.Storage(err)
	}
	defer rows.Close()

	var out []*Account
	for rows.Next() {
		a, err := scanAccountRows(rows)
		if err != nil {
			return nil, ledgererr.Storage(err)
		}
		out = append(out, a)
	}
	return out, ledgererr.Storage(rows.Err())
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccount(row rowScanner) (*Account, error) {
	a := &Account{}
	var accountType, accountClass, accountRole string
	var balance int64
	err := row.Scan(&a.AccountID, &a.Name, &accountType, &accountClass, &accountRole, &balance, &a.Currency, &a.IsActive, &a.OpenedOn, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ledgererr.New(ledgererr.KindValidation, fmt.Errorf("%w: account", ledgererr.ErrNotFound))
	}
	if err != nil {
		return nil, ledgererr.Storage(err)
	}
	a.AccountType = AccountType(accountType)
	a.AccountClass = AccountClass(accountClass)
	a.AccountRole = AccountRole(accountRole)
	a.CurrentBalanceMinor = money.Minor(balance)
	return a, nil
}

func scanAccountRows(rows *sql.Rows) (*Account, error) {
	return scanAccount(rows)
}

// ApplyBalanceDeltaTx mutates an account's derived balance cache by delta,
// inside an existing unit of work. It is the incremental path the ledger
// uses for every transaction effect (spec §3: "No direct mutation:
// changes happen only as a side effect of the ledger"); cache.Rebuild
// recomputes and overwrites current_balance_minor with its own UPDATE.
func ApplyBalanceDeltaTx(ctx context.Context, tx *sql.Tx, accountID string, delta money.Minor) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE accounts SET current_balance_minor = current_balance_minor + ?, updated_at = ? WHERE account_id = ?`,
		int64(delta), time.Now().UTC(), accountID)
	if err != nil {
		return ledgererr.Storage(err)
	}
	return nil
}

// SetBalanceTx overwrites the derived balance cache outright. cache.Rebuild
// does not call it; it recomputes every balance in a single UPDATE.
func SetBalanceTx(ctx context.Context, tx *sql.Tx, accountID string, balance money.Minor) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE accounts SET current_balance_minor = ?, updated_at = ? WHERE account_id = ?`,
		int64(balance), time.Now().UTC(), accountID)
	if err != nil {
		return ledgererr.Storage(err)
	}
	return nil
}

// AccountActiveAndType looks up an account's active flag, type, role and
// class, used by ledger code that
// must reject writes against inactive or unknown accounts (spec §4.2 step
// 1).
func AccountActiveAndType(ctx context.Context, q storage.Querier, accountID string) (isActive bool, accountType AccountType, accountRole AccountRole, accountClass AccountClass, err error) {
	var t, r, c string
	scanErr := q.QueryRowContext(ctx, `SELECT is_active, account_type, account_role, account_class FROM accounts WHERE account_id = ?`, accountID).
		Scan(&isActive, &t, &r, &c)
	if scanErr == sql.ErrNoRows {
		return false, "", "", "", ledgererr.Validation(ledgererr.ErrUnknownAccount).WithField("account_id")
	}
	if scanErr != nil {
		return false, "", "", "", ledgererr.Storage(scanErr)
	}
	return isActive, AccountType(t), AccountRole(r), AccountClass(c), nil
}
