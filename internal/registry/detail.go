package registry

import (
	"context"
	"database/sql"
	"time"

	"github.com/dafibh/fortuna/fortuna-backend/internal/ledgererr"
	"github.com/dafibh/fortuna/fortuna-backend/internal/money"
	"github.com/dafibh/fortuna/fortuna-backend/internal/storage"
	"github.com/google/uuid"
)

// AccountDetail is the SCD-2 per-class detail row (spec §3, §4.10 & the
// [SUPPLEMENT] shapes in SPEC_FULL.md §13). Only the fields relevant to
// AccountClass are meaningful; the rest are zero.
type AccountDetail struct {
	DetailID      string
	AccountID     string
	AccountClass  AccountClass
	ValidFrom     time.Time
	ValidTo       *time.Time
	IsActive      bool

	CreditLimitMinor       *money.Minor
	StatementDay           *int
	DrawPeriodEnd          *time.Time
	UninvestedCashMinor    *money.Minor
	Brokerage              *string
	OriginalPrincipalMinor *money.Minor
	InterestRateBP         *int
	TermMonths             *int
	CurrentFairValueMinor  *money.Minor
}

// insertEmptyDetailTx seeds the initial (empty) detail row on account
// creation; class-specific fields are filled in later via
// ReplaceActiveDetail.
func (s *Service) insertEmptyDetailTx(ctx context.Context, tx *sql.Tx, accountID string, class AccountClass) (string, error) {
	detailID := uuid.NewString()
	now := time.Now().UTC()
	_, err := tx.ExecContext(ctx, `
		INSERT INTO account_details (detail_id, account_id, account_class, valid_from, valid_to, is_active)
		VALUES (?, ?, ?, ?, NULL, TRUE)`,
		detailID, accountID, string(class), now)
	if err != nil {
		return "", ledgererr.Storage(err)
	}
	return detailID, nil
}

// ReplaceActiveDetail performs the SCD-2 "close then insert" atomically:
// retires the account's current active detail row and inserts next as the
// new active version (spec §9). At most one active detail row per account
// per class is kept.
func (s *Service) ReplaceActiveDetail(ctx context.Context, accountID string, next AccountDetail) (*AccountDetail, error) {
	err := s.gateway.WithUnitOfWork(ctx, func(ctx context.Context, uow *storage.UnitOfWork) error {
		tx := uow.Tx()
		now := time.Now().UTC()

		if _, err := tx.ExecContext(ctx, `
			UPDATE account_details SET is_active = FALSE, valid_to = ?
			WHERE account_id = ? AND is_active = TRUE`, now, accountID); err != nil {
			return ledgererr.Storage(err)
		}

		next.DetailID = uuid.NewString()
		next.AccountID = accountID
		next.ValidFrom = now
		next.IsActive = true

		_, err := tx.ExecContext(ctx, `
			INSERT INTO account_details (
				detail_id, account_id, account_class, valid_from, valid_to, is_active,
				credit_limit_minor, statement_day, draw_period_end,
				uninvested_cash_minor, brokerage,
				original_principal_minor, interest_rate_bp, term_months,
				current_fair_value_minor
			) VALUES (?, ?, ?, ?, NULL, TRUE, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			next.DetailID, next.AccountID, string(next.AccountClass), next.ValidFrom,
			minorPtrToNullable(next.CreditLimitMinor), next.StatementDay, next.DrawPeriodEnd,
			minorPtrToNullable(next.UninvestedCashMinor), next.Brokerage,
			minorPtrToNullable(next.OriginalPrincipalMinor), next.InterestRateBP, next.TermMonths,
			minorPtrToNullable(next.CurrentFairValueMinor))
		if err != nil {
			return ledgererr.Storage(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &next, nil
}

// ActiveDetail returns the account's current active detail row.
func (s *Service) ActiveDetail(ctx context.Context, accountID string) (*AccountDetail, error) {
	row := s.gateway.DB().QueryRowContext(ctx, `
		SELECT detail_id, account_id, account_class, valid_from, valid_to, is_active,
			credit_limit_minor, statement_day, draw_period_end,
			uninvested_cash_minor, brokerage,
			original_principal_minor, interest_rate_bp, term_months,
			current_fair_value_minor
		FROM account_details WHERE account_id = ? AND is_active = TRUE`, accountID)
	return scanDetail(row)
}

func scanDetail(row rowScanner) (*AccountDetail, error) {
	d := &AccountDetail{}
	var class string
	var creditLimit, uninvestedCash, originalPrincipal, fairValue sql.NullInt64
	var statementDay, interestRateBP, termMonths sql.NullInt64
	var brokerage sql.NullString
	var drawPeriodEnd sql.NullTime
	var validTo sql.NullTime

	err := row.Scan(&d.DetailID, &d.AccountID, &class, &d.ValidFrom, &validTo, &d.IsActive,
		&creditLimit, &statementDay, &drawPeriodEnd,
		&uninvestedCash, &brokerage,
		&originalPrincipal, &interestRateBP, &termMonths,
		&fairValue)
	if err == sql.ErrNoRows {
		return nil, ledgererr.Validation(ledgererr.ErrNotFound).WithField("account_id")
	}
	if err != nil {
		return nil, ledgererr.Storage(err)
	}
	d.AccountClass = AccountClass(class)
	if validTo.Valid {
		d.ValidTo = &validTo.Time
	}
	if creditLimit.Valid {
		m := money.Minor(creditLimit.Int64)
		d.CreditLimitMinor = &m
	}
	if statementDay.Valid {
		v := int(statementDay.Int64)
		d.StatementDay = &v
	}
	if drawPeriodEnd.Valid {
		d.DrawPeriodEnd = &drawPeriodEnd.Time
	}
	if uninvestedCash.Valid {
		m := money.Minor(uninvestedCash.Int64)
		d.UninvestedCashMinor = &m
	}
	if brokerage.Valid {
		d.Brokerage = &brokerage.String
	}
	if originalPrincipal.Valid {
		m := money.Minor(originalPrincipal.Int64)
		d.OriginalPrincipalMinor = &m
	}
	if interestRateBP.Valid {
		v := int(interestRateBP.Int64)
		d.InterestRateBP = &v
	}
	if termMonths.Valid {
		v := int(termMonths.Int64)
		d.TermMonths = &v
	}
	if fairValue.Valid {
		m := money.Minor(fairValue.Int64)
		d.CurrentFairValueMinor = &m
	}
	return d, nil
}

func minorPtrToNullable(m *money.Minor) interface{} {
	if m == nil {
		return nil
	}
	return int64(*m)
}
