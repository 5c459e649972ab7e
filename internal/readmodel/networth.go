// Package readmodel exposes the engine's read-only aggregate views: net
// worth snapshots and history, per-account balance history, the
// Ready-to-Assign wrapper, the budget-category listing, and the monthly
// income/expense rollup (spec §4.8). Every value here is derived entirely
// from already-authoritative tables; nothing in this package writes.
package readmodel

import (
	"context"
	"database/sql"
	"time"

	"github.com/dafibh/fortuna/fortuna-backend/internal/ledgererr"
	"github.com/dafibh/fortuna/fortuna-backend/internal/money"
	"github.com/dafibh/fortuna/fortuna-backend/internal/rta"
	"github.com/dafibh/fortuna/fortuna-backend/internal/storage"
	"github.com/shopspring/decimal"
)

// Service is the read-model core.
type Service struct {
	gateway *storage.Gateway
	rta     *rta.Service
}

// New constructs a readmodel Service.
func New(gateway *storage.Gateway, rtaService *rta.Service) *Service {
	return &Service{gateway: gateway, rta: rtaService}
}

// NetWorthSnapshot is the current net-worth breakdown (spec §4.8).
type NetWorthSnapshot struct {
	AssetsMinor      money.Minor
	LiabilitiesMinor money.Minor
	PositionsMinor   money.Minor
	TangiblesMinor   money.Minor
	NetWorthMinor    money.Minor
}

// NetWorthCurrent computes the present-moment net-worth identity (spec
// §4.8, invariant §8 #4): assets + liabilities + positions + tangibles,
// liabilities carrying negative sign.
func (s *Service) NetWorthCurrent(ctx context.Context) (*NetWorthSnapshot, error) {
	db := s.gateway.DB()

	var assets int64
	if err := db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(current_balance_minor), 0) FROM accounts
		WHERE is_active = TRUE AND account_type = 'asset' AND account_class != 'investment'`).Scan(&assets); err != nil {
		return nil, ledgererr.Storage(err)
	}

	var liabilities int64
	if err := db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(current_balance_minor), 0) FROM accounts
		WHERE is_active = TRUE AND account_type = 'liability'`).Scan(&liabilities); err != nil {
		return nil, ledgererr.Storage(err)
	}

	positions, err := s.positionsMinor(ctx)
	if err != nil {
		return nil, err
	}

	var tangibles int64
	if err := db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(d.current_fair_value_minor), 0)
		FROM account_details d
		JOIN accounts a ON a.account_id = d.account_id
		WHERE d.is_active = TRUE AND a.is_active = TRUE AND a.account_class = 'tangible'`).Scan(&tangibles); err != nil {
		return nil, ledgererr.Storage(err)
	}

	snap := &NetWorthSnapshot{
		AssetsMinor:      money.Minor(assets),
		LiabilitiesMinor: money.Minor(liabilities),
		PositionsMinor:   positions,
		TangiblesMinor:   money.Minor(tangibles),
	}
	snap.NetWorthMinor = money.Sum(snap.AssetsMinor, snap.LiabilitiesMinor, snap.PositionsMinor, snap.TangiblesMinor)
	return snap, nil
}

// positionsMinor sums every investment account's position (spec §4.8:
// "if SCD-2 holdings or declared uninvested-cash exist, use
// uninvested_cash_minor + Σ(quantity × latest close_minor); otherwise fall
// back to the ledger-derived balance for that investment account").
func (s *Service) positionsMinor(ctx context.Context) (money.Minor, error) {
	db := s.gateway.DB()

	rows, err := db.QueryContext(ctx, `
		SELECT a.account_id, a.current_balance_minor, d.uninvested_cash_minor
		FROM accounts a
		LEFT JOIN account_details d ON d.account_id = a.account_id AND d.is_active = TRUE
		WHERE a.is_active = TRUE AND a.account_class = 'investment'`)
	if err != nil {
		return money.Zero, ledgererr.Storage(err)
	}
	defer rows.Close()

	var total money.Minor
	for rows.Next() {
		var accountID string
		var ledgerBalance int64
		var uninvestedCash sql.NullInt64
		if err := rows.Scan(&accountID, &ledgerBalance, &uninvestedCash); err != nil {
			return money.Zero, ledgererr.Storage(err)
		}

		holdingsValue, haveHoldings, err := s.holdingsValueMinor(ctx, accountID)
		if err != nil {
			return money.Zero, err
		}

		if !uninvestedCash.Valid && !haveHoldings {
			total = total.Add(money.Minor(ledgerBalance))
			continue
		}

		position := holdingsValue
		if uninvestedCash.Valid {
			position = position.Add(money.Minor(uninvestedCash.Int64))
		}
		total = total.Add(position)
	}
	return total, ledgererr.Storage(rows.Err())
}

// holdingsValueMinor sums quantity × latest close price across every
// active holding in accountID. Share quantities are the one place the
// engine uses decimal math (spec §2.1: integer minor units everywhere
// except investment share quantities).
func (s *Service) holdingsValueMinor(ctx context.Context, accountID string) (money.Minor, bool, error) {
	rows, err := s.gateway.DB().QueryContext(ctx, `
		SELECT h.symbol, h.quantity,
			(SELECT p.close_minor FROM security_prices p WHERE p.symbol = h.symbol ORDER BY p.as_of_date DESC LIMIT 1)
		FROM investment_holdings h
		WHERE h.account_id = ? AND h.is_active = TRUE`, accountID)
	if err != nil {
		return money.Zero, false, ledgererr.Storage(err)
	}
	defer rows.Close()

	var total decimal.Decimal
	var have bool
	for rows.Next() {
		have = true
		var symbol string
		var quantity float64
		var closeMinor sql.NullInt64
		if err := rows.Scan(&symbol, &quantity, &closeMinor); err != nil {
			return money.Zero, false, ledgererr.Storage(err)
		}
		if !closeMinor.Valid {
			continue
		}
		total = total.Add(decimal.NewFromFloat(quantity).Mul(decimal.NewFromInt(closeMinor.Int64)))
	}
	if err := rows.Err(); err != nil {
		return money.Zero, false, ledgererr.Storage(err)
	}
	return money.Minor(total.Round(0).IntPart()), have, nil
}

// ReadyToAssign is a thin wrapper over internal/rta, the engine's §6
// GetReadyToAssign operation.
func (s *Service) ReadyToAssign(ctx context.Context, monthStart time.Time) (money.Minor, error) {
	return s.rta.Compute(ctx, monthStart)
}
