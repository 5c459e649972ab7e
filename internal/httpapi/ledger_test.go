package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/dafibh/fortuna/fortuna-backend/internal/clock"
	"github.com/dafibh/fortuna/fortuna-backend/internal/ledger"
	"github.com/dafibh/fortuna/fortuna-backend/internal/registry"
	"github.com/dafibh/fortuna/fortuna-backend/internal/storagetest"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

func TestCreateTransaction_Returns201AndMovesBalance(t *testing.T) {
	e := echo.New()
	gateway := storagetest.New(t)
	fixedNow := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	src := clock.NewWithFunc(func() time.Time { return fixedNow })

	reg := registry.New(gateway)
	ledgerSvc := ledger.New(gateway, src)
	h := NewTransactionHandler(ledgerSvc)

	acct, err := reg.CreateAccount(context.Background(), registry.CreateAccountInput{
		Name:         "Checking",
		AccountClass: registry.AccountClassCash,
	})
	require.NoError(t, err)

	income, err := reg.CreateCategory(context.Background(), registry.CreateCategoryInput{
		Name:              "Income",
		AllowTransactions: true,
	})
	require.NoError(t, err)

	body := `{"account_id":"` + acct.AccountID + `","category_id":"` + income.CategoryID + `","transaction_date":"2026-03-01","amount_minor":5000}`
	rec := doRequest(e, http.MethodPost, "/transactions", body, h.CreateTransaction, nil, nil)

	require.Equal(t, http.StatusCreated, rec.Code)

	var result ledger.CreateResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.EqualValues(t, 5000, result.Account.CurrentBalanceMinor)
}

func TestCreateTransaction_InvalidDateReturnsProblemDetails(t *testing.T) {
	e := echo.New()
	gateway := storagetest.New(t)
	src := clock.New()
	h := NewTransactionHandler(ledger.New(gateway, src))

	rec := doRequest(e, http.MethodPost, "/transactions",
		`{"account_id":"a","category_id":"c","transaction_date":"not-a-date","amount_minor":100}`, h.CreateTransaction, nil, nil)

	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var pd ProblemDetails
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pd))
	require.NotEmpty(t, pd.Detail)
}
