package registry

import (
	"context"
	"testing"

	"github.com/dafibh/fortuna/fortuna-backend/internal/ledgererr"
	"github.com/dafibh/fortuna/fortuna-backend/internal/money"
	"github.com/dafibh/fortuna/fortuna-backend/internal/storagetest"
	"github.com/stretchr/testify/require"
)

func TestCreateAccount_DerivesTypeFromClass(t *testing.T) {
	svc := New(storagetest.New(t))

	acct, err := svc.CreateAccount(context.Background(), CreateAccountInput{
		Name:         "Visa",
		AccountClass: AccountClassCredit,
	})
	require.NoError(t, err)
	require.Equal(t, AccountTypeLiability, acct.AccountType)
	require.Equal(t, AccountRoleOnBudget, acct.AccountRole)
	require.Equal(t, "USD", acct.Currency)
}

func TestCreateAccount_RejectsTypeClassMismatch(t *testing.T) {
	svc := New(storagetest.New(t))

	_, err := svc.CreateAccount(context.Background(), CreateAccountInput{
		Name:         "Visa",
		AccountClass: AccountClassCredit,
		AccountType:  AccountTypeAsset,
	})
	require.Error(t, err)
	require.Equal(t, ledgererr.KindValidation, ledgererr.KindOf(err))
}

func TestCreateAccount_RejectsNonZeroOpeningBalance(t *testing.T) {
	svc := New(storagetest.New(t))

	_, err := svc.CreateAccount(context.Background(), CreateAccountInput{
		Name:                "Checking",
		AccountClass:        AccountClassCash,
		OpeningBalanceMinor: money.Minor(100),
	})
	require.ErrorIs(t, err, ledgererr.ErrInvalidBalance)
}

func TestCreateAccount_CreditAccountGetsPaymentCategory(t *testing.T) {
	svc := New(storagetest.New(t))

	acct, err := svc.CreateAccount(context.Background(), CreateAccountInput{
		Name:         "Visa",
		AccountClass: AccountClassCredit,
	})
	require.NoError(t, err)

	cats, err := svc.ListCategories(context.Background())
	require.NoError(t, err)

	var found bool
	for _, c := range cats {
		if c.IsPayment && c.GroupID != nil && *c.GroupID == ReservedPaymentsGroupID {
			found = true
		}
	}
	require.True(t, found, "expected a payment category for credit account %s", acct.AccountID)
}

func TestUpdateAccount_RejectsDeactivationWithNonZeroBalance(t *testing.T) {
	gateway := storagetest.New(t)
	svc := New(gateway)

	acct, err := svc.CreateAccount(context.Background(), CreateAccountInput{
		Name:         "Checking",
		AccountClass: AccountClassCash,
	})
	require.NoError(t, err)

	_, err = gateway.DB().ExecContext(context.Background(), `UPDATE accounts SET current_balance_minor = 500 WHERE account_id = ?`, acct.AccountID)
	require.NoError(t, err)

	inactive := false
	_, err = svc.UpdateAccount(context.Background(), acct.AccountID, UpdateAccountInput{IsActive: &inactive})
	require.ErrorIs(t, err, ledgererr.ErrAccountNotInactivatable)
}

func TestCreateCategory_RejectsReservedGroup(t *testing.T) {
	svc := New(storagetest.New(t))
	reserved := ReservedPaymentsGroupID

	_, err := svc.CreateCategory(context.Background(), CreateCategoryInput{
		Name:    "Hack",
		GroupID: &reserved,
	})
	require.ErrorIs(t, err, ledgererr.ErrReservedGroupProtected)
}

func TestUpdateCategory_ProtectsSystemCategories(t *testing.T) {
	svc := New(storagetest.New(t))

	_, err := svc.UpdateCategory(context.Background(), CategoryAvailableToBudget, UpdateCategoryInput{Name: stringPtr("Renamed")})
	require.ErrorIs(t, err, ledgererr.ErrSystemCategoryProtected)
}

func TestDeleteCategory_ProtectsPaymentCategories(t *testing.T) {
	svc := New(storagetest.New(t))

	acct, err := svc.CreateAccount(context.Background(), CreateAccountInput{
		Name:         "Visa",
		AccountClass: AccountClassCredit,
	})
	require.NoError(t, err)

	cats, err := svc.ListCategories(context.Background())
	require.NoError(t, err)
	var paymentCatID string
	for _, c := range cats {
		if c.IsPayment {
			paymentCatID = c.CategoryID
		}
	}
	require.NotEmpty(t, paymentCatID, "expected payment category for %s", acct.AccountID)

	err = svc.DeleteCategory(context.Background(), paymentCatID)
	require.ErrorIs(t, err, ledgererr.ErrSystemCategoryProtected)
}

func stringPtr(s string) *string { return &s }
