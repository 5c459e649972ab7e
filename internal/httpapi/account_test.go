package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dafibh/fortuna/fortuna-backend/internal/registry"
	"github.com/dafibh/fortuna/fortuna-backend/internal/storagetest"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

func newAccountHandler(t *testing.T) *AccountHandler {
	t.Helper()
	return NewAccountHandler(registry.New(storagetest.New(t)))
}

func doRequest(e *echo.Echo, method, path, body string, handler echo.HandlerFunc, paramNames []string, paramValues []string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames(paramNames...)
	c.SetParamValues(paramValues...)
	_ = handler(c)
	return rec
}

func TestCreateAccount_Returns201WithAccountBody(t *testing.T) {
	e := echo.New()
	h := newAccountHandler(t)

	rec := doRequest(e, http.MethodPost, "/accounts",
		`{"name":"Visa","account_class":"credit"}`, h.CreateAccount, nil, nil)

	require.Equal(t, http.StatusCreated, rec.Code)

	var acct registry.Account
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &acct))
	require.Equal(t, "Visa", acct.Name)
	require.Equal(t, registry.AccountTypeLiability, acct.AccountType)
}

func TestCreateAccount_ValidationErrorReturnsProblemDetails(t *testing.T) {
	e := echo.New()
	h := newAccountHandler(t)

	rec := doRequest(e, http.MethodPost, "/accounts",
		`{"name":"Visa","account_class":"credit","account_type":"asset"}`, h.CreateAccount, nil, nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var pd ProblemDetails
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pd))
	require.Equal(t, errorTypeValidation, pd.Type)
}

func TestUpdateAccount_UsesPathParamAsAccountID(t *testing.T) {
	e := echo.New()
	reg := registry.New(storagetest.New(t))
	h := NewAccountHandler(reg)

	acct, err := reg.CreateAccount(context.Background(), registry.CreateAccountInput{
		Name:         "Checking",
		AccountClass: registry.AccountClassCash,
	})
	require.NoError(t, err)

	rec := doRequest(e, http.MethodPatch, "/accounts/"+acct.AccountID,
		`{"name":"Main Checking"}`, h.UpdateAccount, []string{"id"}, []string{acct.AccountID})

	require.Equal(t, http.StatusOK, rec.Code)

	var updated registry.Account
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	require.Equal(t, "Main Checking", updated.Name)
}
