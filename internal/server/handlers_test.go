package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/leapstack-labs/leapledger/internal/service"
	"github.com/leapstack-labs/leapledger/internal/state"
	"github.com/leapstack-labs/leapledger/internal/testutil"
	"github.com/leapstack-labs/leapledger/pkg/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	deployer = "0x00000000000000000000000000000000000000d1"
	treasury = "0x00000000000000000000000000000000000000a1"
	user1    = "0x00000000000000000000000000000000000000b1"
	user2    = "0x00000000000000000000000000000000000000b2"
)

func setupTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	store := state.NewSQLiteStore()
	require.NoError(t, store.Open(":memory:"))
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate())

	svc, err := service.Open(context.Background(), store, testutil.NewTestLogger(t))
	require.NoError(t, err)

	srv := NewServer(Config{Service: svc, Logger: testutil.NewTestLogger(t)})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, ts *httptest.Server, path string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(ts.URL+path, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func getJSON(t *testing.T, ts *httptest.Server, path string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(ts.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func setupInitializedServer(t *testing.T) *httptest.Server {
	t.Helper()
	store := state.NewSQLiteStore()
	require.NoError(t, store.Open(":memory:"))
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate())

	svc, err := service.Open(context.Background(), store, testutil.NewTestLogger(t))
	require.NoError(t, err)
	_, err = svc.Initialize(context.Background(), token.MustParseAddress(deployer))
	require.NoError(t, err)

	srv := NewServer(Config{Service: svc, Logger: testutil.NewTestLogger(t)})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestGetToken(t *testing.T) {
	ts := setupInitializedServer(t)

	var info struct {
		Name        string `json:"name"`
		Symbol      string `json:"symbol"`
		Decimals    int    `json:"decimals"`
		Initialized bool   `json:"initialized"`
		Owner       string `json:"owner"`
		TotalSupply string `json:"total_supply"`
		TaxFraction int    `json:"tax_fraction"`
	}
	resp := getJSON(t, ts, "/api/v1/token", &info)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Dyfusion", info.Name)
	assert.Equal(t, "DFX", info.Symbol)
	assert.Equal(t, 18, info.Decimals)
	assert.True(t, info.Initialized)
	assert.Equal(t, deployer, info.Owner)
	assert.Equal(t, token.InitialSupply.Dec(), info.TotalSupply)
	assert.Equal(t, 100, info.TaxFraction)
}

func TestGetBalanceAndSupply(t *testing.T) {
	ts := setupInitializedServer(t)

	var bal struct {
		Address   string `json:"address"`
		Balance   string `json:"balance"`
		TaxExempt bool   `json:"tax_exempt"`
	}
	resp := getJSON(t, ts, "/api/v1/accounts/"+deployer+"/balance", &bal)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, token.InitialSupply.Dec(), bal.Balance)
	assert.True(t, bal.TaxExempt)

	var supply struct {
		TotalSupply string `json:"total_supply"`
	}
	resp = getJSON(t, ts, "/api/v1/supply", &supply)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, token.InitialSupply.Dec(), supply.TotalSupply)
}

func TestGetBalance_BadAddress(t *testing.T) {
	ts := setupInitializedServer(t)
	resp := getJSON(t, ts, "/api/v1/accounts/nothex/balance", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPostTransfer(t *testing.T) {
	ts := setupInitializedServer(t)

	resp := postJSON(t, ts, "/api/v1/transfers", map[string]string{
		"from":   deployer,
		"to":     user1,
		"amount": "1000",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	res := decodeBody[resultResponse](t, resp)
	assert.NotEmpty(t, res.OpID)
	require.Len(t, res.Events, 1)
	assert.Equal(t, "transfer", res.Events[0].Kind)
	assert.Equal(t, "1000", res.Events[0].Amount)

	var bal struct {
		Balance string `json:"balance"`
	}
	getJSON(t, ts, "/api/v1/accounts/"+user1+"/balance", &bal)
	assert.Equal(t, "1000", bal.Balance)
}

func TestPostTransfer_TaxedEmitsTwoEvents(t *testing.T) {
	ts := setupInitializedServer(t)

	resp := postJSON(t, ts, "/api/v1/admin/tax/receiver", map[string]string{
		"caller": deployer, "address": treasury,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = postJSON(t, ts, "/api/v1/admin/tax/enabled", map[string]any{
		"caller": deployer, "enabled": true,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// deployer is exempt; fund user1 first
	resp = postJSON(t, ts, "/api/v1/transfers", map[string]string{
		"from": deployer, "to": user1, "amount": "1000",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = postJSON(t, ts, "/api/v1/transfers", map[string]string{
		"from": user1, "to": user2, "amount": "100",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	res := decodeBody[resultResponse](t, resp)
	require.Len(t, res.Events, 2)
	assert.Equal(t, "99", res.Events[0].Amount)
	assert.Equal(t, user2, res.Events[0].To)
	assert.Equal(t, "1", res.Events[1].Amount)
	assert.Equal(t, treasury, res.Events[1].To)
}

func TestPostTransfer_InsufficientBalance(t *testing.T) {
	ts := setupInitializedServer(t)

	resp := postJSON(t, ts, "/api/v1/transfers", map[string]string{
		"from": user1, "to": user2, "amount": "1",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	errResp := decodeBody[errorResponse](t, resp)
	assert.Equal(t, token.CodeInsufficientBalance, errResp.Code)
}

func TestPostTransfer_MalformedBody(t *testing.T) {
	ts := setupInitializedServer(t)
	resp, err := http.Post(ts.URL+"/api/v1/transfers", "application/json", bytes.NewReader([]byte("{nope")))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPostApproval_Flow(t *testing.T) {
	ts := setupInitializedServer(t)

	resp := postJSON(t, ts, "/api/v1/approvals", map[string]string{
		"owner": deployer, "spender": user1, "amount": "500",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = postJSON(t, ts, "/api/v1/approvals", map[string]string{
		"owner": deployer, "spender": user1, "amount": "100", "op": "increase",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var allowance struct {
		Allowance string `json:"allowance"`
	}
	getJSON(t, ts, "/api/v1/accounts/"+deployer+"/allowances/"+user1, &allowance)
	assert.Equal(t, "600", allowance.Allowance)

	// Delegated transfer spends the allowance
	resp = postJSON(t, ts, "/api/v1/transfers", map[string]string{
		"from": deployer, "to": user2, "amount": "600", "spender": user1,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	getJSON(t, ts, "/api/v1/accounts/"+deployer+"/allowances/"+user1, &allowance)
	assert.Equal(t, "0", allowance.Allowance)
}

func TestPostApproval_InvalidOp(t *testing.T) {
	ts := setupInitializedServer(t)
	resp := postJSON(t, ts, "/api/v1/approvals", map[string]string{
		"owner": deployer, "spender": user1, "amount": "1", "op": "reset",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPostBurn(t *testing.T) {
	ts := setupInitializedServer(t)

	resp := postJSON(t, ts, "/api/v1/burns", map[string]string{
		"from": deployer, "amount": "1000",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var supply struct {
		TotalSupply string `json:"total_supply"`
	}
	getJSON(t, ts, "/api/v1/supply", &supply)
	want := token.InitialSupply.Clone()
	want.SubUint64(want, 1000)
	assert.Equal(t, want.Dec(), supply.TotalSupply)
}

func TestAdmin_NonOwnerForbidden(t *testing.T) {
	ts := setupInitializedServer(t)

	resp := postJSON(t, ts, "/api/v1/admin/tax/enabled", map[string]any{
		"caller": user1, "enabled": true,
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	errResp := decodeBody[errorResponse](t, resp)
	assert.Equal(t, token.CodeNotAuthorized, errResp.Code)
}

func TestMutation_NotInitializedConflict(t *testing.T) {
	ts := setupTestServer(t)

	resp := postJSON(t, ts, "/api/v1/admin/tax/enabled", map[string]any{
		"caller": deployer, "enabled": true,
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	errResp := decodeBody[errorResponse](t, resp)
	assert.Equal(t, token.CodeNotInitialized, errResp.Code)
}

func TestOwnershipTransferViaAPI(t *testing.T) {
	ts := setupInitializedServer(t)

	resp := postJSON(t, ts, "/api/v1/admin/owner", map[string]string{
		"caller": deployer, "new_owner": user1,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Old owner is now rejected
	resp = postJSON(t, ts, "/api/v1/admin/tax/fraction", map[string]any{
		"caller": deployer, "fraction": 50,
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// New owner is accepted
	resp = postJSON(t, ts, "/api/v1/admin/tax/fraction", map[string]any{
		"caller": user1, "fraction": 50,
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGetEvents(t *testing.T) {
	ts := setupInitializedServer(t)

	resp := postJSON(t, ts, "/api/v1/transfers", map[string]string{
		"from": deployer, "to": user1, "amount": "42",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var entries []struct {
		Seq   int64  `json:"seq"`
		OpID  string `json:"op_id"`
		Event struct {
			Kind   string `json:"kind"`
			Amount string `json:"amount"`
		} `json:"event"`
	}
	getResp := getJSON(t, ts, "/api/v1/events?limit=1", &entries)
	assert.Equal(t, http.StatusOK, getResp.StatusCode)
	require.Len(t, entries, 1)
	assert.Equal(t, "transfer", entries[0].Event.Kind)
	assert.Equal(t, "42", entries[0].Event.Amount)

	// Account filter
	getJSON(t, ts, "/api/v1/events?account="+user1, &entries)
	require.Len(t, entries, 1)

	// Bad limit
	badResp := getJSON(t, ts, "/api/v1/events?limit=no", nil)
	assert.Equal(t, http.StatusBadRequest, badResp.StatusCode)
}
