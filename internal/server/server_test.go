package server

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/labstack/echo/v4"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/token-swap/internal/events"
	"github.com/rovshanmuradov/token-swap/internal/export"
	"github.com/rovshanmuradov/token-swap/internal/ledger/memory"
	"github.com/rovshanmuradov/token-swap/internal/program"
	"github.com/rovshanmuradov/token-swap/internal/program/amm"
	"github.com/rovshanmuradov/token-swap/internal/program/types"
	"github.com/rovshanmuradov/token-swap/internal/utils/metrics"
	"github.com/rovshanmuradov/token-swap/internal/wallet"
)

const testAPIKey = "secret"

var testProgramID = solana.MustPublicKeyFromBase58("SwapsVeCiPHMUAtzQWZw7RjsKjgCPFwS7TmGgeCALpo")

type testServer struct {
	t   *testing.T
	srv *Server
	key string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	l := memory.New()
	bus := events.NewBus(zap.NewNop(), 64)
	t.Cleanup(func() { _ = bus.Shutdown(context.Background()) })
	journal := export.NewJournal(10)
	bus.Subscribe(events.SwapExecuted, journal)

	p, err := program.New(l, program.Options{ProgramID: testProgramID, Events: bus}, zap.NewNop())
	require.NoError(t, err)

	srv, err := NewServer(ServerDeps{
		Handlers: &Handlers{
			Program: p,
			Ledger:  l,
			Metrics: metrics.NewCollector(),
			Faucet:  NewFaucet(l, zap.NewNop()),
			Journal: journal,
			Logger:  zap.NewNop(),
		},
		Config: ServerConfig{APIKey: testAPIKey},
	})
	require.NoError(t, err)
	return &testServer{t: t, srv: srv, key: testAPIKey}
}

func (s *testServer) do(method, path string, body, out any) int {
	s.t.Helper()
	var raw []byte
	if body != nil {
		var err error
		raw, err = json.Marshal(body)
		require.NoError(s.t, err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if s.key != "" {
		req.Header.Set(APIKeyHeader, s.key)
	}
	rec := httptest.NewRecorder()
	s.srv.Handler().ServeHTTP(rec, req)
	if out != nil && rec.Body.Len() > 0 {
		require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec.Code
}

func (s *testServer) createMint(decimals uint8) solana.PublicKey {
	s.t.Helper()
	var resp CreateMintResponse
	require.Equal(s.t, http.StatusCreated, s.do(http.MethodPost, "/v1/faucet/mints", CreateMintRequest{Decimals: decimals}, &resp))
	return resp.Mint
}

func (s *testServer) fund(owner, mint solana.PublicKey, amount uint64) solana.PublicKey {
	s.t.Helper()
	var resp TokenAccountResponse
	code := s.do(http.MethodPost, "/v1/faucet/mint-to", FundRequest{Owner: owner.String(), Mint: mint.String(), Amount: amount}, &resp)
	require.Equal(s.t, http.StatusOK, code)
	return resp.Address
}

func (s *testServer) openAccount(owner, mint solana.PublicKey) solana.PublicKey {
	s.t.Helper()
	var resp TokenAccountResponse
	code := s.do(http.MethodPost, "/v1/faucet/accounts", OpenAccountRequest{Owner: owner.String(), Mint: mint.String()}, &resp)
	require.Equal(s.t, http.StatusOK, code)
	return resp.Address
}

func (s *testServer) balance(addr solana.PublicKey) uint64 {
	s.t.Helper()
	var resp TokenAccountResponse
	require.Equal(s.t, http.StatusOK, s.do(http.MethodGet, "/v1/accounts/"+addr.String(), nil, &resp))
	return resp.Amount
}

func (s *testServer) submit(ix *solana.GenericInstruction, out any, signers ...*wallet.Wallet) int {
	s.t.Helper()
	return s.do(http.MethodPost, "/v1/instructions", instructionRequest(s.t, ix, signers...), out)
}

func instructionRequest(t *testing.T, ix *solana.GenericInstruction, signers ...*wallet.Wallet) InstructionRequest {
	t.Helper()
	req, err := NewInstructionRequest(ix, NewNonce(), signers...)
	require.NoError(t, err)
	return *req
}

func newWallet(t *testing.T) *wallet.Wallet {
	t.Helper()
	w, err := wallet.Generate()
	require.NoError(t, err)
	return w
}

// pool bootstraps a funded pool through the HTTP surface only.
type pool struct {
	mintA, mintB solana.PublicKey
	pair         PairResponse
	admin        *wallet.Wallet
}

func (s *testServer) initPool() *pool {
	s.t.Helper()
	p := &pool{mintA: s.createMint(9), mintB: s.createMint(6), admin: newWallet(s.t)}
	require.Equal(s.t, http.StatusOK, s.do(http.MethodGet, fmt.Sprintf("/v1/pairs/%s/%s", p.mintA, p.mintB), nil, &p.pair))

	req := &types.InitializePoolRequest{
		Payer:      p.admin.PublicKey,
		Pool:       p.pair.Pool,
		MintA:      p.mintA,
		MintB:      p.mintB,
		VaultA:     p.pair.VaultA,
		VaultB:     p.pair.VaultB,
		ShareMint:  p.pair.ShareMint,
		Authority:  p.pair.Authority,
		FeeRateBps: 30,
	}
	var res program.Result
	require.Equal(s.t, http.StatusOK, s.submit(req.Instruction(testProgramID), &res, p.admin))
	require.Equal(s.t, program.KindInitializePool, res.Kind)
	return p
}

func (s *testServer) liquidityAccounts(p *pool, owner *wallet.Wallet, fundA, fundB uint64) types.LiquidityAccounts {
	s.t.Helper()
	return types.LiquidityAccounts{
		Owner:      owner.PublicKey,
		Pool:       p.pair.Pool,
		Authority:  p.pair.Authority,
		VaultA:     p.pair.VaultA,
		VaultB:     p.pair.VaultB,
		ShareMint:  p.pair.ShareMint,
		UserTokenA: s.fund(owner.PublicKey, p.mintA, fundA),
		UserTokenB: s.fund(owner.PublicKey, p.mintB, fundB),
		UserShares: s.openAccount(owner.PublicKey, p.pair.ShareMint),
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	var resp HealthResponse
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/v1/health", nil, &resp))
	assert.True(t, resp.OK)
	assert.Equal(t, testProgramID.String(), resp.ProgramID)
}

func TestSwapFlowOverHTTP(t *testing.T) {
	s := newTestServer(t)
	p := s.initPool()

	lp := newWallet(t)
	acc := s.liquidityAccounts(p, lp, 2_000_000_000, 4_000_000_000)
	add := &types.AddLiquidityRequest{LiquidityAccounts: acc, AmountA: 1_000_000_000, AmountB: 2_000_000_000}
	var res program.Result
	require.Equal(t, http.StatusOK, s.submit(add.Instruction(testProgramID), &res, lp))
	assert.Equal(t, uint64(1_414_213_562), res.Shares)
	assert.Equal(t, uint64(1_414_213_562), s.balance(acc.UserShares))

	var dq amm.DepositQuote
	path := fmt.Sprintf("/v1/pools/%s/deposit-quote?amount_a=100000000", p.pair.Pool)
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, path, nil, &dq))
	assert.Equal(t, uint64(200_000_000), dq.AmountB)
	assert.Equal(t, uint64(141_421_356), dq.Shares)

	var quote amm.SwapQuote
	path = fmt.Sprintf("/v1/pools/%s/quote?direction=a_to_b&amount=10000000", p.pair.Pool)
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, path, nil, &quote))
	assert.Equal(t, uint64(30_000), quote.Fee)
	assert.Equal(t, uint64(19_743_160), quote.Output)

	trader := newWallet(t)
	swap := &types.SwapRequest{
		Owner:        trader.PublicKey,
		Pool:         p.pair.Pool,
		Authority:    p.pair.Authority,
		VaultA:       p.pair.VaultA,
		VaultB:       p.pair.VaultB,
		UserTokenA:   s.fund(trader.PublicKey, p.mintA, 10_000_000),
		UserTokenB:   s.openAccount(trader.PublicKey, p.mintB),
		Direction:    types.AToB,
		AmountIn:     10_000_000,
		MinAmountOut: quote.Output,
	}
	res = program.Result{}
	require.Equal(t, http.StatusOK, s.submit(swap.Instruction(testProgramID), &res, trader))
	require.NotNil(t, res.Swap)
	assert.Equal(t, quote.Output, res.Swap.Output)
	assert.Equal(t, uint64(0), s.balance(swap.UserTokenA))
	assert.Equal(t, uint64(19_743_160), s.balance(swap.UserTokenB))

	var view program.PoolView
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/v1/pools/"+p.pair.Pool.String(), nil, &view))
	assert.Equal(t, uint64(1_010_000_000), view.ReserveA)
	assert.Equal(t, uint64(2_000_000_000-19_743_160), view.ReserveB)
	assert.Equal(t, uint64(1_414_213_562), view.TotalShares)
	assert.Equal(t, uint64(30_000), view.State.TotalFeesA)

	swapsPath := fmt.Sprintf("/v1/pools/%s/swaps", p.pair.Pool)
	require.Eventually(t, func() bool {
		var journal struct {
			SwapCount int `json:"swap_count"`
		}
		return s.do(http.MethodGet, swapsPath, nil, &journal) == http.StatusOK && journal.SwapCount == 1
	}, 2*time.Second, 10*time.Millisecond)

	req := httptest.NewRequest(http.MethodGet, swapsPath+"?format=csv&direction=a_to_b&owner="+trader.PublicKey.String(), nil)
	rec := httptest.NewRecorder()
	s.srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	rows, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "19743160", rows[1][5])

	// а повтор с той же минимальной суммой уже не проходит
	swap.UserTokenA = s.fund(trader.PublicKey, p.mintA, 10_000_000)
	var errResp ErrorResponse
	require.Equal(t, http.StatusConflict, s.submit(swap.Instruction(testProgramID), &errResp, trader))
	assert.Equal(t, "SlippageExceeded", errResp.Kind)
	assert.Equal(t, uint32(6005), errResp.Program)

	rem := &types.RemoveLiquidityRequest{LiquidityAccounts: acc, SharesIn: 1_414_213_562}
	res = program.Result{}
	require.Equal(t, http.StatusOK, s.submit(rem.Instruction(testProgramID), &res, lp))
	assert.Equal(t, view.ReserveA, res.AmountA)
	assert.Equal(t, view.ReserveB, res.AmountB)
}

func TestInstructionSignatures(t *testing.T) {
	s := newTestServer(t)
	p := s.initPool()
	trader := newWallet(t)
	swap := &types.SwapRequest{
		Owner:      trader.PublicKey,
		Pool:       p.pair.Pool,
		Authority:  p.pair.Authority,
		VaultA:     p.pair.VaultA,
		VaultB:     p.pair.VaultB,
		UserTokenA: s.fund(trader.PublicKey, p.mintA, 1000),
		UserTokenB: s.openAccount(trader.PublicKey, p.mintB),
		Direction:  types.AToB,
		AmountIn:   1000,
	}
	ix := swap.Instruction(testProgramID)

	t.Run("unsigned", func(t *testing.T) {
		var resp ErrorResponse
		assert.Equal(t, http.StatusUnauthorized, s.submit(ix, &resp))
		assert.Equal(t, "MissingSignature", resp.Kind)
	})

	t.Run("forged", func(t *testing.T) {
		req := instructionRequest(t, ix, newWallet(t))
		req.Signatures[0].PublicKey = trader.PublicKey.String()
		var resp ErrorResponse
		assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodPost, "/v1/instructions", req, &resp))
		assert.Equal(t, "MissingSignature", resp.Kind)
	})

	t.Run("signer outside signer slots", func(t *testing.T) {
		var resp ErrorResponse
		assert.Equal(t, http.StatusBadRequest, s.submit(ix, &resp, newWallet(t)))
		assert.Equal(t, "InvalidInstruction", resp.Kind)
	})

	t.Run("tampered data", func(t *testing.T) {
		req := instructionRequest(t, ix, trader)
		data, err := base58.Decode(req.Data)
		require.NoError(t, err)
		data[len(data)-1] ^= 0xff
		req.Data = base58.Encode(data)
		var resp ErrorResponse
		assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodPost, "/v1/instructions", req, &resp))
	})

	t.Run("garbage data", func(t *testing.T) {
		req := instructionRequest(t, ix, trader)
		req.Data = "0OIl"
		var resp ErrorResponse
		assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/v1/instructions", req, &resp))
		assert.Equal(t, "InvalidInstruction", resp.Kind)
	})

	t.Run("tampered nonce", func(t *testing.T) {
		req := instructionRequest(t, ix, trader)
		req.Nonce++
		var resp ErrorResponse
		assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodPost, "/v1/instructions", req, &resp))
		assert.Equal(t, "MissingSignature", resp.Kind)
	})
}

func TestReplayedInstructionRejected(t *testing.T) {
	s := newTestServer(t)
	p := s.initPool()

	lp := newWallet(t)
	add := &types.AddLiquidityRequest{
		LiquidityAccounts: s.liquidityAccounts(p, lp, 1_000_000_000, 2_000_000_000),
		AmountA:           1_000_000_000,
		AmountB:           2_000_000_000,
	}
	require.Equal(t, http.StatusOK, s.submit(add.Instruction(testProgramID), nil, lp))

	trader := newWallet(t)
	swap := &types.SwapRequest{
		Owner:      trader.PublicKey,
		Pool:       p.pair.Pool,
		Authority:  p.pair.Authority,
		VaultA:     p.pair.VaultA,
		VaultB:     p.pair.VaultB,
		UserTokenA: s.fund(trader.PublicKey, p.mintA, 10_000_000),
		UserTokenB: s.openAccount(trader.PublicKey, p.mintB),
		Direction:  types.AToB,
		AmountIn:   10_000_000,
	}
	req := instructionRequest(t, swap.Instruction(testProgramID), trader)

	var res program.Result
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/v1/instructions", req, &res))
	assert.Equal(t, uint64(19_743_160), s.balance(swap.UserTokenB))

	// второй раз тот же подписанный body не проходит, даже если средств хватает
	s.fund(trader.PublicKey, p.mintA, 10_000_000)
	var resp ErrorResponse
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/v1/instructions", req, &resp))
	assert.Equal(t, "InvalidInstruction", resp.Kind)
	assert.Equal(t, uint64(10_000_000), s.balance(swap.UserTokenA))
	assert.Equal(t, uint64(19_743_160), s.balance(swap.UserTokenB))
}

func TestReadErrors(t *testing.T) {
	s := newTestServer(t)
	missing := solana.NewWallet().PublicKey()

	tests := []struct {
		name string
		path string
		code int
		kind string
	}{
		{"bad pool key", "/v1/pools/not-a-key", http.StatusBadRequest, ""},
		{"unknown pool", "/v1/pools/" + missing.String(), http.StatusNotFound, "PoolNotInitialized"},
		{"bad direction", "/v1/pools/" + missing.String() + "/quote?direction=up&amount=1", http.StatusBadRequest, ""},
		{"bad amount", "/v1/pools/" + missing.String() + "/quote?direction=a_to_b&amount=-1", http.StatusBadRequest, ""},
		{"identical pair", fmt.Sprintf("/v1/pairs/%s/%s", missing, missing), http.StatusBadRequest, "IdenticalAssets"},
		{"unknown account", "/v1/accounts/" + missing.String(), http.StatusNotFound, ""},
		{"unknown route", "/v1/nothing", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp ErrorResponse
			assert.Equal(t, tt.code, s.do(http.MethodGet, tt.path, nil, &resp))
			assert.Equal(t, tt.code, resp.Code)
			assert.Equal(t, tt.kind, resp.Kind)
		})
	}
}

func TestAPIKeyGuardsWrites(t *testing.T) {
	s := newTestServer(t)
	s.key = "wrong"

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodPost, "/v1/faucet/mints", CreateMintRequest{Decimals: 6}, nil))
	// чтение ключа не требует
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/v1/health", nil, nil))
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.initPool()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `operation="initialize_pool",status="success"} 1`), body)
	assert.True(t, strings.Contains(body, "token_swap_request_duration_seconds"), body)
}
