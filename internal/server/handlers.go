package server

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/labstack/echo/v4"
	"github.com/mr-tron/base58"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/token-swap/internal/export"
	"github.com/rovshanmuradov/token-swap/internal/ledger"
	"github.com/rovshanmuradov/token-swap/internal/ledger/token"
	"github.com/rovshanmuradov/token-swap/internal/program"
	"github.com/rovshanmuradov/token-swap/internal/program/authority"
	"github.com/rovshanmuradov/token-swap/internal/program/types"
	"github.com/rovshanmuradov/token-swap/internal/utils/metrics"
)

// Handlers contains all dependencies for API endpoint handlers
type Handlers struct {
	Program *program.Program   // Swap program bound to the host ledger
	Ledger  ledger.Ledger      // Host ledger, read directly for token balances
	Metrics *metrics.Collector // Optional request metrics
	Faucet  *Faucet            // nil unless the faucet is enabled
	Journal *export.Journal    // Optional recent swap history
	DevMode bool               // Include error details in responses
	Logger  *zap.Logger
}

// err returns a standardized JSON error response
func (h *Handlers) err(c echo.Context, code int, msg string, details any) error {
	resp := ErrorResponse{Error: msg, Code: code}
	if h.DevMode && details != nil {
		resp.Details = details
	}
	return c.JSON(code, resp)
}

// fail classifies a program or ledger error and writes it out.
func (h *Handlers) fail(c echo.Context, err error) error {
	status, kind := statusOf(err)
	resp := ErrorResponse{Error: err.Error(), Code: status, Kind: kind, Program: types.Code(err)}
	if status == http.StatusInternalServerError {
		h.Logger.Error("Request failed",
			zap.String("path", c.Path()),
			zap.Error(err))
		resp.Error = "internal server error"
		if h.DevMode {
			resp.Details = err.Error()
		}
	}
	return c.JSON(status, resp)
}

// withTimeout creates a context with timeout, defaulting to 10 seconds if duration <= 0
func (h *Handlers) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 10 * time.Second
	}
	return context.WithTimeout(ctx, d)
}

func pathKey(c echo.Context, name string) (solana.PublicKey, bool) {
	key, err := solana.PublicKeyFromBase58(strings.TrimSpace(c.Param(name)))
	return key, err == nil
}

// Health returns a simple health check endpoint
func (h *Handlers) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{OK: true, ProgramID: h.Program.ProgramID().String()})
}

// Pair returns the derived addresses of an asset pair; the pool may not exist yet.
func (h *Handlers) Pair(c echo.Context) error {
	a, okA := pathKey(c, "a")
	b, okB := pathKey(c, "b")
	if !okA || !okB {
		return h.err(c, http.StatusBadRequest, "invalid mint", nil)
	}
	if a.Equals(b) {
		return h.fail(c, types.ErrIdenticalAssets.Wrapf("%s", a))
	}
	addrs, err := authority.DeriveAll(h.Program.ProgramID(), a, b)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, PairResponse{
		AssetA:        a,
		AssetB:        b,
		Authority:     addrs.Authority,
		AuthorityBump: addrs.AuthorityBump,
		Pool:          addrs.Pool,
		VaultA:        addrs.VaultA,
		VaultB:        addrs.VaultB,
		ShareMint:     addrs.ShareMint,
	})
}

// Pool returns the pool record with its live reserves and share supply.
func (h *Handlers) Pool(c echo.Context) error {
	pool, ok := pathKey(c, "pool")
	if !ok {
		return h.err(c, http.StatusBadRequest, "invalid pool", nil)
	}
	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	view, err := h.Program.GetPool(ctx, pool)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

// QuoteSwap prices a swap without executing it.
// Query: direction (a_to_b | b_to_a), amount (uint64).
func (h *Handlers) QuoteSwap(c echo.Context) error {
	pool, ok := pathKey(c, "pool")
	if !ok {
		return h.err(c, http.StatusBadRequest, "invalid pool", nil)
	}
	dir, err := types.ParseDirection(c.QueryParam("direction"))
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid direction", map[string]any{"direction": "a_to_b or b_to_a"})
	}
	amount, err := strconv.ParseUint(strings.TrimSpace(c.QueryParam("amount")), 10, 64)
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid amount", map[string]any{"amount": "must be uint64"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	q, err := h.Program.QuoteSwap(ctx, pool, dir, amount)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, q)
}

// QuoteDeposit returns the B amount and shares that match amount_a.
func (h *Handlers) QuoteDeposit(c echo.Context) error {
	pool, ok := pathKey(c, "pool")
	if !ok {
		return h.err(c, http.StatusBadRequest, "invalid pool", nil)
	}
	amountA, err := strconv.ParseUint(strings.TrimSpace(c.QueryParam("amount_a")), 10, 64)
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid amount_a", map[string]any{"amount_a": "must be uint64"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	q, err := h.Program.QuoteDeposit(ctx, pool, amountA)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, q)
}

// Swaps exports the journaled swaps of a pool.
// Query: format (json | csv), direction, owner, since and until (RFC3339).
func (h *Handlers) Swaps(c echo.Context) error {
	pool, ok := pathKey(c, "pool")
	if !ok {
		return h.err(c, http.StatusBadRequest, "invalid pool", nil)
	}
	format, err := export.ParseFormat(c.QueryParam("format"))
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid format", map[string]any{"format": "json or csv"})
	}
	opts := export.ExportOptions{Format: format}
	if d := c.QueryParam("direction"); d != "" {
		dir, err := types.ParseDirection(d)
		if err != nil {
			return h.err(c, http.StatusBadRequest, "invalid direction", nil)
		}
		opts.DirectionFilter = dir.String()
	}
	if o := c.QueryParam("owner"); o != "" {
		if opts.OwnerFilter, err = solana.PublicKeyFromBase58(o); err != nil {
			return h.err(c, http.StatusBadRequest, "invalid owner", nil)
		}
	}
	for name, dst := range map[string]*time.Time{"since": &opts.StartTime, "until": &opts.EndTime} {
		if v := c.QueryParam(name); v != "" {
			if *dst, err = time.Parse(time.RFC3339, v); err != nil {
				return h.err(c, http.StatusBadRequest, "invalid "+name, map[string]any{name: "RFC3339"})
			}
		}
	}

	contentType := echo.MIMEApplicationJSONCharsetUTF8
	if format == export.FormatCSV {
		contentType = "text/csv; charset=utf-8"
	}
	c.Response().Header().Set(echo.HeaderContentType, contentType)
	c.Response().WriteHeader(http.StatusOK)
	return export.NewSwapExporter(h.Logger).Export(c.Response(), h.Journal.Swaps(pool), opts)
}

// Account returns a token account held by the host ledger.
func (h *Handlers) Account(c echo.Context) error {
	addr, ok := pathKey(c, "address")
	if !ok {
		return h.err(c, http.StatusBadRequest, "invalid address", nil)
	}
	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	var resp TokenAccountResponse
	err := h.Ledger.View(ctx, []solana.PublicKey{addr}, func(tx ledger.Txn) error {
		acc, err := token.LoadAccount(tx, addr)
		if err != nil {
			return err
		}
		resp = TokenAccountResponse{Address: addr, Mint: acc.Mint, Owner: acc.Owner, Amount: acc.Amount}
		return nil
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// SubmitInstruction verifies the signatures of a program instruction and
// runs it as one atomic unit of work. A signed (instruction, nonce) pair is
// accepted once; resubmitting it is rejected as InvalidInstruction.
func (h *Handlers) SubmitInstruction(c echo.Context) error {
	var req InstructionRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	ix, signers, err := h.decodeInstruction(&req)
	if err != nil {
		return h.fail(c, err)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	start := time.Now()
	res, err := h.Program.Process(ctx, ix, req.Nonce, signers)
	if h.Metrics != nil {
		data, _ := ix.Data()
		h.Metrics.RecordRequest(ctx, operationOf(data), time.Since(start), err, types.Kind(err))
	}
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handlers) decodeInstruction(req *InstructionRequest) (*solana.GenericInstruction, []solana.PublicKey, error) {
	programID := h.Program.ProgramID()
	if req.ProgramID != "" {
		id, err := solana.PublicKeyFromBase58(req.ProgramID)
		if err != nil {
			return nil, nil, types.ErrInvalidInstruction.Wrapf("program_id: %v", err)
		}
		programID = id
	}

	metas := make(solana.AccountMetaSlice, 0, len(req.Accounts))
	signerSlots := make(map[solana.PublicKey]bool)
	for i, a := range req.Accounts {
		key, err := solana.PublicKeyFromBase58(a.PublicKey)
		if err != nil {
			return nil, nil, types.ErrInvalidInstruction.Wrapf("account %d: %v", i, err)
		}
		metas = append(metas, solana.NewAccountMeta(key, a.IsWritable, a.IsSigner))
		if a.IsSigner {
			signerSlots[key] = true
		}
	}

	data, err := base58.Decode(req.Data)
	if err != nil {
		return nil, nil, types.ErrInvalidInstruction.Wrapf("data is not base58: %v", err)
	}
	ix := solana.NewInstruction(programID, metas, data)

	msg, err := types.SigningMessage(ix, req.Nonce)
	if err != nil {
		return nil, nil, err
	}
	signers := make([]solana.PublicKey, 0, len(req.Signatures))
	for _, s := range req.Signatures {
		key, err := solana.PublicKeyFromBase58(s.PublicKey)
		if err != nil {
			return nil, nil, types.ErrInvalidInstruction.Wrapf("signer: %v", err)
		}
		if !signerSlots[key] {
			return nil, nil, types.ErrInvalidInstruction.Wrapf("%s signed but is not a signer account", key)
		}
		sig, err := solana.SignatureFromBase58(s.Signature)
		if err != nil {
			return nil, nil, types.ErrMissingSignature.Wrapf("signature of %s: %v", key, err)
		}
		if !sig.Verify(key, msg) {
			return nil, nil, types.ErrMissingSignature.Wrapf("signature of %s does not verify", key)
		}
		signers = append(signers, key)
	}
	return ix, signers, nil
}

func operationOf(data []byte) string {
	if len(data) < 8 {
		return "unknown"
	}
	switch disc := data[:8]; {
	case bytes.Equal(disc, types.InitializePoolDiscriminator):
		return program.KindInitializePool
	case bytes.Equal(disc, types.AddLiquidityDiscriminator):
		return program.KindAddLiquidity
	case bytes.Equal(disc, types.RemoveLiquidityDiscriminator):
		return program.KindRemoveLiquidity
	case bytes.Equal(disc, types.SwapDiscriminator):
		return program.KindSwap
	default:
		return "unknown"
	}
}

// CreateMint creates a faucet-controlled mint.
func (h *Handlers) CreateMint(c echo.Context) error {
	var req CreateMintRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	mint, err := h.Faucet.CreateMint(ctx, req.Decimals)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, CreateMintResponse{Mint: mint})
}

// OpenAccount opens an associated token account.
func (h *Handlers) OpenAccount(c echo.Context) error {
	var req OpenAccountRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	owner, mint, err := parsePair(req.Owner, req.Mint)
	if err != nil {
		return h.err(c, http.StatusBadRequest, err.Error(), nil)
	}
	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	ata, err := h.Faucet.OpenAccount(ctx, owner, mint)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, TokenAccountResponse{Address: ata, Mint: mint, Owner: owner})
}

// Fund mints test tokens into an associated account.
func (h *Handlers) Fund(c echo.Context) error {
	var req FundRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	owner, mint, err := parsePair(req.Owner, req.Mint)
	if err != nil {
		return h.err(c, http.StatusBadRequest, err.Error(), nil)
	}
	if req.Amount == 0 {
		return h.err(c, http.StatusBadRequest, "invalid amount", map[string]any{"amount": "must be positive"})
	}
	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	ata, err := h.Faucet.Fund(ctx, owner, mint, req.Amount)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, TokenAccountResponse{Address: ata, Mint: mint, Owner: owner, Amount: req.Amount})
}

func parsePair(owner, mint string) (solana.PublicKey, solana.PublicKey, error) {
	o, err := solana.PublicKeyFromBase58(strings.TrimSpace(owner))
	if err != nil {
		return solana.PublicKey{}, solana.PublicKey{}, errors.New("invalid owner")
	}
	m, err := solana.PublicKeyFromBase58(strings.TrimSpace(mint))
	if err != nil {
		return solana.PublicKey{}, solana.PublicKey{}, errors.New("invalid mint")
	}
	return o, m, nil
}
