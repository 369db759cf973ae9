package ledger

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/veristake/bondmarket/pkg/types"
)

// MemoryLedger is an in-process Ledger implementation backed by plain maps.
// It tracks per-account balances, per-account allowances granted to the
// engine, and a single escrow account holding everything pulled in.
type MemoryLedger struct {
	mu         sync.Mutex
	decimals   uint8
	escrow     *big.Int
	balances   map[common.Address]*big.Int
	allowances map[common.Address]*big.Int
	logger     *zap.Logger
}

// NewMemory creates an empty in-memory ledger.
func NewMemory(decimals uint8, logger *zap.Logger) *MemoryLedger {
	return &MemoryLedger{
		decimals:   decimals,
		escrow:     new(big.Int),
		balances:   make(map[common.Address]*big.Int),
		allowances: make(map[common.Address]*big.Int),
		logger:     logger,
	}
}

// Decimals returns the token's decimal scaling.
func (l *MemoryLedger) Decimals() uint8 {
	return l.decimals
}

// Mint credits an account out of thin air. Test and simulation helper.
func (l *MemoryLedger) Mint(account common.Address, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[account] = new(big.Int).Add(l.balanceLocked(account), amount)
}

// Approve grants the engine permission to pull up to amount from account.
// Replaces any previous allowance.
func (l *MemoryLedger) Approve(account common.Address, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.allowances[account] = new(big.Int).Set(amount)
}

// BalanceOf returns the account's current balance.
func (l *MemoryLedger) BalanceOf(account common.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.balanceLocked(account))
}

// Allowance returns the remaining amount the engine may pull from account.
func (l *MemoryLedger) Allowance(account common.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.allowanceLocked(account))
}

// EscrowBalance returns the total value currently held by the engine.
func (l *MemoryLedger) EscrowBalance() *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.escrow)
}

// TransferIn pulls amount from the account into escrow, consuming allowance.
func (l *MemoryLedger) TransferIn(ctx context.Context, from common.Address, amount *big.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	allowance := l.allowanceLocked(from)
	if allowance.Cmp(amount) < 0 {
		return &types.InsufficientFundsError{
			Resource: "allowance",
			Need:     new(big.Int).Set(amount),
			Have:     new(big.Int).Set(allowance),
		}
	}

	balance := l.balanceLocked(from)
	if balance.Cmp(amount) < 0 {
		return &types.InsufficientFundsError{
			Resource: "balance",
			Need:     new(big.Int).Set(amount),
			Have:     new(big.Int).Set(balance),
		}
	}

	l.allowances[from] = new(big.Int).Sub(allowance, amount)
	l.balances[from] = new(big.Int).Sub(balance, amount)
	l.escrow.Add(l.escrow, amount)

	l.logger.Debug("ledger-transfer-in",
		zap.String("from", from.Hex()),
		zap.String("amount", amount.String()),
		zap.String("escrow", l.escrow.String()))

	return nil
}

// TransferOut pushes amount from escrow to the account.
func (l *MemoryLedger) TransferOut(ctx context.Context, to common.Address, amount *big.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.escrow.Cmp(amount) < 0 {
		// Escrow can only underflow if the engine's bookkeeping is broken.
		return fmt.Errorf("escrow underflow: need %s, have %s", amount, l.escrow)
	}

	l.escrow.Sub(l.escrow, amount)
	l.balances[to] = new(big.Int).Add(l.balanceLocked(to), amount)

	l.logger.Debug("ledger-transfer-out",
		zap.String("to", to.Hex()),
		zap.String("amount", amount.String()),
		zap.String("escrow", l.escrow.String()))

	return nil
}

func (l *MemoryLedger) balanceLocked(account common.Address) *big.Int {
	if b, ok := l.balances[account]; ok {
		return b
	}
	return new(big.Int)
}

func (l *MemoryLedger) allowanceLocked(account common.Address) *big.Int {
	if a, ok := l.allowances[account]; ok {
		return a
	}
	return new(big.Int)
}

func validAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return &types.ValidationError{Field: "amount", Reason: "must be positive"}
	}
	return nil
}
