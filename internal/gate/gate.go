// Package gate enforces the minimum-balance requirement for spectator voting.
package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/monclaw/arena/internal/metrics"
	"github.com/monclaw/arena/internal/mon"
)

var (
	// ErrInsufficientBalance means the voter's wallet holds less than the minimum.
	ErrInsufficientBalance = errors.New("gate: insufficient balance")
	// ErrInvalidAddress means the voter address could not be parsed.
	ErrInvalidAddress = errors.New("gate: invalid address")
)

// BalanceReader reads native balances from the chain.
type BalanceReader interface {
	BalanceAt(ctx context.Context, addr common.Address) (*big.Int, error)
}

// Gate checks that a spectator wallet holds at least the minimum balance
// before it may vote. When the RPC is unreachable the gate can fail open:
// an eligibility check should not take voting down with the RPC node.
type Gate struct {
	reader   BalanceReader
	min      *big.Int
	failOpen bool
	logger   *slog.Logger
}

// New creates a balance gate. minBalance is a human-readable MON amount.
func New(reader BalanceReader, minBalance string, failOpen bool, logger *slog.Logger) (*Gate, error) {
	min, ok := mon.Parse(minBalance)
	if !ok {
		return nil, fmt.Errorf("gate: invalid minimum balance %q", minBalance)
	}
	return &Gate{
		reader:   reader,
		min:      min,
		failOpen: failOpen,
		logger:   logger,
	}, nil
}

// MinBalance returns the configured minimum as a human-readable MON amount.
func (g *Gate) MinBalance() string {
	return mon.Format(g.min)
}

// Check verifies that addr holds at least the minimum balance.
// Returns ErrInsufficientBalance when the wallet is below the threshold.
// RPC failures pass the check when fail-open is enabled, and are logged
// loudly either way.
func (g *Gate) Check(ctx context.Context, addr string) error {
	parsed := common.HexToAddress(addr)
	if parsed == (common.Address{}) {
		metrics.GateChecksTotal.WithLabelValues("fail").Inc()
		return ErrInvalidAddress
	}

	balance, err := g.reader.BalanceAt(ctx, parsed)
	if err != nil {
		if g.failOpen {
			g.logger.Warn("balance gate RPC check failed, allowing vote",
				"address", addr,
				"error", err)
			metrics.GateChecksTotal.WithLabelValues("fail_open").Inc()
			return nil
		}
		g.logger.Error("balance gate RPC check failed, rejecting vote",
			"address", addr,
			"error", err)
		metrics.GateChecksTotal.WithLabelValues("fail").Inc()
		return fmt.Errorf("gate: balance check failed: %w", err)
	}

	if balance.Cmp(g.min) < 0 {
		metrics.GateChecksTotal.WithLabelValues("fail").Inc()
		return fmt.Errorf("%w: need %s MON, have %s MON",
			ErrInsufficientBalance, mon.Format(g.min), mon.Format(balance))
	}

	metrics.GateChecksTotal.WithLabelValues("pass").Inc()
	return nil
}
