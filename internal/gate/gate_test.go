package gate

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monclaw/arena/internal/mon"
)

type stubReader struct {
	balance *big.Int
	err     error
}

func (s *stubReader) BalanceAt(ctx context.Context, addr common.Address) (*big.Int, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.balance, nil
}

const voter = "0x1234567890123456789012345678901234567890"

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestCheck_SufficientBalance(t *testing.T) {
	bal, _ := mon.Parse("0.02")
	g, err := New(&stubReader{balance: bal}, "0.01", true, testLogger())
	require.NoError(t, err)

	assert.NoError(t, g.Check(context.Background(), voter))
}

func TestCheck_ExactMinimumPasses(t *testing.T) {
	bal, _ := mon.Parse("0.01")
	g, err := New(&stubReader{balance: bal}, "0.01", true, testLogger())
	require.NoError(t, err)

	assert.NoError(t, g.Check(context.Background(), voter))
}

func TestCheck_InsufficientBalance(t *testing.T) {
	bal, _ := mon.Parse("0.001")
	g, err := New(&stubReader{balance: bal}, "0.01", true, testLogger())
	require.NoError(t, err)

	err = g.Check(context.Background(), voter)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Contains(t, err.Error(), "0.01")
	assert.Contains(t, err.Error(), "0.001")
}

func TestCheck_RPCFailureFailsOpen(t *testing.T) {
	g, err := New(&stubReader{err: errors.New("connection refused")}, "0.01", true, testLogger())
	require.NoError(t, err)

	// Fail-open: eligibility must not depend on RPC availability.
	assert.NoError(t, g.Check(context.Background(), voter))
}

func TestCheck_RPCFailureFailsClosed(t *testing.T) {
	g, err := New(&stubReader{err: errors.New("connection refused")}, "0.01", false, testLogger())
	require.NoError(t, err)

	err = g.Check(context.Background(), voter)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInsufficientBalance)
}

func TestCheck_InvalidAddress(t *testing.T) {
	g, err := New(&stubReader{balance: big.NewInt(1)}, "0.01", true, testLogger())
	require.NoError(t, err)

	assert.ErrorIs(t, g.Check(context.Background(), "not-an-address"), ErrInvalidAddress)
}

func TestNew_InvalidMinimum(t *testing.T) {
	_, err := New(&stubReader{}, "abc", true, testLogger())
	assert.Error(t, err)
}

func TestMinBalance(t *testing.T) {
	g, err := New(&stubReader{}, "0.01", true, testLogger())
	require.NoError(t, err)
	assert.Equal(t, "0.01", g.MinBalance())
}
