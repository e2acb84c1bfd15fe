package chain

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testKey      = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
	testContract = "0x1111111111111111111111111111111111111111"
)

// mockEthClient implements EthClient for tests
type mockEthClient struct {
	nonce      uint64
	sendErr    error
	receipt    *types.Receipt
	receiptErr error
	callResult []byte
	callErr    error
	logs       []types.Log
	balance    *big.Int
	block      uint64

	sent []*types.Transaction
}

func (m *mockEthClient) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return m.nonce, nil
}

func (m *mockEthClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (m *mockEthClient) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	return 150000, nil
}

func (m *mockEthClient) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, tx)
	return nil
}

func (m *mockEthClient) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	if m.receiptErr != nil {
		return nil, m.receiptErr
	}
	return m.receipt, nil
}

func (m *mockEthClient) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if m.callErr != nil {
		return nil, m.callErr
	}
	return m.callResult, nil
}

func (m *mockEthClient) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	return m.balance, nil
}

func (m *mockEthClient) BlockNumber(ctx context.Context) (uint64, error) {
	return m.block, nil
}

func (m *mockEthClient) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	return m.logs, nil
}

func (m *mockEthClient) Close() {}

func newTestClient(t *testing.T, mock *mockEthClient) *Client {
	t.Helper()
	c, err := New(Config{
		RPCURL:          "https://testnet-rpc.monad.xyz",
		PrivateKey:      testKey,
		ChainID:         10143,
		ContractAddress: testContract,
		ConfirmTimeout:  2 * time.Second,
	}, WithClient(mock), WithPollInterval(10*time.Millisecond))
	require.NoError(t, err)
	return c
}

// packEventLog builds a receipt log for a named contract event.
func packEventLog(t *testing.T, c *Client, event string, arenaID uint64, data ...interface{}) types.Log {
	t.Helper()
	ev, ok := c.arenaABI.Events[event]
	require.True(t, ok, "unknown event %s", event)

	packed, err := ev.Inputs.NonIndexed().Pack(data...)
	require.NoError(t, err)

	return types.Log{
		Address: common.HexToAddress(testContract),
		Topics:  []common.Hash{ev.ID, common.BigToHash(new(big.Int).SetUint64(arenaID))},
		Data:    packed,
	}
}

func okReceipt(logs ...types.Log) *types.Receipt {
	receipt := &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		BlockNumber: big.NewInt(1234),
		GasUsed:     90000,
	}
	for i := range logs {
		receipt.Logs = append(receipt.Logs, &logs[i])
	}
	return receipt
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "valid full config",
			cfg: Config{
				RPCURL:          "https://testnet-rpc.monad.xyz",
				PrivateKey:      testKey,
				ChainID:         10143,
				ContractAddress: testContract,
			},
			wantErr: false,
		},
		{
			name: "valid with 0x prefixed key",
			cfg: Config{
				RPCURL:     "https://testnet-rpc.monad.xyz",
				PrivateKey: "0x" + testKey,
				ChainID:    10143,
			},
			wantErr: false,
		},
		{
			name: "read-only client without key or contract",
			cfg: Config{
				RPCURL:  "https://testnet-rpc.monad.xyz",
				ChainID: 10143,
			},
			wantErr: false,
		},
		{
			name: "missing RPC URL",
			cfg: Config{
				PrivateKey: testKey,
				ChainID:    10143,
			},
			wantErr: true,
		},
		{
			name: "invalid private key length",
			cfg: Config{
				RPCURL:     "https://testnet-rpc.monad.xyz",
				PrivateKey: "tooshort",
				ChainID:    10143,
			},
			wantErr: true,
		},
		{
			name: "missing chain ID",
			cfg: Config{
				RPCURL:     "https://testnet-rpc.monad.xyz",
				PrivateKey: testKey,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateConfig(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCreateArena_DecodesEvent(t *testing.T) {
	mock := &mockEthClient{nonce: 7}
	c := newTestClient(t, mock)

	topicHash := TopicHash("will ai agents replace middle management")
	stake := big.NewInt(10_000_000_000_000_000) // 0.01 MON
	endTime := uint64(time.Now().Add(10 * time.Minute).Unix())
	creator := common.HexToAddress("0x2222222222222222222222222222222222222222")

	mock.receipt = okReceipt(packEventLog(t, c, EventArenaCreated, 5,
		topicHash, stake, new(big.Int).SetUint64(endTime), creator))

	res, err := c.CreateArena(context.Background(), topicHash, stake, endTime)
	require.NoError(t, err)

	assert.Equal(t, uint64(5), res.ArenaID)
	assert.Equal(t, topicHash, res.TopicHash)
	assert.Equal(t, 0, stake.Cmp(res.StakeAmount))
	assert.Equal(t, endTime, res.EndTime)
	assert.Equal(t, creator.Hex(), res.Creator)
	assert.Equal(t, uint64(7), res.Nonce)
	assert.Equal(t, uint64(1234), res.BlockNumber)
	require.Len(t, mock.sent, 1)
	assert.Equal(t, 0, stake.Cmp(mock.sent[0].Value()), "stake must ride as tx value")
}

func TestCreateArena_Reverted(t *testing.T) {
	mock := &mockEthClient{}
	c := newTestClient(t, mock)

	mock.receipt = &types.Receipt{
		Status:      types.ReceiptStatusFailed,
		BlockNumber: big.NewInt(1234),
	}

	_, err := c.CreateArena(context.Background(), TopicHash("x"), big.NewInt(1), 100)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTxReverted)

	var callErr *CallError
	require.ErrorAs(t, err, &callErr)
	assert.Equal(t, "createArena", callErr.Op)
	assert.NotEmpty(t, callErr.TxHash)
}

func TestCreateArena_ConfirmTimeout(t *testing.T) {
	mock := &mockEthClient{receiptErr: errors.New("not found")}
	c, err := New(Config{
		RPCURL:          "https://testnet-rpc.monad.xyz",
		PrivateKey:      testKey,
		ChainID:         10143,
		ContractAddress: testContract,
		ConfirmTimeout:  50 * time.Millisecond,
	}, WithClient(mock), WithPollInterval(10*time.Millisecond))
	require.NoError(t, err)

	_, err = c.CreateArena(context.Background(), TopicHash("x"), big.NewInt(1), 100)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfirmTimeout)
	// The transaction was still submitted; the caller must not assume failure.
	assert.Len(t, mock.sent, 1)
}

func TestCreateArena_EventMissing(t *testing.T) {
	mock := &mockEthClient{}
	c := newTestClient(t, mock)

	mock.receipt = okReceipt() // confirmed but no ArenaCreated log

	_, err := c.CreateArena(context.Background(), TopicHash("x"), big.NewInt(1), 100)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEventMissing)
}

func TestJoinArena_DecodesEvent(t *testing.T) {
	mock := &mockEthClient{}
	c := newTestClient(t, mock)

	debater := common.HexToAddress("0x3333333333333333333333333333333333333333")
	mock.receipt = okReceipt(packEventLog(t, c, EventDebaterJoined, 5, debater, SideCon))

	res, err := c.JoinArena(context.Background(), 5, big.NewInt(1))
	require.NoError(t, err)
	assert.Equal(t, uint64(5), res.ArenaID)
	assert.Equal(t, debater.Hex(), res.Debater)
	assert.Equal(t, SideCon, res.Side)
}

func TestVote_RejectsInvalidSide(t *testing.T) {
	c := newTestClient(t, &mockEthClient{})
	_, err := c.Vote(context.Background(), 1, 3, big.NewInt(1))
	assert.Error(t, err)
}

func TestFinalize_DecodesEvent(t *testing.T) {
	mock := &mockEthClient{}
	c := newTestClient(t, mock)

	winner := common.HexToAddress("0x4444444444444444444444444444444444444444")
	payout := big.NewInt(20_000_000_000_000_000)
	mock.receipt = okReceipt(packEventLog(t, c, EventArenaFinalized, 5, SidePro, winner, payout))

	res, err := c.Finalize(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), res.ArenaID)
	assert.Equal(t, SidePro, res.WinningSide)
	assert.Equal(t, winner.Hex(), res.Winner)
	assert.Equal(t, 0, payout.Cmp(res.Payout))
}

func TestWrites_NotConfigured(t *testing.T) {
	c, err := New(Config{
		RPCURL:  "https://testnet-rpc.monad.xyz",
		ChainID: 10143,
	}, WithClient(&mockEthClient{}))
	require.NoError(t, err)

	_, err = c.CreateArena(context.Background(), TopicHash("x"), big.NewInt(1), 100)
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = c.GetArena(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestGetArena_DecodesState(t *testing.T) {
	mock := &mockEthClient{}
	c := newTestClient(t, mock)

	topicHash := TopicHash("topic")
	pro := common.HexToAddress("0x5555555555555555555555555555555555555555")
	con := common.HexToAddress("0x6666666666666666666666666666666666666666")

	packed, err := c.arenaABI.Methods["getArena"].Outputs.Pack(
		topicHash,
		big.NewInt(10),   // stakeAmount
		big.NewInt(9999), // endTime
		pro, con,
		big.NewInt(3), big.NewInt(1), // proVotes, conVotes
		big.NewInt(24),   // totalPot
		StatusVoting,     // status
		common.Address{}, // winner
	)
	require.NoError(t, err)
	mock.callResult = packed

	state, err := c.GetArena(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), state.ArenaID)
	assert.Equal(t, topicHash, state.TopicHash)
	assert.Equal(t, pro.Hex(), state.ProDebater)
	assert.Equal(t, con.Hex(), state.ConDebater)
	assert.Equal(t, StatusVoting, state.Status)
	assert.Equal(t, int64(3), state.ProVotes.Int64())
	assert.Equal(t, uint64(9999), state.EndTime)
}

func TestFilterArenaEvents(t *testing.T) {
	mock := &mockEthClient{}
	c := newTestClient(t, mock)

	created := packEventLog(t, c, EventArenaCreated, 1,
		TopicHash("a"), big.NewInt(10), big.NewInt(100), common.HexToAddress("0x01"))
	created.BlockNumber = 50
	finalized := packEventLog(t, c, EventArenaFinalized, 1,
		SideCon, common.HexToAddress("0x02"), big.NewInt(20))
	finalized.BlockNumber = 80
	mock.logs = []types.Log{created, finalized}

	events, err := c.FilterArenaEvents(context.Background(), 0, 100)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, EventArenaCreated, events[0].Name)
	assert.Equal(t, uint64(1), events[0].ArenaID)
	require.NotNil(t, events[0].Created)
	assert.Equal(t, uint64(50), events[0].BlockNumber)

	assert.Equal(t, EventArenaFinalized, events[1].Name)
	require.NotNil(t, events[1].Finalized)
	assert.Equal(t, SideCon, events[1].Finalized.WinningSide)
}

func TestSideAndStatusMapping(t *testing.T) {
	side, ok := SideFromStance("pro")
	assert.True(t, ok)
	assert.Equal(t, SidePro, side)

	side, ok = SideFromStance("CON")
	assert.True(t, ok)
	assert.Equal(t, SideCon, side)

	_, ok = SideFromStance("neutral")
	assert.False(t, ok)

	assert.Equal(t, "pro", StanceFromSide(SidePro))
	assert.Equal(t, "con", StanceFromSide(SideCon))
	assert.Equal(t, "", StanceFromSide(0))

	assert.Equal(t, "active", StatusLabel(StatusActive))
	assert.Equal(t, "voting", StatusLabel(StatusVoting))
	assert.Equal(t, "finalized", StatusLabel(StatusFinalized))
	assert.Equal(t, "unknown", StatusLabel(9))
}

func TestCallError(t *testing.T) {
	tests := []struct {
		name     string
		err      *CallError
		contains string
	}{
		{
			name: "with tx hash",
			err: &CallError{
				Op:     "vote",
				TxHash: "0xabc123",
				Err:    errors.New("network error"),
			},
			contains: "0xabc123",
		},
		{
			name: "without tx hash",
			err: &CallError{
				Op:  "createArena/nonce",
				Err: errors.New("failed to get nonce"),
			},
			contains: "createArena/nonce failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, tt.err.Error(), tt.contains)
			assert.True(t, errors.Is(tt.err, tt.err.Err))
		})
	}
}

func TestExplorerURLs(t *testing.T) {
	e := NewExplorer("")
	assert.Equal(t, "https://testnet.monadscan.com/tx/0xabc", e.TxURL("0xabc"))
	assert.Equal(t, "https://testnet.monadscan.com/address/0xdef", e.AddressURL("0xdef"))
	assert.Equal(t, "", e.TxURL(""))

	custom := NewExplorer("https://explorer.example.com/")
	assert.Equal(t, "https://explorer.example.com/tx/0xabc", custom.TxURL("0xabc"))
}
