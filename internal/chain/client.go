// Package chain handles all blockchain interactions with the DebateArena contract.
package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// -----------------------------------------------------------------------------
// Errors - typed errors for programmatic handling
// -----------------------------------------------------------------------------

var (
	ErrNotConfigured     = errors.New("chain: contract address or signer not configured")
	ErrInvalidPrivateKey = errors.New("chain: invalid private key")
	ErrInvalidAmount     = errors.New("chain: invalid amount")
	ErrTxReverted        = errors.New("chain: transaction reverted")
	ErrConfirmTimeout    = errors.New("chain: confirmation timed out")
	ErrRPCConnection     = errors.New("chain: RPC connection failed")
	ErrEventMissing      = errors.New("chain: expected event not found in receipt")
)

// CallError wraps contract call failures with context
type CallError struct {
	Op     string // Operation that failed
	TxHash string // Transaction hash if available
	Err    error  // Underlying error
}

func (e *CallError) Error() string {
	if e.TxHash != "" {
		return fmt.Sprintf("chain: %s failed (tx: %s): %v", e.Op, e.TxHash, e.Err)
	}
	return fmt.Sprintf("chain: %s failed: %v", e.Op, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

// -----------------------------------------------------------------------------
// Interfaces - for testability and flexibility
// -----------------------------------------------------------------------------

// EthClient abstracts go-ethereum client for testing
type EthClient interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	Close()
}

// ArenaReader is the read-only view of the DebateArena contract.
type ArenaReader interface {
	GetArena(ctx context.Context, arenaID uint64) (*ArenaState, error)
	HasVoted(ctx context.Context, arenaID uint64, voter common.Address) (bool, error)
	ArenaCount(ctx context.Context) (uint64, error)
	BalanceAt(ctx context.Context, addr common.Address) (*big.Int, error)
}

// ArenaWriter submits state-changing DebateArena transactions with the
// configured server signer.
type ArenaWriter interface {
	CreateArena(ctx context.Context, topicHash [32]byte, stakeWei *big.Int, endTime uint64) (*CreateResult, error)
	JoinArena(ctx context.Context, arenaID uint64, stakeWei *big.Int) (*JoinResult, error)
	Vote(ctx context.Context, arenaID uint64, side uint8, stakeWei *big.Int) (*VoteResult, error)
	Finalize(ctx context.Context, arenaID uint64) (*FinalizeResult, error)
}

// ArenaContract combines the full contract surface.
type ArenaContract interface {
	ArenaReader
	ArenaWriter
	Address() string
	Close() error
}

// -----------------------------------------------------------------------------
// Constants
// -----------------------------------------------------------------------------

// arenaABI is the DebateArena contract interface.
const arenaABI = `[
	{"type":"function","name":"arenaCount","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"createArena","stateMutability":"payable","inputs":[{"name":"topicHash","type":"bytes32"},{"name":"endTime","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"joinArena","stateMutability":"payable","inputs":[{"name":"arenaId","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"vote","stateMutability":"payable","inputs":[{"name":"arenaId","type":"uint256"},{"name":"side","type":"uint8"}],"outputs":[]},
	{"type":"function","name":"finalize","stateMutability":"nonpayable","inputs":[{"name":"arenaId","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"getArena","stateMutability":"view","inputs":[{"name":"arenaId","type":"uint256"}],"outputs":[{"name":"topicHash","type":"bytes32"},{"name":"stakeAmount","type":"uint256"},{"name":"endTime","type":"uint256"},{"name":"proDebater","type":"address"},{"name":"conDebater","type":"address"},{"name":"proVotes","type":"uint256"},{"name":"conVotes","type":"uint256"},{"name":"totalPot","type":"uint256"},{"name":"status","type":"uint8"},{"name":"winner","type":"address"}]},
	{"type":"function","name":"hasVoted","stateMutability":"view","inputs":[{"name":"arenaId","type":"uint256"},{"name":"voter","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"event","name":"ArenaCreated","inputs":[{"name":"arenaId","type":"uint256","indexed":true},{"name":"topicHash","type":"bytes32","indexed":false},{"name":"stakeAmount","type":"uint256","indexed":false},{"name":"endTime","type":"uint256","indexed":false},{"name":"creator","type":"address","indexed":false}]},
	{"type":"event","name":"DebaterJoined","inputs":[{"name":"arenaId","type":"uint256","indexed":true},{"name":"debater","type":"address","indexed":false},{"name":"side","type":"uint8","indexed":false}]},
	{"type":"event","name":"VoteCast","inputs":[{"name":"arenaId","type":"uint256","indexed":true},{"name":"voter","type":"address","indexed":false},{"name":"side","type":"uint8","indexed":false},{"name":"stake","type":"uint256","indexed":false}]},
	{"type":"event","name":"ArenaFinalized","inputs":[{"name":"arenaId","type":"uint256","indexed":true},{"name":"winningSide","type":"uint8","indexed":false},{"name":"winner","type":"address","indexed":false},{"name":"payout","type":"uint256","indexed":false}]}
]`

// Contract side encoding.
const (
	SidePro uint8 = 1
	SideCon uint8 = 2
)

// Contract status encoding.
const (
	StatusActive    uint8 = 0
	StatusVoting    uint8 = 1
	StatusFinalized uint8 = 2
)

const (
	// DefaultGasLimit for contract calls when estimation fails
	DefaultGasLimit = uint64(300000)

	// DefaultConfirmationTimeout for waiting on transactions
	DefaultConfirmationTimeout = 60 * time.Second

	// ConfirmationPollInterval between receipt checks
	ConfirmationPollInterval = 2 * time.Second
)

// -----------------------------------------------------------------------------
// Types
// -----------------------------------------------------------------------------

// Config for creating a new chain client
type Config struct {
	RPCURL          string
	PrivateKey      string // Hex string, 0x prefix optional. Empty for read-only clients.
	ChainID         int64
	ContractAddress string // Empty until the contract is deployed; calls return ErrNotConfigured.
	ConfirmTimeout  time.Duration
}

// Option configures the client
type Option func(*Client)

// WithClient sets a custom Ethereum client (useful for testing)
func WithClient(client EthClient) Option {
	return func(c *Client) {
		c.client = client
	}
}

// WithPollInterval overrides the receipt poll interval (useful for testing)
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		c.pollInterval = d
	}
}

// TxResult contains common details of a confirmed transaction.
type TxResult struct {
	TxHash      string
	BlockNumber uint64
	GasUsed     uint64
	Nonce       uint64
}

// CreateResult is the decoded outcome of createArena.
type CreateResult struct {
	TxResult
	ArenaID     uint64
	TopicHash   [32]byte
	StakeAmount *big.Int
	EndTime     uint64
	Creator     string
}

// JoinResult is the decoded outcome of joinArena.
type JoinResult struct {
	TxResult
	ArenaID uint64
	Debater string
	Side    uint8
}

// VoteResult is the decoded outcome of vote.
type VoteResult struct {
	TxResult
	ArenaID uint64
	Voter   string
	Side    uint8
	Stake   *big.Int
}

// FinalizeResult is the decoded outcome of finalize.
type FinalizeResult struct {
	TxResult
	ArenaID     uint64
	WinningSide uint8
	Winner      string
	Payout      *big.Int
}

// ArenaState is the on-chain view of an arena from getArena.
type ArenaState struct {
	ArenaID     uint64
	TopicHash   [32]byte
	StakeAmount *big.Int
	EndTime     uint64
	ProDebater  string
	ConDebater  string
	ProVotes    *big.Int
	ConVotes    *big.Int
	TotalPot    *big.Int
	Status      uint8
	Winner      string
}

// Client talks to the DebateArena contract on Monad.
// A single server signer submits all transactions; txMu serializes nonce
// acquisition and submission so concurrent callers never race the nonce.
type Client struct {
	client         EthClient
	privateKey     *ecdsa.PrivateKey
	address        common.Address
	chainID        *big.Int
	contract       common.Address
	hasContract    bool
	arenaABI       abi.ABI
	confirmTimeout time.Duration
	pollInterval   time.Duration

	txMu sync.Mutex
}

// Compile-time interface check
var _ ArenaContract = (*Client)(nil)

// New creates a new chain client
func New(cfg Config, opts ...Option) (*Client, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	parsedABI, err := abi.JSON(strings.NewReader(arenaABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse DebateArena ABI: %w", err)
	}

	c := &Client{
		chainID:        big.NewInt(cfg.ChainID),
		arenaABI:       parsedABI,
		confirmTimeout: cfg.ConfirmTimeout,
	}
	if c.confirmTimeout == 0 {
		c.confirmTimeout = DefaultConfirmationTimeout
	}
	c.pollInterval = ConfirmationPollInterval

	if cfg.PrivateKey != "" {
		privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
		}
		publicKey, ok := privateKey.Public().(*ecdsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("%w: failed to derive public key", ErrInvalidPrivateKey)
		}
		c.privateKey = privateKey
		c.address = crypto.PubkeyToAddress(*publicKey)
	}

	if cfg.ContractAddress != "" {
		c.contract = common.HexToAddress(cfg.ContractAddress)
		c.hasContract = true
	}

	// Apply options
	for _, opt := range opts {
		opt(c)
	}

	// Connect to RPC if no client provided
	if c.client == nil {
		client, err := ethclient.Dial(cfg.RPCURL)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRPCConnection, err)
		}
		c.client = client
	}

	return c, nil
}

func validateConfig(cfg Config) error {
	if cfg.RPCURL == "" {
		return fmt.Errorf("%w: RPC URL required", ErrRPCConnection)
	}
	if cfg.PrivateKey != "" {
		key := strings.TrimPrefix(cfg.PrivateKey, "0x")
		if len(key) != 64 {
			return fmt.Errorf("%w: must be 64 hex characters", ErrInvalidPrivateKey)
		}
	}
	if cfg.ChainID == 0 {
		return fmt.Errorf("chain ID required")
	}
	return nil
}

// Address returns the server signer's address, or the zero address for
// read-only clients.
func (c *Client) Address() string {
	return c.address.Hex()
}

// ContractAddress returns the DebateArena contract address.
func (c *Client) ContractAddress() string {
	return c.contract.Hex()
}

// Configured reports whether the client can submit transactions.
func (c *Client) Configured() bool {
	return c.hasContract && c.privateKey != nil
}

// BalanceAt returns the native MON balance of an address.
func (c *Client) BalanceAt(ctx context.Context, addr common.Address) (*big.Int, error) {
	bal, err := c.client.BalanceAt(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRPCConnection, err)
	}
	return bal, nil
}

// -----------------------------------------------------------------------------
// Reads
// -----------------------------------------------------------------------------

// GetArena reads the full on-chain state of an arena.
func (c *Client) GetArena(ctx context.Context, arenaID uint64) (*ArenaState, error) {
	if !c.hasContract {
		return nil, ErrNotConfigured
	}

	data, err := c.arenaABI.Pack("getArena", new(big.Int).SetUint64(arenaID))
	if err != nil {
		return nil, fmt.Errorf("failed to pack getArena call: %w", err)
	}

	result, err := c.client.CallContract(ctx, ethereum.CallMsg{
		To:   &c.contract,
		Data: data,
	}, nil)
	if err != nil {
		return nil, &CallError{Op: "getArena", Err: err}
	}

	out, err := c.arenaABI.Unpack("getArena", result)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack getArena result: %w", err)
	}
	if len(out) != 10 {
		return nil, fmt.Errorf("getArena: unexpected output arity %d", len(out))
	}

	state := &ArenaState{
		ArenaID:     arenaID,
		TopicHash:   out[0].([32]byte),
		StakeAmount: out[1].(*big.Int),
		EndTime:     out[2].(*big.Int).Uint64(),
		ProDebater:  out[3].(common.Address).Hex(),
		ConDebater:  out[4].(common.Address).Hex(),
		ProVotes:    out[5].(*big.Int),
		ConVotes:    out[6].(*big.Int),
		TotalPot:    out[7].(*big.Int),
		Status:      out[8].(uint8),
		Winner:      out[9].(common.Address).Hex(),
	}
	return state, nil
}

// HasVoted reports whether an address has already voted in an arena.
func (c *Client) HasVoted(ctx context.Context, arenaID uint64, voter common.Address) (bool, error) {
	if !c.hasContract {
		return false, ErrNotConfigured
	}

	data, err := c.arenaABI.Pack("hasVoted", new(big.Int).SetUint64(arenaID), voter)
	if err != nil {
		return false, fmt.Errorf("failed to pack hasVoted call: %w", err)
	}

	result, err := c.client.CallContract(ctx, ethereum.CallMsg{
		To:   &c.contract,
		Data: data,
	}, nil)
	if err != nil {
		return false, &CallError{Op: "hasVoted", Err: err}
	}

	out, err := c.arenaABI.Unpack("hasVoted", result)
	if err != nil {
		return false, fmt.Errorf("failed to unpack hasVoted result: %w", err)
	}
	return out[0].(bool), nil
}

// ArenaCount returns the total number of arenas created on-chain.
func (c *Client) ArenaCount(ctx context.Context) (uint64, error) {
	if !c.hasContract {
		return 0, ErrNotConfigured
	}

	data, err := c.arenaABI.Pack("arenaCount")
	if err != nil {
		return 0, fmt.Errorf("failed to pack arenaCount call: %w", err)
	}

	result, err := c.client.CallContract(ctx, ethereum.CallMsg{
		To:   &c.contract,
		Data: data,
	}, nil)
	if err != nil {
		return 0, &CallError{Op: "arenaCount", Err: err}
	}

	out, err := c.arenaABI.Unpack("arenaCount", result)
	if err != nil {
		return 0, fmt.Errorf("failed to unpack arenaCount result: %w", err)
	}
	return out[0].(*big.Int).Uint64(), nil
}

// -----------------------------------------------------------------------------
// Writes
// -----------------------------------------------------------------------------

// CreateArena creates a new arena staking stakeWei, waits for confirmation,
// and returns the decoded ArenaCreated event.
func (c *Client) CreateArena(ctx context.Context, topicHash [32]byte, stakeWei *big.Int, endTime uint64) (*CreateResult, error) {
	if stakeWei == nil || stakeWei.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}

	data, err := c.arenaABI.Pack("createArena", topicHash, new(big.Int).SetUint64(endTime))
	if err != nil {
		return nil, &CallError{Op: "createArena", Err: err}
	}

	receipt, res, err := c.submitAndConfirm(ctx, "createArena", data, stakeWei)
	if err != nil {
		return nil, err
	}

	ev, err := c.decodeArenaCreated(receipt)
	if err != nil {
		return nil, &CallError{Op: "createArena", TxHash: res.TxHash, Err: err}
	}
	ev.TxResult = *res
	return ev, nil
}

// JoinArena joins an existing arena as the second debater, staking stakeWei.
// The caller must pass the arena's stored stake amount; the contract rejects
// mismatched values.
func (c *Client) JoinArena(ctx context.Context, arenaID uint64, stakeWei *big.Int) (*JoinResult, error) {
	if stakeWei == nil || stakeWei.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}

	data, err := c.arenaABI.Pack("joinArena", new(big.Int).SetUint64(arenaID))
	if err != nil {
		return nil, &CallError{Op: "joinArena", Err: err}
	}

	receipt, res, err := c.submitAndConfirm(ctx, "joinArena", data, stakeWei)
	if err != nil {
		return nil, err
	}

	ev, err := c.decodeDebaterJoined(receipt)
	if err != nil {
		return nil, &CallError{Op: "joinArena", TxHash: res.TxHash, Err: err}
	}
	ev.TxResult = *res
	return ev, nil
}

// Vote casts a spectator vote for a side, staking stakeWei.
func (c *Client) Vote(ctx context.Context, arenaID uint64, side uint8, stakeWei *big.Int) (*VoteResult, error) {
	if side != SidePro && side != SideCon {
		return nil, fmt.Errorf("chain: invalid side %d", side)
	}
	if stakeWei == nil || stakeWei.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}

	data, err := c.arenaABI.Pack("vote", new(big.Int).SetUint64(arenaID), side)
	if err != nil {
		return nil, &CallError{Op: "vote", Err: err}
	}

	receipt, res, err := c.submitAndConfirm(ctx, "vote", data, stakeWei)
	if err != nil {
		return nil, err
	}

	ev, err := c.decodeVoteCast(receipt)
	if err != nil {
		return nil, &CallError{Op: "vote", TxHash: res.TxHash, Err: err}
	}
	ev.TxResult = *res
	return ev, nil
}

// Finalize settles an arena and returns the decoded ArenaFinalized event.
func (c *Client) Finalize(ctx context.Context, arenaID uint64) (*FinalizeResult, error) {
	data, err := c.arenaABI.Pack("finalize", new(big.Int).SetUint64(arenaID))
	if err != nil {
		return nil, &CallError{Op: "finalize", Err: err}
	}

	receipt, res, err := c.submitAndConfirm(ctx, "finalize", data, nil)
	if err != nil {
		return nil, err
	}

	ev, err := c.decodeArenaFinalized(receipt)
	if err != nil {
		return nil, &CallError{Op: "finalize", TxHash: res.TxHash, Err: err}
	}
	ev.TxResult = *res
	return ev, nil
}

// submitAndConfirm builds, signs, and sends a contract transaction, then
// waits for the receipt. The tx mutex is held only through submission so
// confirmation waits never block other writers.
func (c *Client) submitAndConfirm(ctx context.Context, op string, data []byte, value *big.Int) (*types.Receipt, *TxResult, error) {
	if !c.Configured() {
		return nil, nil, ErrNotConfigured
	}
	if value == nil {
		value = big.NewInt(0)
	}

	c.txMu.Lock()
	signedTx, nonce, err := c.buildAndSend(ctx, op, data, value)
	c.txMu.Unlock()
	if err != nil {
		return nil, nil, err
	}

	txHash := signedTx.Hash().Hex()
	receipt, err := c.waitForReceipt(ctx, signedTx.Hash())
	if err != nil {
		return nil, nil, &CallError{Op: op, TxHash: txHash, Err: err}
	}
	if receipt.Status == 0 {
		return nil, nil, &CallError{Op: op, TxHash: txHash, Err: ErrTxReverted}
	}

	return receipt, &TxResult{
		TxHash:      txHash,
		BlockNumber: receipt.BlockNumber.Uint64(),
		GasUsed:     receipt.GasUsed,
		Nonce:       nonce,
	}, nil
}

func (c *Client) buildAndSend(ctx context.Context, op string, data []byte, value *big.Int) (*types.Transaction, uint64, error) {
	nonce, err := c.client.PendingNonceAt(ctx, c.address)
	if err != nil {
		return nil, 0, &CallError{Op: op + "/nonce", Err: err}
	}

	gasPrice, err := c.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, 0, &CallError{Op: op + "/gas_price", Err: err}
	}

	gasLimit, err := c.client.EstimateGas(ctx, ethereum.CallMsg{
		From:  c.address,
		To:    &c.contract,
		Value: value,
		Data:  data,
	})
	if err != nil {
		// Use default if estimation fails
		gasLimit = DefaultGasLimit
	}

	tx := types.NewTransaction(nonce, c.contract, value, gasLimit, gasPrice, data)

	signedTx, err := types.SignTx(tx, types.NewEIP155Signer(c.chainID), c.privateKey)
	if err != nil {
		return nil, 0, &CallError{Op: op + "/sign", Err: err}
	}

	if err := c.client.SendTransaction(ctx, signedTx); err != nil {
		return nil, 0, &CallError{Op: op + "/send", TxHash: signedTx.Hash().Hex(), Err: err}
	}
	return signedTx, nonce, nil
}

// waitForReceipt polls until the transaction is mined or the confirmation
// window elapses. A timeout here does not mean the transaction failed; it may
// still land later, which the reconciliation watcher picks up.
func (c *Client) waitForReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, c.confirmTimeout)
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, ErrConfirmTimeout
			}
			return nil, ctx.Err()

		case <-ticker.C:
			receipt, err := c.client.TransactionReceipt(ctx, hash)
			if err != nil {
				// Transaction not yet mined, continue waiting
				continue
			}
			return receipt, nil
		}
	}
}

// Close closes the client connection
func (c *Client) Close() error {
	if c.client != nil {
		c.client.Close()
	}
	return nil
}

// TopicHash returns the keccak256 hash of a debate topic, as stored on-chain.
func TopicHash(topic string) [32]byte {
	var h [32]byte
	copy(h[:], crypto.Keccak256([]byte(topic)))
	return h
}

// SideFromStance maps a stance label to the contract's side encoding.
func SideFromStance(stance string) (uint8, bool) {
	switch strings.ToLower(stance) {
	case "pro":
		return SidePro, true
	case "con":
		return SideCon, true
	default:
		return 0, false
	}
}

// StanceFromSide maps the contract's side encoding back to a stance label.
func StanceFromSide(side uint8) string {
	switch side {
	case SidePro:
		return "pro"
	case SideCon:
		return "con"
	default:
		return ""
	}
}

// StatusLabel maps the contract's status encoding to a label.
func StatusLabel(status uint8) string {
	switch status {
	case StatusActive:
		return "active"
	case StatusVoting:
		return "voting"
	case StatusFinalized:
		return "finalized"
	default:
		return "unknown"
	}
}
