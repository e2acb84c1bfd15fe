package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Event names emitted by the DebateArena contract.
const (
	EventArenaCreated   = "ArenaCreated"
	EventDebaterJoined  = "DebaterJoined"
	EventVoteCast       = "VoteCast"
	EventArenaFinalized = "ArenaFinalized"
)

// findLog returns the first receipt log emitted by the contract whose first
// topic matches the named event's signature hash. Matching by signature topic
// avoids misattributing unrelated logs from other contracts in the same tx.
func (c *Client) findLog(receipt *types.Receipt, event string) (*types.Log, error) {
	ev, ok := c.arenaABI.Events[event]
	if !ok {
		return nil, fmt.Errorf("unknown event %q", event)
	}
	for _, log := range receipt.Logs {
		if log.Address != c.contract {
			continue
		}
		if len(log.Topics) == 0 || log.Topics[0] != ev.ID {
			continue
		}
		return log, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrEventMissing, event)
}

// arenaIDFromTopic extracts the indexed arenaId from a log's second topic.
func arenaIDFromTopic(log *types.Log) (uint64, error) {
	if len(log.Topics) < 2 {
		return 0, fmt.Errorf("log missing indexed arenaId topic")
	}
	return new(big.Int).SetBytes(log.Topics[1].Bytes()).Uint64(), nil
}

func (c *Client) decodeArenaCreated(receipt *types.Receipt) (*CreateResult, error) {
	log, err := c.findLog(receipt, EventArenaCreated)
	if err != nil {
		return nil, err
	}
	arenaID, err := arenaIDFromTopic(log)
	if err != nil {
		return nil, err
	}

	out, err := c.arenaABI.Unpack(EventArenaCreated, log.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack ArenaCreated: %w", err)
	}
	return &CreateResult{
		ArenaID:     arenaID,
		TopicHash:   out[0].([32]byte),
		StakeAmount: out[1].(*big.Int),
		EndTime:     out[2].(*big.Int).Uint64(),
		Creator:     out[3].(common.Address).Hex(),
	}, nil
}

func (c *Client) decodeDebaterJoined(receipt *types.Receipt) (*JoinResult, error) {
	log, err := c.findLog(receipt, EventDebaterJoined)
	if err != nil {
		return nil, err
	}
	arenaID, err := arenaIDFromTopic(log)
	if err != nil {
		return nil, err
	}

	out, err := c.arenaABI.Unpack(EventDebaterJoined, log.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack DebaterJoined: %w", err)
	}
	return &JoinResult{
		ArenaID: arenaID,
		Debater: out[0].(common.Address).Hex(),
		Side:    out[1].(uint8),
	}, nil
}

func (c *Client) decodeVoteCast(receipt *types.Receipt) (*VoteResult, error) {
	log, err := c.findLog(receipt, EventVoteCast)
	if err != nil {
		return nil, err
	}
	arenaID, err := arenaIDFromTopic(log)
	if err != nil {
		return nil, err
	}

	out, err := c.arenaABI.Unpack(EventVoteCast, log.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack VoteCast: %w", err)
	}
	return &VoteResult{
		ArenaID: arenaID,
		Voter:   out[0].(common.Address).Hex(),
		Side:    out[1].(uint8),
		Stake:   out[2].(*big.Int),
	}, nil
}

func (c *Client) decodeArenaFinalized(receipt *types.Receipt) (*FinalizeResult, error) {
	log, err := c.findLog(receipt, EventArenaFinalized)
	if err != nil {
		return nil, err
	}
	arenaID, err := arenaIDFromTopic(log)
	if err != nil {
		return nil, err
	}

	out, err := c.arenaABI.Unpack(EventArenaFinalized, log.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack ArenaFinalized: %w", err)
	}
	return &FinalizeResult{
		ArenaID:     arenaID,
		WinningSide: out[0].(uint8),
		Winner:      out[1].(common.Address).Hex(),
		Payout:      out[2].(*big.Int),
	}, nil
}

// ArenaEvent is a decoded contract event from a block-range scan.
type ArenaEvent struct {
	Name        string
	ArenaID     uint64
	BlockNumber uint64
	TxHash      string

	// ArenaCreated / ArenaFinalized payloads; nil fields for other events.
	Created   *CreateResult
	Finalized *FinalizeResult
}

// BlockNumber returns the latest block number.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	n, err := c.client.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRPCConnection, err)
	}
	return n, nil
}

// FilterArenaEvents scans a block range for ArenaCreated and ArenaFinalized
// events. The reconciliation watcher uses this to repair mirror drift after
// confirmation timeouts or restarts.
func (c *Client) FilterArenaEvents(ctx context.Context, fromBlock, toBlock uint64) ([]ArenaEvent, error) {
	if !c.hasContract {
		return nil, ErrNotConfigured
	}

	createdID := c.arenaABI.Events[EventArenaCreated].ID
	finalizedID := c.arenaABI.Events[EventArenaFinalized].ID

	logs, err := c.client.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{c.contract},
		Topics:    [][]common.Hash{{createdID, finalizedID}},
	})
	if err != nil {
		return nil, &CallError{Op: "filterLogs", Err: err}
	}

	events := make([]ArenaEvent, 0, len(logs))
	for i := range logs {
		log := logs[i]
		receipt := &types.Receipt{Logs: []*types.Log{&log}}

		switch log.Topics[0] {
		case createdID:
			created, err := c.decodeArenaCreated(receipt)
			if err != nil {
				return nil, err
			}
			events = append(events, ArenaEvent{
				Name:        EventArenaCreated,
				ArenaID:     created.ArenaID,
				BlockNumber: log.BlockNumber,
				TxHash:      log.TxHash.Hex(),
				Created:     created,
			})
		case finalizedID:
			finalized, err := c.decodeArenaFinalized(receipt)
			if err != nil {
				return nil, err
			}
			events = append(events, ArenaEvent{
				Name:        EventArenaFinalized,
				ArenaID:     finalized.ArenaID,
				BlockNumber: log.BlockNumber,
				TxHash:      log.TxHash.Hex(),
				Finalized:   finalized,
			})
		}
	}
	return events, nil
}
