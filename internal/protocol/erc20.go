package protocol

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"chainscan/internal/model"
)

const ProtocolERC20 = "erc20"

const erc20EventsJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "from", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "to", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "value", "type": "uint256"}
    ],
    "name": "Transfer",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "owner", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "spender", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "value", "type": "uint256"}
    ],
    "name": "Approval",
    "type": "event"
  }
]`

var (
	erc20Events     abi.ABI
	erc20EventsOnce sync.Once
	erc20EventsErr  error
)

func erc20EventsABI() (abi.ABI, error) {
	erc20EventsOnce.Do(func() {
		erc20Events, erc20EventsErr = abi.JSON(strings.NewReader(erc20EventsJSON))
	})
	return erc20Events, erc20EventsErr
}

// ERC20Decoder decodes ERC20 Transfer and Approval events.
type ERC20Decoder struct {
	events      abi.ABI
	topicToName map[string]string
}

func NewERC20Decoder() (*ERC20Decoder, error) {
	events, err := erc20EventsABI()
	if err != nil {
		return nil, err
	}
	return &ERC20Decoder{
		events: events,
		topicToName: map[string]string{
			strings.ToLower(events.Events["Transfer"].ID.Hex()): "Transfer",
			strings.ToLower(events.Events["Approval"].ID.Hex()): "Approval",
		},
	}, nil
}

func (d *ERC20Decoder) Protocol() string {
	return ProtocolERC20
}

func (d *ERC20Decoder) CanDecode(topic0 string) bool {
	if topic0 == "" {
		return false
	}
	_, ok := d.topicToName[strings.ToLower(topic0)]
	return ok
}

func (d *ERC20Decoder) Decode(log model.LogRecord) (*model.TypedEvent, error) {
	name, ok := d.topicToName[strings.ToLower(log.Topic0())]
	if !ok {
		return nil, fmt.Errorf("unsupported topic0: %s", log.Topic0())
	}

	switch name {
	case "Transfer":
		decoded, err := d.decodeTransfer(log)
		if err != nil {
			return nil, err
		}
		return buildTypedEvent(log, ProtocolERC20, name, decoded), nil
	case "Approval":
		decoded, err := d.decodeApproval(log)
		if err != nil {
			return nil, err
		}
		return buildTypedEvent(log, ProtocolERC20, name, decoded), nil
	default:
		return nil, fmt.Errorf("unsupported event name: %s", name)
	}
}

func (d *ERC20Decoder) decodeTransfer(log model.LogRecord) (model.TransferEventData, error) {
	event := d.events.Events["Transfer"]
	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return model.TransferEventData{}, err
	}

	var indexed struct {
		From common.Address
		To   common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return model.TransferEventData{}, fmt.Errorf("parse topics: %w", err)
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return model.TransferEventData{}, err
	}
	if len(values) != 1 {
		return model.TransferEventData{}, fmt.Errorf("unexpected transfer values: %d", len(values))
	}
	value, err := asBigInt(values[0])
	if err != nil {
		return model.TransferEventData{}, err
	}

	return model.TransferEventData{
		From:  indexed.From.Hex(),
		To:    indexed.To.Hex(),
		Value: value.String(),
	}, nil
}

func (d *ERC20Decoder) decodeApproval(log model.LogRecord) (model.ApprovalEventData, error) {
	event := d.events.Events["Approval"]
	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return model.ApprovalEventData{}, err
	}

	var indexed struct {
		Owner   common.Address
		Spender common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return model.ApprovalEventData{}, fmt.Errorf("parse topics: %w", err)
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return model.ApprovalEventData{}, err
	}
	if len(values) != 1 {
		return model.ApprovalEventData{}, fmt.Errorf("unexpected approval values: %d", len(values))
	}
	value, err := asBigInt(values[0])
	if err != nil {
		return model.ApprovalEventData{}, err
	}

	return model.ApprovalEventData{
		Owner:   indexed.Owner.Hex(),
		Spender: indexed.Spender.Hex(),
		Value:   value.String(),
	}, nil
}
