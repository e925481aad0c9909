package protocol

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"chainscan/internal/model"
)

const ProtocolUniswapV2 = "uniswap_v2"

const uniswapV2EventsJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "sender", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "amount0In", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "amount1In", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "amount0Out", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "amount1Out", "type": "uint256"},
      {"indexed": true, "internalType": "address", "name": "to", "type": "address"}
    ],
    "name": "Swap",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": false, "internalType": "uint112", "name": "reserve0", "type": "uint112"},
      {"indexed": false, "internalType": "uint112", "name": "reserve1", "type": "uint112"}
    ],
    "name": "Sync",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "sender", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "amount0", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "amount1", "type": "uint256"}
    ],
    "name": "Mint",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "sender", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "amount0", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "amount1", "type": "uint256"},
      {"indexed": true, "internalType": "address", "name": "to", "type": "address"}
    ],
    "name": "Burn",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "token0", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "token1", "type": "address"},
      {"indexed": false, "internalType": "address", "name": "pair", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "", "type": "uint256"}
    ],
    "name": "PairCreated",
    "type": "event"
  }
]`

var (
	uniswapV2Events     abi.ABI
	uniswapV2EventsOnce sync.Once
	uniswapV2EventsErr  error
)

func uniswapV2EventsABI() (abi.ABI, error) {
	uniswapV2EventsOnce.Do(func() {
		uniswapV2Events, uniswapV2EventsErr = abi.JSON(strings.NewReader(uniswapV2EventsJSON))
	})
	return uniswapV2Events, uniswapV2EventsErr
}

// UniswapV2Decoder decodes Uniswap v2 pair and factory events.
type UniswapV2Decoder struct {
	events      abi.ABI
	topicToName map[string]string
}

func NewUniswapV2Decoder() (*UniswapV2Decoder, error) {
	events, err := uniswapV2EventsABI()
	if err != nil {
		return nil, err
	}
	topicToName := make(map[string]string)
	for _, name := range []string{"Swap", "Sync", "Mint", "Burn", "PairCreated"} {
		topicToName[strings.ToLower(events.Events[name].ID.Hex())] = name
	}
	return &UniswapV2Decoder{events: events, topicToName: topicToName}, nil
}

func (d *UniswapV2Decoder) Protocol() string {
	return ProtocolUniswapV2
}

func (d *UniswapV2Decoder) CanDecode(topic0 string) bool {
	if topic0 == "" {
		return false
	}
	_, ok := d.topicToName[strings.ToLower(topic0)]
	return ok
}

func (d *UniswapV2Decoder) Decode(log model.LogRecord) (*model.TypedEvent, error) {
	name, ok := d.topicToName[strings.ToLower(log.Topic0())]
	if !ok {
		return nil, fmt.Errorf("unsupported topic0: %s", log.Topic0())
	}

	var decoded interface{}
	var err error
	switch name {
	case "Swap":
		decoded, err = d.decodeSwap(log)
	case "Sync":
		decoded, err = d.decodeSync(log)
	case "Mint":
		decoded, err = d.decodeMint(log)
	case "Burn":
		decoded, err = d.decodeBurn(log)
	case "PairCreated":
		decoded, err = d.decodePairCreated(log)
	default:
		return nil, fmt.Errorf("unsupported event name: %s", name)
	}
	if err != nil {
		return nil, err
	}
	return buildTypedEvent(log, ProtocolUniswapV2, name, decoded), nil
}

func (d *UniswapV2Decoder) decodeSwap(log model.LogRecord) (model.V2SwapEventData, error) {
	event := d.events.Events["Swap"]
	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return model.V2SwapEventData{}, err
	}

	var indexed struct {
		Sender common.Address
		To     common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return model.V2SwapEventData{}, fmt.Errorf("parse topics: %w", err)
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return model.V2SwapEventData{}, err
	}
	if len(values) != 4 {
		return model.V2SwapEventData{}, fmt.Errorf("unexpected swap values: %d", len(values))
	}

	amounts := make([]string, 4)
	for i, value := range values {
		amount, err := asBigInt(value)
		if err != nil {
			return model.V2SwapEventData{}, err
		}
		amounts[i] = amount.String()
	}

	return model.V2SwapEventData{
		Sender:     indexed.Sender.Hex(),
		To:         indexed.To.Hex(),
		Amount0In:  amounts[0],
		Amount1In:  amounts[1],
		Amount0Out: amounts[2],
		Amount1Out: amounts[3],
	}, nil
}

func (d *UniswapV2Decoder) decodeSync(log model.LogRecord) (model.V2SyncEventData, error) {
	event := d.events.Events["Sync"]
	if _, err := parseIndexedTopics(event, log.Topics); err != nil {
		return model.V2SyncEventData{}, err
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return model.V2SyncEventData{}, err
	}
	if len(values) != 2 {
		return model.V2SyncEventData{}, fmt.Errorf("unexpected sync values: %d", len(values))
	}

	reserve0, err := asBigInt(values[0])
	if err != nil {
		return model.V2SyncEventData{}, err
	}
	reserve1, err := asBigInt(values[1])
	if err != nil {
		return model.V2SyncEventData{}, err
	}

	return model.V2SyncEventData{
		Reserve0: reserve0.String(),
		Reserve1: reserve1.String(),
	}, nil
}

func (d *UniswapV2Decoder) decodeMint(log model.LogRecord) (model.V2MintEventData, error) {
	event := d.events.Events["Mint"]
	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return model.V2MintEventData{}, err
	}

	var indexed struct {
		Sender common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return model.V2MintEventData{}, fmt.Errorf("parse topics: %w", err)
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return model.V2MintEventData{}, err
	}
	if len(values) != 2 {
		return model.V2MintEventData{}, fmt.Errorf("unexpected mint values: %d", len(values))
	}

	amount0, err := asBigInt(values[0])
	if err != nil {
		return model.V2MintEventData{}, err
	}
	amount1, err := asBigInt(values[1])
	if err != nil {
		return model.V2MintEventData{}, err
	}

	return model.V2MintEventData{
		Sender:  indexed.Sender.Hex(),
		Amount0: amount0.String(),
		Amount1: amount1.String(),
	}, nil
}

func (d *UniswapV2Decoder) decodeBurn(log model.LogRecord) (model.V2BurnEventData, error) {
	event := d.events.Events["Burn"]
	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return model.V2BurnEventData{}, err
	}

	var indexed struct {
		Sender common.Address
		To     common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return model.V2BurnEventData{}, fmt.Errorf("parse topics: %w", err)
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return model.V2BurnEventData{}, err
	}
	if len(values) != 2 {
		return model.V2BurnEventData{}, fmt.Errorf("unexpected burn values: %d", len(values))
	}

	amount0, err := asBigInt(values[0])
	if err != nil {
		return model.V2BurnEventData{}, err
	}
	amount1, err := asBigInt(values[1])
	if err != nil {
		return model.V2BurnEventData{}, err
	}

	return model.V2BurnEventData{
		Sender:  indexed.Sender.Hex(),
		To:      indexed.To.Hex(),
		Amount0: amount0.String(),
		Amount1: amount1.String(),
	}, nil
}

func (d *UniswapV2Decoder) decodePairCreated(log model.LogRecord) (model.V2PairCreatedEventData, error) {
	event := d.events.Events["PairCreated"]
	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return model.V2PairCreatedEventData{}, err
	}

	var indexed struct {
		Token0 common.Address
		Token1 common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return model.V2PairCreatedEventData{}, fmt.Errorf("parse topics: %w", err)
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return model.V2PairCreatedEventData{}, err
	}
	if len(values) != 2 {
		return model.V2PairCreatedEventData{}, fmt.Errorf("unexpected pair created values: %d", len(values))
	}

	pair, err := asAddress(values[0])
	if err != nil {
		return model.V2PairCreatedEventData{}, err
	}
	nth, err := asBigInt(values[1])
	if err != nil {
		return model.V2PairCreatedEventData{}, err
	}

	return model.V2PairCreatedEventData{
		Token0:  indexed.Token0.Hex(),
		Token1:  indexed.Token1.Hex(),
		Pair:    pair.Hex(),
		PairNth: nth.String(),
	}, nil
}
