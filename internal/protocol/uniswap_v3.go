package protocol

import (
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"chainscan/internal/model"
)

const ProtocolUniswapV3 = "uniswap_v3"

const uniswapV3EventsJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "sender", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "recipient", "type": "address"},
      {"indexed": false, "internalType": "int256", "name": "amount0", "type": "int256"},
      {"indexed": false, "internalType": "int256", "name": "amount1", "type": "int256"},
      {"indexed": false, "internalType": "uint160", "name": "sqrtPriceX96", "type": "uint160"},
      {"indexed": false, "internalType": "uint128", "name": "liquidity", "type": "uint128"},
      {"indexed": false, "internalType": "int24", "name": "tick", "type": "int24"}
    ],
    "name": "Swap",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": false, "internalType": "address", "name": "sender", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "owner", "type": "address"},
      {"indexed": true, "internalType": "int24", "name": "tickLower", "type": "int24"},
      {"indexed": true, "internalType": "int24", "name": "tickUpper", "type": "int24"},
      {"indexed": false, "internalType": "uint128", "name": "amount", "type": "uint128"},
      {"indexed": false, "internalType": "uint256", "name": "amount0", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "amount1", "type": "uint256"}
    ],
    "name": "Mint",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "owner", "type": "address"},
      {"indexed": true, "internalType": "int24", "name": "tickLower", "type": "int24"},
      {"indexed": true, "internalType": "int24", "name": "tickUpper", "type": "int24"},
      {"indexed": false, "internalType": "uint128", "name": "amount", "type": "uint128"},
      {"indexed": false, "internalType": "uint256", "name": "amount0", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "amount1", "type": "uint256"}
    ],
    "name": "Burn",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "owner", "type": "address"},
      {"indexed": false, "internalType": "address", "name": "recipient", "type": "address"},
      {"indexed": true, "internalType": "int24", "name": "tickLower", "type": "int24"},
      {"indexed": true, "internalType": "int24", "name": "tickUpper", "type": "int24"},
      {"indexed": false, "internalType": "uint128", "name": "amount0", "type": "uint128"},
      {"indexed": false, "internalType": "uint128", "name": "amount1", "type": "uint128"}
    ],
    "name": "Collect",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "token0", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "token1", "type": "address"},
      {"indexed": true, "internalType": "uint24", "name": "fee", "type": "uint24"},
      {"indexed": false, "internalType": "int24", "name": "tickSpacing", "type": "int24"},
      {"indexed": false, "internalType": "address", "name": "pool", "type": "address"}
    ],
    "name": "PoolCreated",
    "type": "event"
  }
]`

var (
	uniswapV3Events     abi.ABI
	uniswapV3EventsOnce sync.Once
	uniswapV3EventsErr  error
)

func uniswapV3EventsABI() (abi.ABI, error) {
	uniswapV3EventsOnce.Do(func() {
		uniswapV3Events, uniswapV3EventsErr = abi.JSON(strings.NewReader(uniswapV3EventsJSON))
	})
	return uniswapV3Events, uniswapV3EventsErr
}

// UniswapV3Decoder decodes Uniswap v3 pool and factory events.
type UniswapV3Decoder struct {
	events      abi.ABI
	topicToName map[string]string
}

func NewUniswapV3Decoder() (*UniswapV3Decoder, error) {
	events, err := uniswapV3EventsABI()
	if err != nil {
		return nil, err
	}
	topicToName := make(map[string]string)
	for _, name := range []string{"Swap", "Mint", "Burn", "Collect", "PoolCreated"} {
		topicToName[strings.ToLower(events.Events[name].ID.Hex())] = name
	}
	return &UniswapV3Decoder{events: events, topicToName: topicToName}, nil
}

func (d *UniswapV3Decoder) Protocol() string {
	return ProtocolUniswapV3
}

func (d *UniswapV3Decoder) CanDecode(topic0 string) bool {
	if topic0 == "" {
		return false
	}
	_, ok := d.topicToName[strings.ToLower(topic0)]
	return ok
}

func (d *UniswapV3Decoder) Decode(log model.LogRecord) (*model.TypedEvent, error) {
	name, ok := d.topicToName[strings.ToLower(log.Topic0())]
	if !ok {
		return nil, fmt.Errorf("unsupported topic0: %s", log.Topic0())
	}

	var decoded interface{}
	var err error
	switch name {
	case "Swap":
		decoded, err = d.decodeSwap(log)
	case "Mint":
		decoded, err = d.decodeMint(log)
	case "Burn":
		decoded, err = d.decodeBurn(log)
	case "Collect":
		decoded, err = d.decodeCollect(log)
	case "PoolCreated":
		decoded, err = d.decodePoolCreated(log)
	default:
		return nil, fmt.Errorf("unsupported event name: %s", name)
	}
	if err != nil {
		return nil, err
	}
	return buildTypedEvent(log, ProtocolUniswapV3, name, decoded), nil
}

func (d *UniswapV3Decoder) decodeSwap(log model.LogRecord) (model.V3SwapEventData, error) {
	event := d.events.Events["Swap"]
	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return model.V3SwapEventData{}, err
	}

	var indexed struct {
		Sender    common.Address
		Recipient common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return model.V3SwapEventData{}, fmt.Errorf("parse topics: %w", err)
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return model.V3SwapEventData{}, err
	}
	if len(values) != 5 {
		return model.V3SwapEventData{}, fmt.Errorf("unexpected swap values: %d", len(values))
	}

	amount0, err := asBigInt(values[0])
	if err != nil {
		return model.V3SwapEventData{}, err
	}
	amount1, err := asBigInt(values[1])
	if err != nil {
		return model.V3SwapEventData{}, err
	}
	sqrtPrice, err := asBigInt(values[2])
	if err != nil {
		return model.V3SwapEventData{}, err
	}
	liquidity, err := asBigInt(values[3])
	if err != nil {
		return model.V3SwapEventData{}, err
	}
	tickInt, err := asBigInt(values[4])
	if err != nil {
		return model.V3SwapEventData{}, err
	}
	tick, err := int24FromBig(tickInt)
	if err != nil {
		return model.V3SwapEventData{}, err
	}

	return model.V3SwapEventData{
		Sender:       indexed.Sender.Hex(),
		Recipient:    indexed.Recipient.Hex(),
		Amount0:      amount0.String(),
		Amount1:      amount1.String(),
		SqrtPriceX96: sqrtPrice.String(),
		Liquidity:    liquidity.String(),
		Tick:         tick,
	}, nil
}

func (d *UniswapV3Decoder) decodeMint(log model.LogRecord) (model.V3MintEventData, error) {
	event := d.events.Events["Mint"]
	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return model.V3MintEventData{}, err
	}

	var indexed struct {
		Owner     common.Address
		TickLower *big.Int
		TickUpper *big.Int
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return model.V3MintEventData{}, fmt.Errorf("parse topics: %w", err)
	}
	tickLower, err := int24FromBig(indexed.TickLower)
	if err != nil {
		return model.V3MintEventData{}, err
	}
	tickUpper, err := int24FromBig(indexed.TickUpper)
	if err != nil {
		return model.V3MintEventData{}, err
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return model.V3MintEventData{}, err
	}
	if len(values) != 4 {
		return model.V3MintEventData{}, fmt.Errorf("unexpected mint values: %d", len(values))
	}

	sender, err := asAddress(values[0])
	if err != nil {
		return model.V3MintEventData{}, err
	}
	amount, err := asBigInt(values[1])
	if err != nil {
		return model.V3MintEventData{}, err
	}
	amount0, err := asBigInt(values[2])
	if err != nil {
		return model.V3MintEventData{}, err
	}
	amount1, err := asBigInt(values[3])
	if err != nil {
		return model.V3MintEventData{}, err
	}

	return model.V3MintEventData{
		Sender:    sender.Hex(),
		Owner:     indexed.Owner.Hex(),
		TickLower: tickLower,
		TickUpper: tickUpper,
		Amount:    amount.String(),
		Amount0:   amount0.String(),
		Amount1:   amount1.String(),
	}, nil
}

func (d *UniswapV3Decoder) decodeBurn(log model.LogRecord) (model.V3BurnEventData, error) {
	event := d.events.Events["Burn"]
	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return model.V3BurnEventData{}, err
	}

	var indexed struct {
		Owner     common.Address
		TickLower *big.Int
		TickUpper *big.Int
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return model.V3BurnEventData{}, fmt.Errorf("parse topics: %w", err)
	}
	tickLower, err := int24FromBig(indexed.TickLower)
	if err != nil {
		return model.V3BurnEventData{}, err
	}
	tickUpper, err := int24FromBig(indexed.TickUpper)
	if err != nil {
		return model.V3BurnEventData{}, err
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return model.V3BurnEventData{}, err
	}
	if len(values) != 3 {
		return model.V3BurnEventData{}, fmt.Errorf("unexpected burn values: %d", len(values))
	}

	amount, err := asBigInt(values[0])
	if err != nil {
		return model.V3BurnEventData{}, err
	}
	amount0, err := asBigInt(values[1])
	if err != nil {
		return model.V3BurnEventData{}, err
	}
	amount1, err := asBigInt(values[2])
	if err != nil {
		return model.V3BurnEventData{}, err
	}

	return model.V3BurnEventData{
		Owner:     indexed.Owner.Hex(),
		TickLower: tickLower,
		TickUpper: tickUpper,
		Amount:    amount.String(),
		Amount0:   amount0.String(),
		Amount1:   amount1.String(),
	}, nil
}

func (d *UniswapV3Decoder) decodeCollect(log model.LogRecord) (model.V3CollectEventData, error) {
	event := d.events.Events["Collect"]
	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return model.V3CollectEventData{}, err
	}

	var indexed struct {
		Owner     common.Address
		TickLower *big.Int
		TickUpper *big.Int
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return model.V3CollectEventData{}, fmt.Errorf("parse topics: %w", err)
	}
	tickLower, err := int24FromBig(indexed.TickLower)
	if err != nil {
		return model.V3CollectEventData{}, err
	}
	tickUpper, err := int24FromBig(indexed.TickUpper)
	if err != nil {
		return model.V3CollectEventData{}, err
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return model.V3CollectEventData{}, err
	}
	if len(values) != 3 {
		return model.V3CollectEventData{}, fmt.Errorf("unexpected collect values: %d", len(values))
	}

	recipient, err := asAddress(values[0])
	if err != nil {
		return model.V3CollectEventData{}, err
	}
	amount0, err := asBigInt(values[1])
	if err != nil {
		return model.V3CollectEventData{}, err
	}
	amount1, err := asBigInt(values[2])
	if err != nil {
		return model.V3CollectEventData{}, err
	}

	return model.V3CollectEventData{
		Owner:     indexed.Owner.Hex(),
		Recipient: recipient.Hex(),
		TickLower: tickLower,
		TickUpper: tickUpper,
		Amount0:   amount0.String(),
		Amount1:   amount1.String(),
	}, nil
}

func (d *UniswapV3Decoder) decodePoolCreated(log model.LogRecord) (model.V3PoolCreatedEventData, error) {
	event := d.events.Events["PoolCreated"]
	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return model.V3PoolCreatedEventData{}, err
	}

	var indexed struct {
		Token0 common.Address
		Token1 common.Address
		Fee    *big.Int
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return model.V3PoolCreatedEventData{}, fmt.Errorf("parse topics: %w", err)
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return model.V3PoolCreatedEventData{}, err
	}
	if len(values) != 2 {
		return model.V3PoolCreatedEventData{}, fmt.Errorf("unexpected pool created values: %d", len(values))
	}

	tickSpacingInt, err := asBigInt(values[0])
	if err != nil {
		return model.V3PoolCreatedEventData{}, err
	}
	tickSpacing, err := int24FromBig(tickSpacingInt)
	if err != nil {
		return model.V3PoolCreatedEventData{}, err
	}
	pool, err := asAddress(values[1])
	if err != nil {
		return model.V3PoolCreatedEventData{}, err
	}

	return model.V3PoolCreatedEventData{
		Token0:      indexed.Token0.Hex(),
		Token1:      indexed.Token1.Hex(),
		Fee:         uint32(indexed.Fee.Uint64()),
		TickSpacing: tickSpacing,
		Pool:        pool.Hex(),
	}, nil
}
