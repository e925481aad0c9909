package protocol

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"chainscan/internal/model"
)

func TestUniswapV2DecoderSwap(t *testing.T) {
	events, err := uniswapV2EventsABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	decoder, err := NewUniswapV2Decoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	pair := common.HexToAddress("0x1111111111111111111111111111111111111111")
	sender := common.HexToAddress("0x2222222222222222222222222222222222222222")
	to := common.HexToAddress("0x3333333333333333333333333333333333333333")

	data, err := events.Events["Swap"].Inputs.NonIndexed().Pack(
		big.NewInt(1000),
		big.NewInt(0),
		big.NewInt(0),
		big.NewInt(995),
	)
	if err != nil {
		t.Fatalf("pack swap: %v", err)
	}

	logRecord := buildLogRecord(pair, events.Events["Swap"].ID, data, []common.Hash{
		topicFromAddress(sender),
		topicFromAddress(to),
	})

	event, err := decoder.Decode(logRecord)
	if err != nil {
		t.Fatalf("decode swap: %v", err)
	}
	if event.Protocol != ProtocolUniswapV2 || event.EventName != "Swap" {
		t.Fatalf("event identity mismatch: %s/%s", event.Protocol, event.EventName)
	}

	swap, ok := event.Decoded.(model.V2SwapEventData)
	if !ok {
		t.Fatalf("decoded type mismatch: %T", event.Decoded)
	}
	if swap.Amount0In != "1000" || swap.Amount1Out != "995" {
		t.Fatalf("amounts mismatch: %+v", swap)
	}
	if swap.Amount1In != "0" || swap.Amount0Out != "0" {
		t.Fatalf("zero amounts mismatch: %+v", swap)
	}
	if swap.Sender != sender.Hex() || swap.To != to.Hex() {
		t.Fatalf("address mismatch: %+v", swap)
	}
}

func TestUniswapV2DecoderSyncMintBurn(t *testing.T) {
	events, err := uniswapV2EventsABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	decoder, err := NewUniswapV2Decoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	pair := common.HexToAddress("0x1111111111111111111111111111111111111111")
	sender := common.HexToAddress("0x2222222222222222222222222222222222222222")
	to := common.HexToAddress("0x3333333333333333333333333333333333333333")

	syncData, err := events.Events["Sync"].Inputs.NonIndexed().Pack(
		big.NewInt(123456),
		big.NewInt(654321),
	)
	if err != nil {
		t.Fatalf("pack sync: %v", err)
	}
	syncEvent, err := decoder.Decode(buildLogRecord(pair, events.Events["Sync"].ID, syncData, nil))
	if err != nil {
		t.Fatalf("decode sync: %v", err)
	}
	sync, ok := syncEvent.Decoded.(model.V2SyncEventData)
	if !ok {
		t.Fatalf("sync type mismatch: %T", syncEvent.Decoded)
	}
	if sync.Reserve0 != "123456" || sync.Reserve1 != "654321" {
		t.Fatalf("reserves mismatch: %+v", sync)
	}

	mintData, err := events.Events["Mint"].Inputs.NonIndexed().Pack(
		big.NewInt(100),
		big.NewInt(200),
	)
	if err != nil {
		t.Fatalf("pack mint: %v", err)
	}
	mintEvent, err := decoder.Decode(buildLogRecord(pair, events.Events["Mint"].ID, mintData, []common.Hash{
		topicFromAddress(sender),
	}))
	if err != nil {
		t.Fatalf("decode mint: %v", err)
	}
	mint, ok := mintEvent.Decoded.(model.V2MintEventData)
	if !ok {
		t.Fatalf("mint type mismatch: %T", mintEvent.Decoded)
	}
	if mint.Amount0 != "100" || mint.Amount1 != "200" || mint.Sender != sender.Hex() {
		t.Fatalf("mint mismatch: %+v", mint)
	}

	burnData, err := events.Events["Burn"].Inputs.NonIndexed().Pack(
		big.NewInt(50),
		big.NewInt(60),
	)
	if err != nil {
		t.Fatalf("pack burn: %v", err)
	}
	burnEvent, err := decoder.Decode(buildLogRecord(pair, events.Events["Burn"].ID, burnData, []common.Hash{
		topicFromAddress(sender),
		topicFromAddress(to),
	}))
	if err != nil {
		t.Fatalf("decode burn: %v", err)
	}
	burn, ok := burnEvent.Decoded.(model.V2BurnEventData)
	if !ok {
		t.Fatalf("burn type mismatch: %T", burnEvent.Decoded)
	}
	if burn.Amount0 != "50" || burn.Amount1 != "60" || burn.To != to.Hex() {
		t.Fatalf("burn mismatch: %+v", burn)
	}
}

func TestUniswapV2DecoderPairCreated(t *testing.T) {
	events, err := uniswapV2EventsABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	decoder, err := NewUniswapV2Decoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	factory := common.HexToAddress("0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f")
	token0 := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	token1 := common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	pair := common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc")

	data, err := events.Events["PairCreated"].Inputs.NonIndexed().Pack(pair, big.NewInt(42))
	if err != nil {
		t.Fatalf("pack pair created: %v", err)
	}

	event, err := decoder.Decode(buildLogRecord(factory, events.Events["PairCreated"].ID, data, []common.Hash{
		topicFromAddress(token0),
		topicFromAddress(token1),
	}))
	if err != nil {
		t.Fatalf("decode pair created: %v", err)
	}

	created, ok := event.Decoded.(model.V2PairCreatedEventData)
	if !ok {
		t.Fatalf("decoded type mismatch: %T", event.Decoded)
	}
	if created.Token0 != token0.Hex() || created.Token1 != token1.Hex() {
		t.Fatalf("token mismatch: %+v", created)
	}
	if created.Pair != pair.Hex() || created.PairNth != "42" {
		t.Fatalf("pair mismatch: %+v", created)
	}
}
