package protocol

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"chainscan/internal/model"
)

func TestUniswapV3DecoderSwap(t *testing.T) {
	events, err := uniswapV3EventsABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	decoder, err := NewUniswapV3Decoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	pool := common.HexToAddress("0x1111111111111111111111111111111111111111")
	sender := common.HexToAddress("0x2222222222222222222222222222222222222222")
	recipient := common.HexToAddress("0x3333333333333333333333333333333333333333")

	data, err := events.Events["Swap"].Inputs.NonIndexed().Pack(
		big.NewInt(-1000),
		big.NewInt(2000),
		big.NewInt(123456789),
		big.NewInt(987654321),
		big.NewInt(-15),
	)
	if err != nil {
		t.Fatalf("pack swap: %v", err)
	}

	event, err := decoder.Decode(buildLogRecord(pool, events.Events["Swap"].ID, data, []common.Hash{
		topicFromAddress(sender),
		topicFromAddress(recipient),
	}))
	if err != nil {
		t.Fatalf("decode swap: %v", err)
	}
	if event.Protocol != ProtocolUniswapV3 || event.EventName != "Swap" {
		t.Fatalf("event identity mismatch: %s/%s", event.Protocol, event.EventName)
	}

	swap, ok := event.Decoded.(model.V3SwapEventData)
	if !ok {
		t.Fatalf("decoded type mismatch: %T", event.Decoded)
	}
	if swap.Amount0 != "-1000" || swap.Amount1 != "2000" {
		t.Fatalf("amounts mismatch: %+v", swap)
	}
	if swap.SqrtPriceX96 != "123456789" || swap.Liquidity != "987654321" {
		t.Fatalf("price mismatch: %+v", swap)
	}
	if swap.Tick != -15 {
		t.Fatalf("tick mismatch: %d", swap.Tick)
	}
}

func TestUniswapV3DecoderMintBurnCollect(t *testing.T) {
	events, err := uniswapV3EventsABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	decoder, err := NewUniswapV3Decoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	pool := common.HexToAddress("0x9999999999999999999999999999999999999999")
	sender := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	owner := common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	recipient := common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc")

	mintData, err := events.Events["Mint"].Inputs.NonIndexed().Pack(
		sender,
		big.NewInt(5000),
		big.NewInt(100),
		big.NewInt(200),
	)
	if err != nil {
		t.Fatalf("pack mint: %v", err)
	}
	mintEvent, err := decoder.Decode(buildLogRecord(pool, events.Events["Mint"].ID, mintData, []common.Hash{
		topicFromAddress(owner),
		topicFromInt24(-120),
		topicFromInt24(120),
	}))
	if err != nil {
		t.Fatalf("decode mint: %v", err)
	}
	mint, ok := mintEvent.Decoded.(model.V3MintEventData)
	if !ok {
		t.Fatalf("mint type mismatch: %T", mintEvent.Decoded)
	}
	if mint.TickLower != -120 || mint.TickUpper != 120 {
		t.Fatalf("mint tick mismatch: %+v", mint)
	}
	if mint.Sender != sender.Hex() || mint.Owner != owner.Hex() {
		t.Fatalf("mint address mismatch: %+v", mint)
	}
	if mint.Amount != "5000" || mint.Amount0 != "100" || mint.Amount1 != "200" {
		t.Fatalf("mint amounts mismatch: %+v", mint)
	}

	burnData, err := events.Events["Burn"].Inputs.NonIndexed().Pack(
		big.NewInt(3000),
		big.NewInt(80),
		big.NewInt(90),
	)
	if err != nil {
		t.Fatalf("pack burn: %v", err)
	}
	burnEvent, err := decoder.Decode(buildLogRecord(pool, events.Events["Burn"].ID, burnData, []common.Hash{
		topicFromAddress(owner),
		topicFromInt24(-60),
		topicFromInt24(60),
	}))
	if err != nil {
		t.Fatalf("decode burn: %v", err)
	}
	burn, ok := burnEvent.Decoded.(model.V3BurnEventData)
	if !ok {
		t.Fatalf("burn type mismatch: %T", burnEvent.Decoded)
	}
	if burn.Amount != "3000" || burn.Amount0 != "80" || burn.Amount1 != "90" {
		t.Fatalf("burn amounts mismatch: %+v", burn)
	}

	collectData, err := events.Events["Collect"].Inputs.NonIndexed().Pack(
		recipient,
		big.NewInt(10),
		big.NewInt(20),
	)
	if err != nil {
		t.Fatalf("pack collect: %v", err)
	}
	collectEvent, err := decoder.Decode(buildLogRecord(pool, events.Events["Collect"].ID, collectData, []common.Hash{
		topicFromAddress(owner),
		topicFromInt24(-60),
		topicFromInt24(60),
	}))
	if err != nil {
		t.Fatalf("decode collect: %v", err)
	}
	collect, ok := collectEvent.Decoded.(model.V3CollectEventData)
	if !ok {
		t.Fatalf("collect type mismatch: %T", collectEvent.Decoded)
	}
	if collect.Recipient != recipient.Hex() || collect.Amount0 != "10" || collect.Amount1 != "20" {
		t.Fatalf("collect mismatch: %+v", collect)
	}
}

func TestUniswapV3DecoderPoolCreated(t *testing.T) {
	events, err := uniswapV3EventsABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	decoder, err := NewUniswapV3Decoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	factory := common.HexToAddress("0x1F98431c8aD98523631AE4a59f267346ea31F984")
	token0 := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	token1 := common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	pool := common.HexToAddress("0xdddddddddddddddddddddddddddddddddddddddd")

	data, err := events.Events["PoolCreated"].Inputs.NonIndexed().Pack(big.NewInt(60), pool)
	if err != nil {
		t.Fatalf("pack pool created: %v", err)
	}

	event, err := decoder.Decode(buildLogRecord(factory, events.Events["PoolCreated"].ID, data, []common.Hash{
		topicFromAddress(token0),
		topicFromAddress(token1),
		topicFromBig(big.NewInt(3000)),
	}))
	if err != nil {
		t.Fatalf("decode pool created: %v", err)
	}

	created, ok := event.Decoded.(model.V3PoolCreatedEventData)
	if !ok {
		t.Fatalf("decoded type mismatch: %T", event.Decoded)
	}
	if created.Fee != 3000 || created.TickSpacing != 60 {
		t.Fatalf("fee/spacing mismatch: %+v", created)
	}
	if created.Pool != pool.Hex() {
		t.Fatalf("pool mismatch: %+v", created)
	}
}
