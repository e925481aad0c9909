package protocol

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"chainscan/internal/model"
)

func TestERC20DecoderTransfer(t *testing.T) {
	events, err := erc20EventsABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	decoder, err := NewERC20Decoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	token := common.HexToAddress("0x1111111111111111111111111111111111111111")
	from := common.HexToAddress("0x2222222222222222222222222222222222222222")
	to := common.HexToAddress("0x3333333333333333333333333333333333333333")

	data, err := events.Events["Transfer"].Inputs.NonIndexed().Pack(big.NewInt(1500000))
	if err != nil {
		t.Fatalf("pack transfer: %v", err)
	}

	logRecord := buildLogRecord(token, events.Events["Transfer"].ID, data, []common.Hash{
		topicFromAddress(from),
		topicFromAddress(to),
	})

	if !decoder.CanDecode(logRecord.Topic0()) {
		t.Fatal("CanDecode(Transfer) = false")
	}

	event, err := decoder.Decode(logRecord)
	if err != nil {
		t.Fatalf("decode transfer: %v", err)
	}
	if event.Protocol != ProtocolERC20 || event.EventName != "Transfer" {
		t.Fatalf("event identity mismatch: %s/%s", event.Protocol, event.EventName)
	}

	transfer, ok := event.Decoded.(model.TransferEventData)
	if !ok {
		t.Fatalf("decoded type mismatch: %T", event.Decoded)
	}
	if transfer.From != from.Hex() || transfer.To != to.Hex() {
		t.Fatalf("address mismatch: %+v", transfer)
	}
	if transfer.Value != "1500000" {
		t.Fatalf("value mismatch: %s", transfer.Value)
	}
}

func TestERC20DecoderApproval(t *testing.T) {
	events, err := erc20EventsABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	decoder, err := NewERC20Decoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	token := common.HexToAddress("0x1111111111111111111111111111111111111111")
	owner := common.HexToAddress("0x4444444444444444444444444444444444444444")
	spender := common.HexToAddress("0x5555555555555555555555555555555555555555")

	value := new(big.Int)
	value.SetString("115792089237316195423570985008687907853269984665640564039457584007913129639935", 10)
	data, err := events.Events["Approval"].Inputs.NonIndexed().Pack(value)
	if err != nil {
		t.Fatalf("pack approval: %v", err)
	}

	logRecord := buildLogRecord(token, events.Events["Approval"].ID, data, []common.Hash{
		topicFromAddress(owner),
		topicFromAddress(spender),
	})

	event, err := decoder.Decode(logRecord)
	if err != nil {
		t.Fatalf("decode approval: %v", err)
	}

	approval, ok := event.Decoded.(model.ApprovalEventData)
	if !ok {
		t.Fatalf("decoded type mismatch: %T", event.Decoded)
	}
	if approval.Owner != owner.Hex() || approval.Spender != spender.Hex() {
		t.Fatalf("address mismatch: %+v", approval)
	}
	if approval.Value != value.String() {
		t.Fatalf("value mismatch: %s", approval.Value)
	}
}

func TestERC20DecoderRejectsShortTopics(t *testing.T) {
	events, err := erc20EventsABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	decoder, err := NewERC20Decoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	token := common.HexToAddress("0x1111111111111111111111111111111111111111")
	data, err := events.Events["Transfer"].Inputs.NonIndexed().Pack(big.NewInt(1))
	if err != nil {
		t.Fatalf("pack transfer: %v", err)
	}

	// ERC721 Transfer shares the topic0 but carries three indexed args
	// and empty data; a short ERC20-shaped log must not decode.
	logRecord := buildLogRecord(token, events.Events["Transfer"].ID, data, nil)
	if _, err := decoder.Decode(logRecord); err == nil {
		t.Fatal("Decode() error = nil, want topic count mismatch")
	}
}
