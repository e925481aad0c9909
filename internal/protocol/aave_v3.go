package protocol

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"chainscan/internal/model"
)

const ProtocolAaveV3 = "aave_v3"

const aaveV3EventsJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "reserve", "type": "address"},
      {"indexed": false, "internalType": "address", "name": "user", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "onBehalfOf", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "amount", "type": "uint256"},
      {"indexed": true, "internalType": "uint16", "name": "referralCode", "type": "uint16"}
    ],
    "name": "Supply",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "reserve", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "user", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "to", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "amount", "type": "uint256"}
    ],
    "name": "Withdraw",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "reserve", "type": "address"},
      {"indexed": false, "internalType": "address", "name": "user", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "onBehalfOf", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "amount", "type": "uint256"},
      {"indexed": false, "internalType": "uint8", "name": "interestRateMode", "type": "uint8"},
      {"indexed": false, "internalType": "uint256", "name": "borrowRate", "type": "uint256"},
      {"indexed": true, "internalType": "uint16", "name": "referralCode", "type": "uint16"}
    ],
    "name": "Borrow",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "reserve", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "user", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "repayer", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "amount", "type": "uint256"},
      {"indexed": false, "internalType": "bool", "name": "useATokens", "type": "bool"}
    ],
    "name": "Repay",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "collateralAsset", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "debtAsset", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "user", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "debtToCover", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "liquidatedCollateralAmount", "type": "uint256"},
      {"indexed": false, "internalType": "address", "name": "liquidator", "type": "address"},
      {"indexed": false, "internalType": "bool", "name": "receiveAToken", "type": "bool"}
    ],
    "name": "LiquidationCall",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "reserve", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "liquidityRate", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "stableBorrowRate", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "variableBorrowRate", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "liquidityIndex", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "variableBorrowIndex", "type": "uint256"}
    ],
    "name": "ReserveDataUpdated",
    "type": "event"
  }
]`

var (
	aaveV3Events     abi.ABI
	aaveV3EventsOnce sync.Once
	aaveV3EventsErr  error
)

func aaveV3EventsABI() (abi.ABI, error) {
	aaveV3EventsOnce.Do(func() {
		aaveV3Events, aaveV3EventsErr = abi.JSON(strings.NewReader(aaveV3EventsJSON))
	})
	return aaveV3Events, aaveV3EventsErr
}

// AaveV3Decoder decodes Aave v3 pool events.
type AaveV3Decoder struct {
	events      abi.ABI
	topicToName map[string]string
}

func NewAaveV3Decoder() (*AaveV3Decoder, error) {
	events, err := aaveV3EventsABI()
	if err != nil {
		return nil, err
	}
	topicToName := make(map[string]string)
	for _, name := range []string{"Supply", "Withdraw", "Borrow", "Repay", "LiquidationCall", "ReserveDataUpdated"} {
		topicToName[strings.ToLower(events.Events[name].ID.Hex())] = name
	}
	return &AaveV3Decoder{events: events, topicToName: topicToName}, nil
}

func (d *AaveV3Decoder) Protocol() string {
	return ProtocolAaveV3
}

func (d *AaveV3Decoder) CanDecode(topic0 string) bool {
	if topic0 == "" {
		return false
	}
	_, ok := d.topicToName[strings.ToLower(topic0)]
	return ok
}

func (d *AaveV3Decoder) Decode(log model.LogRecord) (*model.TypedEvent, error) {
	name, ok := d.topicToName[strings.ToLower(log.Topic0())]
	if !ok {
		return nil, fmt.Errorf("unsupported topic0: %s", log.Topic0())
	}

	var decoded interface{}
	var err error
	switch name {
	case "Supply":
		decoded, err = d.decodeSupply(log)
	case "Withdraw":
		decoded, err = d.decodeWithdraw(log)
	case "Borrow":
		decoded, err = d.decodeBorrow(log)
	case "Repay":
		decoded, err = d.decodeRepay(log)
	case "LiquidationCall":
		decoded, err = d.decodeLiquidationCall(log)
	case "ReserveDataUpdated":
		decoded, err = d.decodeReserveDataUpdated(log)
	default:
		return nil, fmt.Errorf("unsupported event name: %s", name)
	}
	if err != nil {
		return nil, err
	}
	return buildTypedEvent(log, ProtocolAaveV3, name, decoded), nil
}

func (d *AaveV3Decoder) decodeSupply(log model.LogRecord) (model.AaveSupplyEventData, error) {
	event := d.events.Events["Supply"]
	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return model.AaveSupplyEventData{}, err
	}

	var indexed struct {
		Reserve      common.Address
		OnBehalfOf   common.Address
		ReferralCode uint16
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return model.AaveSupplyEventData{}, fmt.Errorf("parse topics: %w", err)
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return model.AaveSupplyEventData{}, err
	}
	if len(values) != 2 {
		return model.AaveSupplyEventData{}, fmt.Errorf("unexpected supply values: %d", len(values))
	}

	user, err := asAddress(values[0])
	if err != nil {
		return model.AaveSupplyEventData{}, err
	}
	amount, err := asBigInt(values[1])
	if err != nil {
		return model.AaveSupplyEventData{}, err
	}

	return model.AaveSupplyEventData{
		Reserve:      indexed.Reserve.Hex(),
		User:         user.Hex(),
		OnBehalfOf:   indexed.OnBehalfOf.Hex(),
		Amount:       amount.String(),
		ReferralCode: indexed.ReferralCode,
	}, nil
}

func (d *AaveV3Decoder) decodeWithdraw(log model.LogRecord) (model.AaveWithdrawEventData, error) {
	event := d.events.Events["Withdraw"]
	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return model.AaveWithdrawEventData{}, err
	}

	var indexed struct {
		Reserve common.Address
		User    common.Address
		To      common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return model.AaveWithdrawEventData{}, fmt.Errorf("parse topics: %w", err)
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return model.AaveWithdrawEventData{}, err
	}
	if len(values) != 1 {
		return model.AaveWithdrawEventData{}, fmt.Errorf("unexpected withdraw values: %d", len(values))
	}
	amount, err := asBigInt(values[0])
	if err != nil {
		return model.AaveWithdrawEventData{}, err
	}

	return model.AaveWithdrawEventData{
		Reserve: indexed.Reserve.Hex(),
		User:    indexed.User.Hex(),
		To:      indexed.To.Hex(),
		Amount:  amount.String(),
	}, nil
}

func (d *AaveV3Decoder) decodeBorrow(log model.LogRecord) (model.AaveBorrowEventData, error) {
	event := d.events.Events["Borrow"]
	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return model.AaveBorrowEventData{}, err
	}

	var indexed struct {
		Reserve      common.Address
		OnBehalfOf   common.Address
		ReferralCode uint16
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return model.AaveBorrowEventData{}, fmt.Errorf("parse topics: %w", err)
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return model.AaveBorrowEventData{}, err
	}
	if len(values) != 4 {
		return model.AaveBorrowEventData{}, fmt.Errorf("unexpected borrow values: %d", len(values))
	}

	user, err := asAddress(values[0])
	if err != nil {
		return model.AaveBorrowEventData{}, err
	}
	amount, err := asBigInt(values[1])
	if err != nil {
		return model.AaveBorrowEventData{}, err
	}
	rateMode, err := asUint8(values[2])
	if err != nil {
		return model.AaveBorrowEventData{}, err
	}
	borrowRate, err := asBigInt(values[3])
	if err != nil {
		return model.AaveBorrowEventData{}, err
	}

	return model.AaveBorrowEventData{
		Reserve:          indexed.Reserve.Hex(),
		User:             user.Hex(),
		OnBehalfOf:       indexed.OnBehalfOf.Hex(),
		Amount:           amount.String(),
		InterestRateMode: rateMode,
		BorrowRate:       borrowRate.String(),
		ReferralCode:     indexed.ReferralCode,
	}, nil
}

func (d *AaveV3Decoder) decodeRepay(log model.LogRecord) (model.AaveRepayEventData, error) {
	event := d.events.Events["Repay"]
	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return model.AaveRepayEventData{}, err
	}

	var indexed struct {
		Reserve common.Address
		User    common.Address
		Repayer common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return model.AaveRepayEventData{}, fmt.Errorf("parse topics: %w", err)
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return model.AaveRepayEventData{}, err
	}
	if len(values) != 2 {
		return model.AaveRepayEventData{}, fmt.Errorf("unexpected repay values: %d", len(values))
	}

	amount, err := asBigInt(values[0])
	if err != nil {
		return model.AaveRepayEventData{}, err
	}
	useATokens, err := asBool(values[1])
	if err != nil {
		return model.AaveRepayEventData{}, err
	}

	return model.AaveRepayEventData{
		Reserve:    indexed.Reserve.Hex(),
		User:       indexed.User.Hex(),
		Repayer:    indexed.Repayer.Hex(),
		Amount:     amount.String(),
		UseATokens: useATokens,
	}, nil
}

func (d *AaveV3Decoder) decodeLiquidationCall(log model.LogRecord) (model.AaveLiquidationCallEventData, error) {
	event := d.events.Events["LiquidationCall"]
	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return model.AaveLiquidationCallEventData{}, err
	}

	var indexed struct {
		CollateralAsset common.Address
		DebtAsset       common.Address
		User            common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return model.AaveLiquidationCallEventData{}, fmt.Errorf("parse topics: %w", err)
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return model.AaveLiquidationCallEventData{}, err
	}
	if len(values) != 4 {
		return model.AaveLiquidationCallEventData{}, fmt.Errorf("unexpected liquidation values: %d", len(values))
	}

	debtToCover, err := asBigInt(values[0])
	if err != nil {
		return model.AaveLiquidationCallEventData{}, err
	}
	collateralAmount, err := asBigInt(values[1])
	if err != nil {
		return model.AaveLiquidationCallEventData{}, err
	}
	liquidator, err := asAddress(values[2])
	if err != nil {
		return model.AaveLiquidationCallEventData{}, err
	}
	receiveAToken, err := asBool(values[3])
	if err != nil {
		return model.AaveLiquidationCallEventData{}, err
	}

	return model.AaveLiquidationCallEventData{
		CollateralAsset:            indexed.CollateralAsset.Hex(),
		DebtAsset:                  indexed.DebtAsset.Hex(),
		User:                       indexed.User.Hex(),
		DebtToCover:                debtToCover.String(),
		LiquidatedCollateralAmount: collateralAmount.String(),
		Liquidator:                 liquidator.Hex(),
		ReceiveAToken:              receiveAToken,
	}, nil
}

func (d *AaveV3Decoder) decodeReserveDataUpdated(log model.LogRecord) (model.AaveReserveDataUpdatedEventData, error) {
	event := d.events.Events["ReserveDataUpdated"]
	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return model.AaveReserveDataUpdatedEventData{}, err
	}

	var indexed struct {
		Reserve common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return model.AaveReserveDataUpdatedEventData{}, fmt.Errorf("parse topics: %w", err)
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return model.AaveReserveDataUpdatedEventData{}, err
	}
	if len(values) != 5 {
		return model.AaveReserveDataUpdatedEventData{}, fmt.Errorf("unexpected reserve data values: %d", len(values))
	}

	rates := make([]string, 5)
	for i, value := range values {
		rate, err := asBigInt(value)
		if err != nil {
			return model.AaveReserveDataUpdatedEventData{}, err
		}
		rates[i] = rate.String()
	}

	return model.AaveReserveDataUpdatedEventData{
		Reserve:             indexed.Reserve.Hex(),
		LiquidityRate:       rates[0],
		StableBorrowRate:    rates[1],
		VariableBorrowRate:  rates[2],
		LiquidityIndex:      rates[3],
		VariableBorrowIndex: rates[4],
	}, nil
}
