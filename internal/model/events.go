package model

// TransferEventData is the decoded ERC-20 Transfer payload.
type TransferEventData struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Value string `json:"value"`
}

// ApprovalEventData is the decoded ERC-20 Approval payload.
type ApprovalEventData struct {
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
	Value   string `json:"value"`
}

// V2SwapEventData is the decoded Uniswap v2 Swap payload.
type V2SwapEventData struct {
	Sender     string `json:"sender"`
	To         string `json:"to"`
	Amount0In  string `json:"amount0_in"`
	Amount1In  string `json:"amount1_in"`
	Amount0Out string `json:"amount0_out"`
	Amount1Out string `json:"amount1_out"`
}

// V2SyncEventData is the decoded Uniswap v2 Sync payload.
type V2SyncEventData struct {
	Reserve0 string `json:"reserve0"`
	Reserve1 string `json:"reserve1"`
}

// V2MintEventData is the decoded Uniswap v2 Mint payload.
type V2MintEventData struct {
	Sender  string `json:"sender"`
	Amount0 string `json:"amount0"`
	Amount1 string `json:"amount1"`
}

// V2BurnEventData is the decoded Uniswap v2 Burn payload.
type V2BurnEventData struct {
	Sender  string `json:"sender"`
	To      string `json:"to"`
	Amount0 string `json:"amount0"`
	Amount1 string `json:"amount1"`
}

// V2PairCreatedEventData is the decoded Uniswap v2 factory PairCreated payload.
type V2PairCreatedEventData struct {
	Token0  string `json:"token0"`
	Token1  string `json:"token1"`
	Pair    string `json:"pair"`
	PairNth string `json:"pair_nth"`
}

// V3SwapEventData is the decoded Uniswap v3 Swap payload.
type V3SwapEventData struct {
	Sender       string `json:"sender"`
	Recipient    string `json:"recipient"`
	Amount0      string `json:"amount0"`
	Amount1      string `json:"amount1"`
	SqrtPriceX96 string `json:"sqrt_price_x96"`
	Liquidity    string `json:"liquidity"`
	Tick         int32  `json:"tick"`
}

// V3MintEventData is the decoded Uniswap v3 Mint payload.
type V3MintEventData struct {
	Sender    string `json:"sender"`
	Owner     string `json:"owner"`
	TickLower int32  `json:"tick_lower"`
	TickUpper int32  `json:"tick_upper"`
	Amount    string `json:"amount"`
	Amount0   string `json:"amount0"`
	Amount1   string `json:"amount1"`
}

// V3BurnEventData is the decoded Uniswap v3 Burn payload.
type V3BurnEventData struct {
	Owner     string `json:"owner"`
	TickLower int32  `json:"tick_lower"`
	TickUpper int32  `json:"tick_upper"`
	Amount    string `json:"amount"`
	Amount0   string `json:"amount0"`
	Amount1   string `json:"amount1"`
}

// V3CollectEventData is the decoded Uniswap v3 Collect payload.
type V3CollectEventData struct {
	Owner     string `json:"owner"`
	Recipient string `json:"recipient"`
	TickLower int32  `json:"tick_lower"`
	TickUpper int32  `json:"tick_upper"`
	Amount0   string `json:"amount0"`
	Amount1   string `json:"amount1"`
}

// V3PoolCreatedEventData is the decoded Uniswap v3 factory PoolCreated payload.
type V3PoolCreatedEventData struct {
	Token0      string `json:"token0"`
	Token1      string `json:"token1"`
	Fee         uint32 `json:"fee"`
	TickSpacing int32  `json:"tick_spacing"`
	Pool        string `json:"pool"`
}

// AaveSupplyEventData is the decoded Aave v3 Supply payload.
type AaveSupplyEventData struct {
	Reserve      string `json:"reserve"`
	User         string `json:"user"`
	OnBehalfOf   string `json:"on_behalf_of"`
	Amount       string `json:"amount"`
	ReferralCode uint16 `json:"referral_code"`
}

// AaveWithdrawEventData is the decoded Aave v3 Withdraw payload.
type AaveWithdrawEventData struct {
	Reserve string `json:"reserve"`
	User    string `json:"user"`
	To      string `json:"to"`
	Amount  string `json:"amount"`
}

// AaveBorrowEventData is the decoded Aave v3 Borrow payload.
type AaveBorrowEventData struct {
	Reserve          string `json:"reserve"`
	User             string `json:"user"`
	OnBehalfOf       string `json:"on_behalf_of"`
	Amount           string `json:"amount"`
	InterestRateMode uint8  `json:"interest_rate_mode"`
	BorrowRate       string `json:"borrow_rate"`
	ReferralCode     uint16 `json:"referral_code"`
}

// AaveRepayEventData is the decoded Aave v3 Repay payload.
type AaveRepayEventData struct {
	Reserve    string `json:"reserve"`
	User       string `json:"user"`
	Repayer    string `json:"repayer"`
	Amount     string `json:"amount"`
	UseATokens bool   `json:"use_atokens"`
}

// AaveLiquidationCallEventData is the decoded Aave v3 LiquidationCall payload.
type AaveLiquidationCallEventData struct {
	CollateralAsset            string `json:"collateral_asset"`
	DebtAsset                  string `json:"debt_asset"`
	User                       string `json:"user"`
	DebtToCover                string `json:"debt_to_cover"`
	LiquidatedCollateralAmount string `json:"liquidated_collateral_amount"`
	Liquidator                 string `json:"liquidator"`
	ReceiveAToken              bool   `json:"receive_atoken"`
}

// AaveReserveDataUpdatedEventData is the decoded Aave v3 ReserveDataUpdated payload.
type AaveReserveDataUpdatedEventData struct {
	Reserve             string `json:"reserve"`
	LiquidityRate       string `json:"liquidity_rate"`
	StableBorrowRate    string `json:"stable_borrow_rate"`
	VariableBorrowRate  string `json:"variable_borrow_rate"`
	LiquidityIndex      string `json:"liquidity_index"`
	VariableBorrowIndex string `json:"variable_borrow_index"`
}
