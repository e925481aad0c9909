package token

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Standard ERC20 metadata getters. Some early tokens (MKR, SAI) return
// bytes32 instead of string for symbol and name, so both shapes are kept.
const erc20StringJSON = `[
  {"inputs": [], "name": "decimals", "outputs": [{"type": "uint8"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "symbol", "outputs": [{"type": "string"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "name", "outputs": [{"type": "string"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "totalSupply", "outputs": [{"type": "uint256"}], "stateMutability": "view", "type": "function"}
]`

const erc20Bytes32JSON = `[
  {"inputs": [], "name": "decimals", "outputs": [{"type": "uint8"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "symbol", "outputs": [{"type": "bytes32"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "name", "outputs": [{"type": "bytes32"}], "stateMutability": "view", "type": "function"}
]`

var (
	erc20String      abi.ABI
	erc20StringOnce  sync.Once
	erc20StringErr   error
	erc20Bytes32     abi.ABI
	erc20Bytes32Once sync.Once
	erc20Bytes32Err  error
)

func erc20StringABI() (abi.ABI, error) {
	erc20StringOnce.Do(func() {
		erc20String, erc20StringErr = abi.JSON(strings.NewReader(erc20StringJSON))
	})
	return erc20String, erc20StringErr
}

func erc20Bytes32ABI() (abi.ABI, error) {
	erc20Bytes32Once.Do(func() {
		erc20Bytes32, erc20Bytes32Err = abi.JSON(strings.NewReader(erc20Bytes32JSON))
	})
	return erc20Bytes32, erc20Bytes32Err
}
