package scan

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// Filter selects logs by contract address and event signature topic.
// An empty address list scans the whole chain and is only allowed when
// at least one topic0 narrows the query.
type Filter struct {
	Addresses []common.Address
	Topic0    []common.Hash
}

// NewFilter builds a filter from address strings and event selectors.
// Each selector is either a canonical event signature, for example
// "Transfer(address,address,uint256)", or a 32-byte topic0 hex string.
func NewFilter(addresses []string, selectors []string) (Filter, error) {
	parsed, err := ParseAddresses(addresses)
	if err != nil {
		return Filter{}, err
	}

	topics := make([]common.Hash, 0, len(selectors))
	for _, selector := range selectors {
		selector = strings.TrimSpace(selector)
		if selector == "" {
			continue
		}
		topic, err := parseSelector(selector)
		if err != nil {
			return Filter{}, err
		}
		topics = append(topics, topic)
	}

	f := Filter{Addresses: parsed, Topic0: topics}
	if err := f.Validate(); err != nil {
		return Filter{}, err
	}
	return f, nil
}

// Validate checks the filter narrows the query at all.
func (f Filter) Validate() error {
	if len(f.Addresses) == 0 && len(f.Topic0) == 0 {
		return fmt.Errorf("filter needs at least one address or topic0")
	}
	return nil
}

// Topics returns the positional topics list for eth_getLogs.
func (f Filter) Topics() [][]common.Hash {
	if len(f.Topic0) == 0 {
		return nil
	}
	return [][]common.Hash{f.Topic0}
}

// Matches reports whether a log's address and topic0 pass the filter.
// The node already filters server side; this guards merged sources.
func (f Filter) Matches(address common.Address, topic0 common.Hash) bool {
	if len(f.Addresses) > 0 {
		found := false
		for _, a := range f.Addresses {
			if a == address {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(f.Topic0) > 0 {
		for _, t := range f.Topic0 {
			if t == topic0 {
				return true
			}
		}
		return false
	}
	return true
}

// EventSignatureTopic hashes a canonical event signature into its topic0.
func EventSignatureTopic(signature string) common.Hash {
	return crypto.Keccak256Hash([]byte(signature))
}

func parseSelector(selector string) (common.Hash, error) {
	if strings.Contains(selector, "(") {
		if !strings.HasSuffix(selector, ")") {
			return common.Hash{}, fmt.Errorf("malformed event signature: %s", selector)
		}
		return EventSignatureTopic(selector), nil
	}

	data, err := hexutil.Decode(selector)
	if err != nil {
		return common.Hash{}, fmt.Errorf("invalid topic0: %s", selector)
	}
	if len(data) != 32 {
		return common.Hash{}, fmt.Errorf("invalid topic0 length: %s", selector)
	}
	return common.BytesToHash(data), nil
}

// ParseAddresses converts string addresses into common.Address.
func ParseAddresses(inputs []string) ([]common.Address, error) {
	addresses := make([]common.Address, 0, len(inputs))
	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if !common.IsHexAddress(input) {
			return nil, fmt.Errorf("invalid address: %s", input)
		}
		addresses = append(addresses, common.HexToAddress(input))
	}
	return addresses, nil
}
