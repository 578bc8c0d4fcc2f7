package sizing

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// EtherDecimals is the number of decimals of the native asset.
const EtherDecimals = 18

// ParseUnits parses a positive decimal string into base units.
func ParseUnits(value string, decimals int32) (*big.Int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, fmt.Errorf("amount is required")
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	scaled := d.Shift(decimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("amount %q has more than %d decimals", value, decimals)
	}
	return scaled.BigInt(), nil
}

// ParseEther parses an ETH amount such as "1.25" into wei.
func ParseEther(value string) (*big.Int, error) {
	return ParseUnits(value, EtherDecimals)
}

// FormatUnits renders base units as a decimal string.
func FormatUnits(value *big.Int, decimals int32) string {
	if value == nil {
		return "0"
	}
	return decimal.NewFromBigInt(value, -decimals).String()
}

// FormatEther renders wei as ETH.
func FormatEther(value *big.Int) string {
	return FormatUnits(value, EtherDecimals)
}
