package common

import (
	"fmt"
	"math/big"
	"strings"
)

const (
	EtherDecimals = 18 // wei per ether
	GweiDecimals  = 9
)

// WeiToEther converts a wei amount to an ether decimal string without
// float precision loss.
func WeiToEther(wei *big.Int) string {
	return FormatWithDecimals(wei, EtherDecimals)
}

// FormatWithDecimals converts an integer amount to a decimal string by
// inserting the decimal point.
// Example: FormatWithDecimals(24981836, 9) = "0.024981836"
func FormatWithDecimals(value *big.Int, decimals int) string {
	s := value.String()
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}

	for len(s) <= decimals {
		s = "0" + s
	}
	pos := len(s) - decimals
	out := s[:pos] + "." + s[pos:]
	if neg {
		out = "-" + out
	}
	return out
}

// ParseWithDecimals converts a decimal string to an integer amount by
// removing the decimal point.
// Example: ParseWithDecimals("0.024981836", 9) = 24981836
func ParseWithDecimals(s string, decimals int) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty string")
	}

	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return nil, fmt.Errorf("invalid decimal format")
	}

	whole := parts[0]
	frac := ""
	if len(parts) == 2 {
		frac = parts[1]
	}

	if len(frac) < decimals {
		frac += strings.Repeat("0", decimals-len(frac))
	} else if len(frac) > decimals {
		frac = frac[:decimals]
	}

	out, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	return out, nil
}

// FiatValue prices a wei amount at a per-ether decimal rate, returning a
// two-decimal fiat string.
func FiatValue(wei *big.Int, rate string) (string, error) {
	r, ok := new(big.Rat).SetString(rate)
	if !ok {
		return "", fmt.Errorf("invalid rate %q", rate)
	}
	ether := new(big.Rat).SetFrac(wei, new(big.Int).Exp(big.NewInt(10), big.NewInt(EtherDecimals), nil))
	return new(big.Rat).Mul(ether, r).FloatString(2), nil
}
