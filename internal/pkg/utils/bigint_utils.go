package utils

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// ErrInvalidBalance is returned when a balance literal is not a non-negative integer.
var ErrInvalidBalance = errors.New("invalid balance literal")

// ParseBalance parses a raw balance literal. Only unsigned base-10 integers are accepted.
func ParseBalance(value string) (*big.Int, error) {
	if value == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidBalance)
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return nil, fmt.Errorf("%w: %q", ErrInvalidBalance, value)
		}
	}
	amount, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBalance, value)
	}
	return amount, nil
}

// BalanceLiteral renders a queried balance as a stored value literal.
func BalanceLiteral(amount *big.Int) (string, error) {
	if amount == nil {
		return "0", nil
	}
	if amount.Sign() < 0 {
		return "", fmt.Errorf("%w: negative amount %s", ErrInvalidBalance, amount.String())
	}
	return amount.String(), nil
}

// FormatBigInt converts a big.Int value to a human-readable string,
// considering the given number of decimals.
// Example: amount=1234500000000000000, decimals=18 => "1.2345"
func FormatBigInt(amount *big.Int, decimals uint8) (string, error) {
	if amount == nil {
		return "0", nil
	}
	if decimals == 0 {
		return amount.String(), nil
	}

	divisor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	value := new(big.Rat).SetFrac(amount, divisor)

	formattedStr := value.FloatString(int(decimals))
	if strings.Contains(formattedStr, ".") {
		formattedStr = strings.TrimRight(formattedStr, "0")
		formattedStr = strings.TrimRight(formattedStr, ".")
	}
	if formattedStr == "" || formattedStr == "-0" {
		if amount.Sign() == 0 {
			return "0", nil
		}
		return value.FloatString(2), fmt.Errorf("formatting resulted in empty string for non-zero value")
	}
	return formattedStr, nil
}

// FormatBalance formats a stored value literal with the token decimals.
func FormatBalance(value string, decimals uint8) (string, error) {
	amount, err := ParseBalance(value)
	if err != nil {
		return "", err
	}
	return FormatBigInt(amount, decimals)
}
