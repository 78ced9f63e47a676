// Package amount converts between smallest-unit integer amounts and display
// decimal strings without precision loss. Amounts travel through the system as
// decimal strings of smallest units; arithmetic happens on big integers only.
package amount

import (
	"fmt"
	"math/big"
	"strings"
)

// Decimals is the smallest-unit scale of the escrow token.
const Decimals = 18

var scale = new(big.Int).Exp(big.NewInt(10), big.NewInt(Decimals), nil)

// parseUnits parses a smallest-unit decimal string into a non-negative big int.
func parseUnits(units string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(units), 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", units)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("negative amount %q", units)
	}
	return v, nil
}

// FromDisplay converts a display decimal string ("1.5") into smallest units
// ("1500000000000000000"). More than Decimals fractional digits is an error
// rather than a silent truncation.
func FromDisplay(display string) (string, error) {
	display = strings.TrimSpace(display)
	if display == "" {
		return "", fmt.Errorf("empty amount")
	}

	whole, frac, _ := strings.Cut(display, ".")
	if whole == "" {
		whole = "0"
	}
	if len(frac) > Decimals {
		return "", fmt.Errorf("amount %q exceeds %d decimal places", display, Decimals)
	}

	w, ok := new(big.Int).SetString(whole, 10)
	if !ok || w.Sign() < 0 {
		return "", fmt.Errorf("invalid amount %q", display)
	}

	units := new(big.Int).Mul(w, scale)
	if frac != "" {
		f, ok := new(big.Int).SetString(frac+strings.Repeat("0", Decimals-len(frac)), 10)
		if !ok {
			return "", fmt.Errorf("invalid amount %q", display)
		}
		units.Add(units, f)
	}
	return units.String(), nil
}

// ToDisplay converts smallest units into a display decimal string with
// trailing fractional zeros trimmed ("1500000000000000000" -> "1.5").
func ToDisplay(units string) (string, error) {
	v, err := parseUnits(units)
	if err != nil {
		return "", err
	}

	whole, frac := new(big.Int).QuoRem(v, scale, new(big.Int))
	if frac.Sign() == 0 {
		return whole.String(), nil
	}

	digits := strings.TrimRight(fmt.Sprintf("%0*s", Decimals, frac.String()), "0")
	return whole.String() + "." + digits, nil
}

// Add returns a+b in smallest units.
func Add(a, b string) (string, error) {
	x, err := parseUnits(a)
	if err != nil {
		return "", err
	}
	y, err := parseUnits(b)
	if err != nil {
		return "", err
	}
	return new(big.Int).Add(x, y).String(), nil
}

// Cmp compares two smallest-unit amounts: -1 if a<b, 0 if equal, 1 if a>b.
func Cmp(a, b string) (int, error) {
	x, err := parseUnits(a)
	if err != nil {
		return 0, err
	}
	y, err := parseUnits(b)
	if err != nil {
		return 0, err
	}
	return x.Cmp(y), nil
}

// FeeSplit splits an amount into (fee, net) where fee is basisPoints/10000 of
// the amount rounded down. fee+net always equals the amount exactly.
func FeeSplit(units string, basisPoints int) (fee string, net string, err error) {
	if basisPoints < 0 || basisPoints > 10000 {
		return "", "", fmt.Errorf("invalid fee basis points %d", basisPoints)
	}
	v, err := parseUnits(units)
	if err != nil {
		return "", "", err
	}

	f := new(big.Int).Mul(v, big.NewInt(int64(basisPoints)))
	f.Quo(f, big.NewInt(10000))
	n := new(big.Int).Sub(v, f)
	return f.String(), n.String(), nil
}

// IsZero reports whether the amount is exactly zero.
func IsZero(units string) (bool, error) {
	v, err := parseUnits(units)
	if err != nil {
		return false, err
	}
	return v.Sign() == 0, nil
}
