// Package mon converts between human-readable MON amounts and wei-style
// base units. MON is the native token with 18 decimals.
package mon

import (
	"math/big"
	"strings"
)

// Decimals of the native token.
const Decimals = 18

var unit = new(big.Int).Exp(big.NewInt(10), big.NewInt(Decimals), nil)

// Parse converts a decimal MON string ("0.01", "1", "2.5") to base units.
// Returns false for malformed or negative input.
func Parse(s string) (*big.Int, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		return nil, false
	}

	whole := s
	frac := ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole, frac = s[:i], s[i+1:]
		if strings.IndexByte(frac, '.') >= 0 {
			return nil, false
		}
	}
	if whole == "" && frac == "" {
		return nil, false
	}
	if len(frac) > Decimals {
		return nil, false
	}

	if whole == "" {
		whole = "0"
	}
	w, ok := new(big.Int).SetString(whole, 10)
	if !ok {
		return nil, false
	}
	w.Mul(w, unit)

	if frac != "" {
		// Right-pad the fraction to 18 digits.
		f, ok := new(big.Int).SetString(frac, 10)
		if !ok {
			return nil, false
		}
		scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(Decimals-len(frac))), nil)
		w.Add(w, f.Mul(f, scale))
	}

	return w, true
}

// Format converts base units to a decimal MON string with trailing zeros
// trimmed. Format(Parse(x)) round-trips for canonical inputs.
func Format(v *big.Int) string {
	if v == nil {
		return "0"
	}

	neg := v.Sign() < 0
	abs := new(big.Int).Abs(v)

	q, r := new(big.Int).QuoRem(abs, unit, new(big.Int))
	out := q.String()
	if r.Sign() != 0 {
		frac := r.String()
		for len(frac) < Decimals {
			frac = "0" + frac
		}
		frac = strings.TrimRight(frac, "0")
		out += "." + frac
	}
	if neg {
		out = "-" + out
	}
	return out
}
