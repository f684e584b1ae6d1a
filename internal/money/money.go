// Package money provides parsing and formatting for currency amounts.
//
// All amounts are carried as uint64 in the smallest unit with 6 decimal
// places (1.000000 = 1,000,000 units). The ledger core never touches
// decimal strings; these helpers exist for API input and output only.
package money

import (
	"math"
	"strconv"
	"strings"
)

const Decimals = 6

// unitsPerWhole is 10^Decimals.
const unitsPerWhole = 1_000_000

// Parse converts a decimal string (e.g. "1.50") to its smallest-unit
// representation (1500000). Returns (0, false) on invalid input.
//
// Rules:
//   - Empty string returns (0, true)
//   - Negative amounts are rejected
//   - Multiple decimal points are rejected
//   - Fractional parts are padded/truncated to 6 decimal places
//   - Values that overflow uint64 are rejected
func Parse(s string) (uint64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, true
	}

	if strings.HasPrefix(s, "-") {
		return 0, false
	}

	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, false
	}
	whole := parts[0]
	frac := ""
	if len(parts) > 1 {
		frac = parts[1]
	}
	if whole == "" {
		whole = "0"
	}

	// Pad or trim to 6 decimals
	for len(frac) < Decimals {
		frac += "0"
	}
	frac = frac[:Decimals]

	w, err := strconv.ParseUint(whole, 10, 64)
	if err != nil {
		return 0, false
	}
	f, err := strconv.ParseUint(frac, 10, 64)
	if err != nil {
		return 0, false
	}

	if w > (math.MaxUint64-f)/unitsPerWhole {
		return 0, false
	}
	return w*unitsPerWhole + f, true
}

// Format converts a smallest-unit amount to a decimal string with
// exactly 6 decimal places (e.g. "1.500000").
func Format(amount uint64) string {
	whole := amount / unitsPerWhole
	frac := amount % unitsPerWhole
	fracStr := strconv.FormatUint(frac, 10)
	for len(fracStr) < Decimals {
		fracStr = "0" + fracStr
	}
	return strconv.FormatUint(whole, 10) + "." + fracStr
}
