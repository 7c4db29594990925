package tabular

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/menta2k/catalog-prep/pkg/types"
)

// ParsePrice converts a currency-prefixed price to a float.
//
// The leading run of non-digit characters is the currency symbol and must
// be present (a mis-decoded "Â£" counts as one symbol). The remainder is
// either a plain decimal ("42.0") or comma-grouped thousands ("1,234.50"),
// in which case every group after the first has exactly three digits and
// only the last group may carry a fraction. Groups are summed as
// group * 1000^(position from the right).
func ParsePrice(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	body := strings.TrimLeftFunc(s, func(r rune) bool {
		return !unicode.IsDigit(r) && r != '.' && r != ',' && r != '-' && r != '+' && !unicode.IsSpace(r)
	})
	if body == s {
		return 0, types.Malformed("price %q: missing currency symbol", raw)
	}
	if body == "" {
		return 0, types.Malformed("price %q: missing amount", raw)
	}

	if !strings.Contains(body, ",") {
		if !isDecimal(body) {
			return 0, types.Malformed("price %q: invalid amount", raw)
		}
		return strconv.ParseFloat(body, 64)
	}

	groups := strings.Split(body, ",")
	total := 0.0
	scale := 1.0
	for i := len(groups) - 1; i >= 0; i-- {
		g := groups[i]
		switch {
		case i == 0:
			if len(g) == 0 || len(g) > 3 || !isDigits(g) {
				return 0, types.Malformed("price %q: invalid leading group %q", raw, g)
			}
		case i == len(groups)-1:
			whole, frac, hasFrac := strings.Cut(g, ".")
			if len(whole) != 3 || !isDigits(whole) || (hasFrac && (frac == "" || !isDigits(frac))) {
				return 0, types.Malformed("price %q: invalid group %q", raw, g)
			}
		default:
			if len(g) != 3 || !isDigits(g) {
				return 0, types.Malformed("price %q: invalid group %q", raw, g)
			}
		}
		v, err := strconv.ParseFloat(g, 64)
		if err != nil {
			return 0, types.Malformed("price %q: %v", raw, err)
		}
		total += v * scale
		scale *= 1000
	}
	return total, nil
}

// FormatPrice renders a parsed price in its shortest exact form.
func FormatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isDecimal(s string) bool {
	whole, frac, hasFrac := strings.Cut(s, ".")
	if !isDigits(whole) {
		return false
	}
	return !hasFrac || isDigits(frac)
}
