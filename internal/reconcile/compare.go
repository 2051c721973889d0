package reconcile

import (
	"strings"

	"github.com/shopspring/decimal"
)

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// normalizeValue parses a raw metric value onto the percent scale: "92.5%"
// becomes 92.5, a bare fraction in [0,1] becomes its percentage, any other
// number passes through. The second return is false for non-numeric values.
func normalizeValue(raw string) (decimal.Decimal, bool) {
	s := strings.TrimSpace(raw)
	s = strings.Trim(s, " ")
	if s == "" || s == "-" || s == "—" || s == "/" {
		return decimal.Zero, false
	}

	if pct, ok := strings.CutSuffix(s, "%"); ok {
		d, err := decimal.NewFromString(strings.TrimSpace(pct))
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	if !d.IsNegative() && d.LessThanOrEqual(one) {
		d = d.Mul(hundred)
	}
	return d, true
}

// valuesDiffer compares a stored value against a reported one. Numeric pairs
// are compared on the percent scale within epsilon; anything else falls back
// to trimmed string equality. Two blanks never differ.
func valuesDiffer(system, reported string, epsilon decimal.Decimal) bool {
	sysNum, sysOK := normalizeValue(system)
	repNum, repOK := normalizeValue(reported)
	if sysOK && repOK {
		return sysNum.Sub(repNum).Abs().GreaterThan(epsilon)
	}
	return strings.TrimSpace(system) != strings.TrimSpace(reported)
}
