package core

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// amountPattern matches candidate amounts: runs of digits, separators and
// spaces, optionally wrapped by a USD or $ marker on either side. Go's \s is
// ASCII-only, so Unicode spaces (NBSP, narrow NBSP, thin space) are admitted
// via \p{Zs}.
var amountPattern = regexp.MustCompile(`(?i)(?:(?:USD|\$)[\s\p{Zs}]*)?([0-9\s\p{Zs}.,]+)[\s\p{Zs}]*(?:USD|\$)?`)

// ParseAmount extracts the spend amount from free text.
//
// Every digit-bearing candidate matched by amountPattern is normalized and
// parsed exactly; when several numbers appear the largest wins ("SKY 12 units
// 3400 USD" -> 3400) on the assumption that the biggest number is the spend
// total. That is a heuristic and can misfire on messages where a quantity
// exceeds the price.
//
// Returns ErrNoAmount when no candidate carries a digit, and ErrInvalidAmount
// when a digit-bearing candidate does not normalize to a decimal number. Zero
// is a valid result; rejecting non-positive amounts is the caller's job.
func ParseAmount(text string) (decimal.Decimal, error) {
	var (
		best  decimal.Decimal
		found bool
	)
	for _, m := range amountPattern.FindAllStringSubmatch(text, -1) {
		raw := m[1]
		// The separator class also matches bare space runs between words.
		if !strings.ContainsAny(raw, "0123456789") {
			continue
		}
		d, err := decimal.NewFromString(normalizeAmount(raw))
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("%w: %q", ErrInvalidAmount, strings.TrimSpace(raw))
		}
		if !found || d.GreaterThan(best) {
			best = d
			found = true
		}
	}
	if !found {
		return decimal.Decimal{}, ErrNoAmount
	}
	return best, nil
}

// normalizeAmount reduces a matched candidate to plain decimal syntax:
//
//  1. strip all whitespace, ASCII and Unicode;
//  2. both separators present: the rightmost one is the decimal mark, the
//     other is thousands grouping ("1.234,56" and "1,234.56" -> 1234.56);
//  3. exactly one comma and no dot: decimal comma ("1234,56" -> 1234.56);
//  4. several commas and no dot: thousands commas ("1,200,300" -> 1200300);
//  5. otherwise literal, so "1.2.3" stays malformed.
//
// A single trailing dot is trimmed; it is sentence punctuation, not a
// decimal mark.
func normalizeAmount(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)

	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.ReplaceAll(s, ",", ".")
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(s, ",") == 1 {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	}
	return strings.TrimSuffix(s, ".")
}
