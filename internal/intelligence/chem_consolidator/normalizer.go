package chem_consolidator

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// subscriptDigits maps U+2080..U+2089 to ASCII.
var subscriptDigits = map[rune]rune{
	'₀': '0', '₁': '1', '₂': '2', '₃': '3', '₄': '4',
	'₅': '5', '₆': '6', '₇': '7', '₈': '8', '₉': '9',
}

// isChargeMarker reports whether r is a charge sign the normalizer drops.
func isChargeMarker(r rune) bool {
	switch r {
	case '+', '-', '⁺', '⁻':
		return true
	}
	return false
}

// Normalize folds the surface variation of a species string into one
// comparable form.  The input is NFC-composed, whitespace and underscores are
// removed, subscript digits become ASCII, charge markers are removed and the
// result is upper-cased.
//
// Normalize is total and idempotent.  A string made only of whitespace and
// charge markers normalizes to "".
func Normalize(raw string) NormalizedFormula {
	if raw == "" {
		return ""
	}
	composed := norm.NFC.String(raw)

	var sb strings.Builder
	sb.Grow(len(composed))
	for _, r := range composed {
		switch {
		case unicode.IsSpace(r), r == '_':
			continue
		case isChargeMarker(r):
			continue
		}
		if d, ok := subscriptDigits[r]; ok {
			r = d
		}
		sb.WriteRune(r)
	}
	return NormalizedFormula(norm.NFC.String(strings.ToUpper(sb.String())))
}

// stripTrailingCharge removes a trailing run of charge markers and whitespace
// so that "O2+" or "NO₃⁻" are not mistaken for reaction spans.
func stripTrailingCharge(raw string) string {
	return strings.TrimRightFunc(raw, func(r rune) bool {
		return isChargeMarker(r) || unicode.IsSpace(r)
	})
}
