package chem_consolidator

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ScrubText returns text with every whole-word occurrence of a rejected term
// removed.  An occurrence counts only when the runes on either side are not
// letters or digits, so rejecting "BY" leaves "BYPASS" intact.  The input is
// never modified in place and the pipeline does not call ScrubText.
func ScrubText(text string, rejected []string) string {
	terms := make([]string, 0, len(rejected))
	seen := make(map[string]bool, len(rejected))
	for _, t := range rejected {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		terms = append(terms, t)
	}
	// Longer terms first so "O2+ ion" is removed before "O2+".
	sort.SliceStable(terms, func(i, j int) bool { return len(terms[i]) > len(terms[j]) })

	for _, term := range terms {
		text = removeWholeWord(text, term)
	}
	return text
}

func removeWholeWord(text, term string) string {
	var sb strings.Builder
	rest := text
	for {
		i := strings.Index(rest, term)
		if i < 0 {
			sb.WriteString(rest)
			return sb.String()
		}
		sb.WriteString(rest[:i])
		end := i + len(term)
		if !isWordEdge(sb.String(), term, true) || !isWordEdge(rest[end:], term, false) {
			sb.WriteString(term)
		}
		rest = rest[end:]
	}
}

// isWordEdge reports whether the neighbour of term on the given side is a
// boundary.  Terms that themselves start or end with a non-word rune always
// have a boundary on that side.
func isWordEdge(neighbour, term string, before bool) bool {
	var edge, next rune
	if before {
		edge, _ = utf8.DecodeRuneInString(term)
		next, _ = utf8.DecodeLastRuneInString(neighbour)
	} else {
		edge, _ = utf8.DecodeLastRuneInString(term)
		next, _ = utf8.DecodeRuneInString(neighbour)
	}
	if !isWordRune(edge) {
		return true
	}
	return next == utf8.RuneError || !isWordRune(next)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
