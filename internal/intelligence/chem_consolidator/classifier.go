package chem_consolidator

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Tables
// ---------------------------------------------------------------------------

// ClassifierTables are the tuned deny-lists and limits a Classifier is built
// from.  They are copied at construction; later edits have no effect.
type ClassifierTables struct {
	// JunkWords are matched case-insensitively against the whole token.
	JunkWords []string `json:"junk_words" mapstructure:"junk_words"`
	// ReactionGlyphs are substrings that mark an equation span.
	ReactionGlyphs []string `json:"reaction_glyphs" mapstructure:"reaction_glyphs"`
	// IrrelevantWords are matched on word boundaries, case-insensitively.
	IrrelevantWords []string `json:"irrelevant_words" mapstructure:"irrelevant_words"`
	// IrrelevantSymbols are single runes of math or Greek notation.
	IrrelevantSymbols []string `json:"irrelevant_symbols" mapstructure:"irrelevant_symbols"`
	// MaxFormulaLength is the longest accepted token, in characters.
	MaxFormulaLength int `json:"max_formula_length" mapstructure:"max_formula_length"`
}

// DefaultMaxFormulaLength is the longest plausible single-species formula.
const DefaultMaxFormulaLength = 15

// DefaultClassifierTables returns the empirically tuned defaults.
func DefaultClassifierTables() ClassifierTables {
	return ClassifierTables{
		JunkWords: []string{
			"BOLSIG", "HYDROCARBON", "STAINLESSSTEEL", "QUARTZ",
			"FIGURE", "TABLE", "DATA", "BY",
		},
		ReactionGlyphs: []string{"+", "→", "--", "=", "•", "⇒", "←"},
		IrrelevantWords: []string{
			"sin", "cos", "theta", "phi", "omega", "alpha", "beta", "gamma",
			"mu", "nu", "pi", "rho", "tau", "lambda", "manuscript",
		},
		IrrelevantSymbols: []string{
			"=", "•", "→", "←", "∑", "∫", "∞", "±", "′", "″", "°",
			"ϵ", "ϑ", "ϕ", "∂", "∇", "Δ", "Γ", "Λ", "Ω", "Ψ",
		},
		MaxFormulaLength: DefaultMaxFormulaLength,
	}
}

// ---------------------------------------------------------------------------
// Classifier
// ---------------------------------------------------------------------------

var (
	formulaShapeRE   = regexp.MustCompile(`^[A-Z][A-Za-z0-9]*$`)
	leadingOrdinalRE = regexp.MustCompile(`^\d+[a-zA-Z]`)
)

// Classifier decides whether a normalized token is a plausible species.
// Checks run in fixed precedence and the first failure is reported.
type Classifier struct {
	junk    map[string]struct{}
	glyphs  []string
	words   *regexp.Regexp
	symbols map[rune]struct{}
	maxLen  int
}

// NewClassifier builds a classifier from t.  A non-positive MaxFormulaLength
// falls back to DefaultMaxFormulaLength.
func NewClassifier(t ClassifierTables) *Classifier {
	c := &Classifier{
		junk:    make(map[string]struct{}, len(t.JunkWords)),
		glyphs:  make([]string, 0, len(t.ReactionGlyphs)),
		symbols: make(map[rune]struct{}, 2*len(t.IrrelevantSymbols)),
		maxLen:  t.MaxFormulaLength,
	}
	if c.maxLen <= 0 {
		c.maxLen = DefaultMaxFormulaLength
	}
	for _, w := range t.JunkWords {
		if w = strings.TrimSpace(w); w != "" {
			c.junk[strings.ToUpper(w)] = struct{}{}
		}
	}
	for _, g := range t.ReactionGlyphs {
		if g != "" {
			c.glyphs = append(c.glyphs, g)
		}
	}
	// Tokens are upper-cased by Normalize, so both cases of every symbol
	// must be present.
	for _, s := range t.IrrelevantSymbols {
		for _, r := range s {
			c.symbols[r] = struct{}{}
			c.symbols[unicode.ToUpper(r)] = struct{}{}
			c.symbols[unicode.ToLower(r)] = struct{}{}
		}
	}
	var quoted []string
	for _, w := range t.IrrelevantWords {
		if w = strings.TrimSpace(w); w != "" {
			quoted = append(quoted, regexp.QuoteMeta(strings.ToLower(w)))
		}
	}
	if len(quoted) > 0 {
		c.words = regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b`)
	}
	return c
}

// Classify returns the verdict for an already normalized token.
func (c *Classifier) Classify(f NormalizedFormula) Verdict {
	return c.classify("", f)
}

// ClassifyToken normalizes raw and classifies it.  Glyph and word checks also
// inspect raw itself, minus any trailing charge, because normalization erases
// the "+" and "-" that mark an equation.
func (c *Classifier) ClassifyToken(raw string) (NormalizedFormula, Verdict) {
	f := Normalize(raw)
	return f, c.classify(stripTrailingCharge(raw), f)
}

func (c *Classifier) classify(raw string, f NormalizedFormula) Verdict {
	switch {
	case c.IsJunk(f):
		return Reject(ReasonJunkVocabulary)
	case c.IsReactionLike(f) || c.hasReactionGlyph(raw):
		return Reject(ReasonReactionLike)
	case c.IsIrrelevant(f) || c.hasIrrelevantGlyphOrWord(raw):
		return Reject(ReasonIrrelevant)
	case !HasFormulaShape(f):
		return Reject(ReasonMalformedFormula)
	}
	return Accept()
}

// IsJunk reports an exact, case-insensitive deny-list hit.
func (c *Classifier) IsJunk(f NormalizedFormula) bool {
	_, ok := c.junk[strings.ToUpper(string(f))]
	return ok
}

// IsReactionLike reports a reaction glyph or an over-long token.
func (c *Classifier) IsReactionLike(f NormalizedFormula) bool {
	return c.hasReactionGlyph(string(f)) || utf8.RuneCountInString(string(f)) > c.maxLen
}

// IsIrrelevant reports notation symbols, Greek-letter or manuscript words,
// leading ordinals like "2nd", or more than one slash.
func (c *Classifier) IsIrrelevant(f NormalizedFormula) bool {
	s := string(f)
	return c.hasIrrelevantGlyphOrWord(s) ||
		leadingOrdinalRE.MatchString(s) ||
		strings.Count(s, "/") > 1
}

// HasFormulaShape reports one upper-case letter followed by letters or digits.
func HasFormulaShape(f NormalizedFormula) bool {
	return formulaShapeRE.MatchString(string(f))
}

func (c *Classifier) hasReactionGlyph(s string) bool {
	for _, g := range c.glyphs {
		if strings.Contains(s, g) {
			return true
		}
	}
	return false
}

func (c *Classifier) hasIrrelevantGlyphOrWord(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if _, ok := c.symbols[r]; ok {
			return true
		}
	}
	return c.words != nil && c.words.MatchString(strings.ToLower(s))
}
