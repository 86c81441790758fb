package chem_consolidator

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/turtacn/GasTM-Consolidator/internal/infrastructure/monitoring/logging"
)

func TestPipeline_ScenarioA_BuiltinFolding(t *testing.T) {
	p := NewPipeline(WithCurationTable(NewCurationTable(nil)))

	res := p.Process("doc-a", []RawToken{
		{Text: "O₂", Count: 3},
		{Text: "O2", Count: 2},
		{Text: "foo+bar", Count: 5},
		{Text: "BOLSIG", Count: 1},
	})

	assert.Equal(t, map[CanonicalName]int{"oxygen": 5}, res.Counts.ToMap())
	require.Len(t, res.Rejections, 2)
	assert.Equal(t, ReasonReactionLike, res.Rejections[0].Reason)
	assert.Equal(t, ReasonJunkVocabulary, res.Rejections[1].Reason)

	require.Len(t, res.Trace, 2)
	assert.Equal(t, "O₂", res.Trace[0].Raw)
	assert.Equal(t, "O2", res.Trace[1].Raw)
	assert.Equal(t, MethodBuiltin, res.Trace[0].Method)
	assert.Equal(t, "O₂ => [UNRESOLVED] (oxygen)", res.Trace[0].String())

	assert.Equal(t, Stats{
		Records: 4, AcceptedRecords: 2, RejectedRecords: 2,
		AcceptedCount: 5, RejectedCount: 6, Species: 1,
	}, res.Stats)
	assert.False(t, res.Degraded)
}

func TestPipeline_ScenarioB_Fallback(t *testing.T) {
	p := NewPipeline()
	res := p.Process("doc-b", []RawToken{{Text: "NO_x", Count: 4}})

	assert.True(t, res.Degraded)
	n, ok := res.Counts.Get("nox")
	assert.True(t, ok)
	assert.Equal(t, 4, n)
	require.Len(t, res.Trace, 1)
	assert.Equal(t, NormalizedFormula("NOX"), res.Trace[0].Normalized)
	assert.False(t, res.Trace[0].Resolved)
	assert.Equal(t, MethodFallback, res.Trace[0].Method)
}

func TestPipeline_ScenarioC_CuratedName(t *testing.T) {
	table := NewCurationTable([]CurationEntry{
		{RawLabel: "atomic oxygen ion", ResolvedLabel: "oxygen"},
	})
	p := NewPipeline(WithCurationTable(table))
	res := p.Process("doc-c", []RawToken{{Text: "atomic oxygen ion", Count: 2}})

	assert.Equal(t, map[CanonicalName]int{"oxygen": 2}, res.Counts.ToMap())
	require.Len(t, res.Trace, 1)
	assert.True(t, res.Trace[0].Resolved)
	assert.Equal(t, MethodCuratedName, res.Trace[0].Method)
	assert.Equal(t, "atomic oxygen ion => oxygen", res.Trace[0].String())
}

func TestPipeline_ScenarioD_MalformedCount(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	p := NewPipeline(WithLogger(logging.NewLoggerFromCore(core)))

	res := p.ProcessRecords("doc-d", []RawRecord{
		{Token: "CO2", Count: "two", Line: 1},
		{Token: "N2", Count: " 7 ", Line: 2},
		{Token: "CO", Count: "-1", Line: 3},
		{Token: "", Count: "4", Line: 4},
		{Token: "CO", Count: "0", Line: 5},
		{Token: "CO", Count: "1.5", Line: 6},
	})

	assert.Equal(t, map[CanonicalName]int{"nitrogen": 7}, res.Counts.ToMap())
	require.Len(t, res.Warnings, 5)
	assert.Equal(t, 1, res.Warnings[0].Line)
	assert.Equal(t, "count is not an integer", res.Warnings[0].Message)
	assert.Equal(t, "count must be a positive integer", res.Warnings[1].Message)
	assert.Equal(t, "empty token", res.Warnings[2].Message)
	assert.Equal(t, 5, res.Stats.SkippedRecords)
	assert.Equal(t, 6, res.Stats.Records)

	entries := logs.FilterMessage("skipping malformed record").All()
	require.Len(t, entries, 5)
	fields := entries[0].ContextMap()
	assert.Equal(t, "doc-d", fields["document_id"])
	assert.Equal(t, "CO2", fields["token"])
	assert.Equal(t, "two", fields["raw_count"])
	assert.Equal(t, "SPC_001", fields["code"])
}

func TestPipeline_CountOverflowSkipped(t *testing.T) {
	p := NewPipeline()
	maxCount := strconv.Itoa(math.MaxInt)

	res := p.ProcessRecords("doc-big", []RawRecord{
		{Token: "O2", Count: maxCount, Line: 1},
		{Token: "O", Count: "2", Line: 2},
		{Token: "N2", Count: "3", Line: 3},
		{Token: "Figure", Count: maxCount, Line: 4},
		{Token: "Table", Count: "1", Line: 5},
	})

	assert.Equal(t, map[CanonicalName]int{"oxygen": math.MaxInt}, res.Counts.ToMap())
	assert.Equal(t, math.MaxInt, res.Stats.AcceptedCount)
	assert.Equal(t, math.MaxInt, res.Stats.RejectedCount)
	require.Len(t, res.Warnings, 3)
	assert.Equal(t, 2, res.Warnings[0].Line)
	assert.Equal(t, "count overflows document total", res.Warnings[0].Message)
	assert.Equal(t, 3, res.Warnings[1].Line)
	assert.Equal(t, 5, res.Warnings[2].Line)
	assert.Len(t, res.Rejections, 1)
	assert.Equal(t, 5, res.Stats.Records)
	assert.Equal(t, 3, res.Stats.SkippedRecords)

	typed := p.Process("doc-big", []RawToken{{Text: "O2", Count: math.MaxInt}, {Text: "O2", Count: 1}})
	assert.Equal(t, math.MaxInt, typed.Counts.Total())
	require.Len(t, typed.Warnings, 1)
	assert.Equal(t, 2, typed.Warnings[0].Line)
}

func TestPipeline_Fingerprint(t *testing.T) {
	base := NewPipeline()
	assert.Len(t, base.Fingerprint(), 16)
	assert.Equal(t, base.Fingerprint(), NewPipeline().Fingerprint())
	assert.Equal(t, base.Fingerprint(), base.WithCuration(NewCurationTable(nil)).Fingerprint())

	reordered := DefaultClassifierTables()
	reordered.JunkWords[0], reordered.JunkWords[1] = reordered.JunkWords[1], reordered.JunkWords[0]
	assert.Equal(t, base.Fingerprint(), NewPipeline(WithClassifierTables(reordered)).Fingerprint())

	junk := DefaultClassifierTables()
	junk.JunkWords = append(junk.JunkWords, "AR")
	assert.NotEqual(t, base.Fingerprint(), NewPipeline(WithClassifierTables(junk)).Fingerprint())

	longer := DefaultClassifierTables()
	longer.MaxFormulaLength = 20
	assert.NotEqual(t, base.Fingerprint(), NewPipeline(WithClassifierTables(longer)).Fingerprint())

	builtin := DefaultBuiltinFormulas()
	builtin["AR"] = "argon"
	assert.NotEqual(t, base.Fingerprint(), NewPipeline(WithBuiltinFormulas(builtin)).Fingerprint())
}

func TestPipeline_EmptyInput(t *testing.T) {
	p := NewPipeline()
	res := p.Process("empty", nil)

	assert.Equal(t, 0, res.Counts.Len())
	assert.Empty(t, res.Trace)
	assert.Empty(t, res.Rejections)
	assert.Empty(t, res.Warnings)

	res = p.ProcessRecords("empty", []RawRecord{})
	assert.Equal(t, 0, res.Counts.Len())
}

func TestPipeline_Invariants(t *testing.T) {
	table := NewCurationTable([]CurationEntry{
		{RawLabel: "NO", ResolvedLabel: "nitric oxide"},
		{RawLabel: "nitrosyl", ResolvedLabel: "nitric oxide"},
	})
	p := NewPipeline(WithCurationTable(table))
	tokens := []RawToken{
		{Text: "NO", Count: 3},
		{Text: "nitrosyl", Count: 4},
		{Text: "O₂", Count: 1},
		{Text: "Ar", Count: 2},
		{Text: "H2 + O2", Count: 9},
		{Text: "α", Count: 1},
		{Text: "Table", Count: 8},
		{Text: "12abc", Count: 2},
		{Text: "CH₄", Count: 6},
		{Text: "ch4", Count: 1},
	}
	res := p.Process("doc", tokens)
	c := NewClassifier(DefaultClassifierTables())

	accepted := 0
	rejectedNames := map[CanonicalName]bool{}
	for _, tok := range tokens {
		f, v := c.ClassifyToken(tok.Text)
		if v.Accepted {
			accepted += tok.Count
		} else {
			rejectedNames[CanonicalName(strings.ToLower(string(f)))] = true
		}
	}

	// Count conservation.
	assert.Equal(t, accepted, res.Counts.Total())
	assert.Equal(t, accepted, res.Stats.AcceptedCount)

	// Rejection completeness.
	for _, name := range res.Counts.Names() {
		assert.False(t, rejectedNames[name], name)
	}

	// Collision folding.
	n, _ := res.Counts.Get("nitric oxide")
	assert.Equal(t, 7, n)
	n, _ = res.Counts.Get("ch4")
	assert.Equal(t, 7, n)

	// Trace covers only resolver inputs, in input order.
	require.Len(t, res.Trace, 6)
	assert.Equal(t, []string{"NO", "nitrosyl", "O₂", "Ar", "CH₄", "ch4"},
		traceRaws(res.Trace))
	assert.Len(t, res.Rejections, 4)
}

func TestPipeline_ConcurrentUse(t *testing.T) {
	p := NewPipeline(WithCurationTable(NewCurationTable([]CurationEntry{
		{RawLabel: "Ar", ResolvedLabel: "argon"},
	})))

	var wg sync.WaitGroup
	results := make([]*DocumentResult, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = p.Process(fmt.Sprintf("doc-%d", i), []RawToken{
				{Text: "Ar", Count: i + 1},
				{Text: "O2", Count: 1},
			})
		}(i)
	}
	wg.Wait()

	for i, res := range results {
		n, ok := res.Counts.Get("argon")
		assert.True(t, ok)
		assert.Equal(t, i+1, n)
		assert.Equal(t, fmt.Sprintf("doc-%d", i), res.DocumentID)
	}
}

func TestPipeline_WithCuration(t *testing.T) {
	base := NewPipeline()
	curated := base.WithCuration(NewCurationTable([]CurationEntry{
		{RawLabel: "NO", ResolvedLabel: "nitric oxide"},
	}))

	name, resolved := curated.Resolver().Resolve("NO")
	assert.Equal(t, CanonicalName("nitric oxide"), name)
	assert.True(t, resolved)

	name, resolved = base.Resolver().Resolve("NO")
	assert.Equal(t, CanonicalName("no"), name)
	assert.False(t, resolved)
	assert.Same(t, base.Classifier(), curated.Classifier())
}

func TestDocumentResult_RejectedTokens(t *testing.T) {
	res := NewPipeline().Process("d", []RawToken{
		{Text: "BY", Count: 1},
		{Text: "theta", Count: 1},
		{Text: "BY", Count: 2},
	})
	assert.Equal(t, []string{"BY", "theta"}, res.RejectedTokens())
}

func traceRaws(tr ResolutionTrace) []string {
	out := make([]string, len(tr))
	for i, e := range tr {
		out[i] = e.Raw
	}
	return out
}
