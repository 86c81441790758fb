package consolidation

import (
	"github.com/turtacn/GasTM-Consolidator/internal/config"
	"github.com/turtacn/GasTM-Consolidator/internal/infrastructure/monitoring/logging"
	cc "github.com/turtacn/GasTM-Consolidator/internal/intelligence/chem_consolidator"
)

// ClassifierTablesFromConfig overlays the configured lists on the defaults.
// An empty list keeps the default; ExtraJunkWords extend whichever junk list
// is in effect.
func ClassifierTablesFromConfig(pc config.PipelineConfig) cc.ClassifierTables {
	t := cc.DefaultClassifierTables()
	if len(pc.JunkWords) > 0 {
		t.JunkWords = append([]string(nil), pc.JunkWords...)
	}
	t.JunkWords = append(t.JunkWords, pc.ExtraJunkWords...)
	if len(pc.ReactionGlyphs) > 0 {
		t.ReactionGlyphs = append([]string(nil), pc.ReactionGlyphs...)
	}
	if len(pc.IrrelevantWords) > 0 {
		t.IrrelevantWords = append([]string(nil), pc.IrrelevantWords...)
	}
	if len(pc.IrrelevantSymbols) > 0 {
		t.IrrelevantSymbols = append([]string(nil), pc.IrrelevantSymbols...)
	}
	if pc.MaxFormulaLength > 0 {
		t.MaxFormulaLength = pc.MaxFormulaLength
	}
	return t
}

// BuiltinFormulasFromConfig returns the configured built-in table, or the
// default when none is configured.
func BuiltinFormulasFromConfig(pc config.PipelineConfig) cc.BuiltinFormulas {
	if len(pc.BuiltinFormulas) == 0 {
		return cc.DefaultBuiltinFormulas()
	}
	b := make(cc.BuiltinFormulas, len(pc.BuiltinFormulas))
	for k, v := range pc.BuiltinFormulas {
		b[cc.NormalizedFormula(k)] = cc.CanonicalName(v)
	}
	return b
}

// PipelineFromConfig builds a pipeline from the pipeline section.  The
// curation table is supplied separately by a CurationProvider.
func PipelineFromConfig(pc config.PipelineConfig, logger logging.Logger) *cc.Pipeline {
	return cc.NewPipeline(
		cc.WithClassifierTables(ClassifierTablesFromConfig(pc)),
		cc.WithBuiltinFormulas(BuiltinFormulasFromConfig(pc)),
		cc.WithLogger(logger),
	)
}
