package mbr

import (
	"fmt"
	"log/slog"
	"math"
)

// Config controls the windowed Levenshtein decoder.
type Config struct {
	// ContextRadius is the number of words of past and future context
	// carried on each side of the word being decided; the window size
	// is 2*ContextRadius+1. Default: 1
	ContextRadius int

	// Cost scores substitution/insertion/deletion edits. Default:
	// KroneckerCost{}
	Cost CostFunction

	// PruningRiskThreshold drops a candidate continuation once its
	// risk exceeds the best candidate's risk by more than this margin.
	// Default: +Inf (disabled)
	PruningRiskThreshold float64

	// PruningSupplySize is the number of slots to decode before
	// pruning may start. Default: disabled (math.MaxInt)
	PruningSupplySize int

	// PruningInterval is the number of slots between pruning passes.
	// Default: disabled (math.MaxInt)
	PruningInterval int

	// VRestricted excludes the confusion network's synthetic LastLabel
	// filler from the candidate output alphabet, restricting output
	// decisions to genuine words. Default: false
	VRestricted bool

	// NormalizationTolerance bounds how far a slot's summed posterior
	// mass may drift from 1 before a warning is logged. Default: 0.01
	NormalizationTolerance float64

	// Logger receives warnings about normalization drift and search
	// space exhaustion. Default: slog.Default()
	Logger *slog.Logger
}

// DefaultConfig returns the decoder's default configuration.
func DefaultConfig() Config {
	return Config{
		ContextRadius:          1,
		Cost:                   KroneckerCost{},
		PruningRiskThreshold:   math.Inf(1),
		PruningSupplySize:      math.MaxInt,
		PruningInterval:        math.MaxInt,
		VRestricted:            false,
		NormalizationTolerance: 0.01,
	}
}

// Validate reports the first configuration error found, if any.
func (c Config) Validate() error {
	if c.ContextRadius < 0 {
		return fmt.Errorf("mbr: ContextRadius must be >= 0, got %d", c.ContextRadius)
	}
	if c.PruningSupplySize < 0 {
		return fmt.Errorf("mbr: PruningSupplySize must be >= 0, got %d", c.PruningSupplySize)
	}
	if c.PruningInterval < 1 {
		return fmt.Errorf("mbr: PruningInterval must be >= 1, got %d", c.PruningInterval)
	}
	if c.NormalizationTolerance <= 0 {
		return fmt.Errorf("mbr: NormalizationTolerance must be > 0, got %v", c.NormalizationTolerance)
	}
	return nil
}

func (c Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func (c Config) costFunction() CostFunction {
	if c.Cost != nil {
		return c.Cost
	}
	return KroneckerCost{}
}
