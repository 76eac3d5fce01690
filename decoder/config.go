package decoder

import (
	"fmt"
	"log/slog"
)

// Config controls the beam widths, hypothesis caps, and pruning
// granularity of a Decoder's per-frame search.
//
// Example:
//
//	cfg := decoder.DefaultConfig()
//	cfg.MaxActiveHyps = 20000
//	d := decoder.New(net, exits, acoustic, transition, pron, lm, lookahead, cfg)
type Config struct {
	// AcousticPruningThreshold drops any hypothesis whose score exceeds
	// the frame's best score by more than this after acoustic expansion.
	// Default: 150
	AcousticPruningThreshold Score

	// WordEndPruningThreshold drops any newly emitted word-boundary
	// hypothesis whose score exceeds the best word-boundary score by
	// more than this.
	// Default: 150
	WordEndPruningThreshold Score

	// LookaheadPruningThreshold drops a word-boundary arrival whose score
	// plus its language-model look-ahead estimate exceeds the best such
	// combined score by more than this.
	// Default: 150
	LookaheadPruningThreshold Score

	// HistogramBucketWidth is the score-axis bucket width histogram
	// pruning uses to find a tighter threshold without fully sorting the
	// active set.
	// Default: 1.0
	HistogramBucketWidth Score

	// MaxActiveHyps caps the number of hypotheses kept across all states
	// after acoustic pruning. Histogram pruning only engages once this is
	// exceeded.
	// Default: 50000
	MaxActiveHyps int

	// StatesPerStateLimit caps how many distinct-history hypotheses may
	// coexist at a single network state.
	// Default: 3
	StatesPerStateLimit int

	// Logger receives warnings for recoverable failure conditions (an
	// empty active set, a non-finite score). Defaults to slog.Default()
	// when nil.
	Logger *slog.Logger
}

// DefaultConfig returns reasonable beam widths for a mid-sized HMM
// network.
func DefaultConfig() Config {
	return Config{
		AcousticPruningThreshold:  150,
		WordEndPruningThreshold:   150,
		LookaheadPruningThreshold: 150,
		HistogramBucketWidth:      1.0,
		MaxActiveHyps:             50000,
		StatesPerStateLimit:       3,
	}
}

// Validate reports whether c's fields are usable.
func (c Config) Validate() error {
	if c.AcousticPruningThreshold <= 0 {
		return fmt.Errorf("decoder: AcousticPruningThreshold must be positive, got %v", c.AcousticPruningThreshold)
	}
	if c.WordEndPruningThreshold <= 0 {
		return fmt.Errorf("decoder: WordEndPruningThreshold must be positive, got %v", c.WordEndPruningThreshold)
	}
	if c.LookaheadPruningThreshold <= 0 {
		return fmt.Errorf("decoder: LookaheadPruningThreshold must be positive, got %v", c.LookaheadPruningThreshold)
	}
	if c.HistogramBucketWidth <= 0 {
		return fmt.Errorf("decoder: HistogramBucketWidth must be positive, got %v", c.HistogramBucketWidth)
	}
	if c.MaxActiveHyps < 1 {
		return fmt.Errorf("decoder: MaxActiveHyps must be at least 1, got %d", c.MaxActiveHyps)
	}
	if c.StatesPerStateLimit < 1 {
		return fmt.Errorf("decoder: StatesPerStateLimit must be at least 1, got %d", c.StatesPerStateLimit)
	}
	return nil
}

func (c Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}
