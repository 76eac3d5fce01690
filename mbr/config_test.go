package mbr

import "testing"

func TestDefaultConfigValidates(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() = %v, want nil", err)
	}
}

func TestValidateRejectsBadFields(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{"negative ContextRadius", Config{ContextRadius: -1, PruningInterval: 1, NormalizationTolerance: 0.1}},
		{"negative PruningSupplySize", Config{PruningSupplySize: -1, PruningInterval: 1, NormalizationTolerance: 0.1}},
		{"zero PruningInterval", Config{PruningInterval: 0, NormalizationTolerance: 0.1}},
		{"zero NormalizationTolerance", Config{PruningInterval: 1, NormalizationTolerance: 0}},
	}
	for _, c := range cases {
		if err := c.cfg.Validate(); err == nil {
			t.Errorf("%s: Validate() = nil, want an error", c.name)
		}
	}
}

func TestCostFunctionDefaultsToKronecker(t *testing.T) {
	var cfg Config
	if _, ok := cfg.costFunction().(KroneckerCost); !ok {
		t.Fatalf("costFunction() with nil Cost = %T, want KroneckerCost", cfg.costFunction())
	}
}
