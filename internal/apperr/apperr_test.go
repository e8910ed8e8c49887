package apperr

import (
	"fmt"
	"testing"
)

func TestKindsSurviveWrapping(t *testing.T) {
	cfg := fmt.Errorf("validate: %w", Config("bins", "too many bins: %d", 11))
	nf := fmt.Errorf("load: %w", NotFound("day", "2024-01-01"))
	comp := fmt.Errorf("grid: %w", Computation("grid dimensions", "cell size must be positive"))

	if !IsConfig(cfg) || IsNotFound(cfg) || IsComputation(cfg) {
		t.Errorf("config error misclassified: %v", cfg)
	}
	if !IsNotFound(nf) || IsConfig(nf) {
		t.Errorf("not found error misclassified: %v", nf)
	}
	if !IsComputation(comp) || IsConfig(comp) {
		t.Errorf("computation error misclassified: %v", comp)
	}

	if got, want := cfg.Error(), "validate: invalid bins: too many bins: 11"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
