package embed

import (
	"errors"
	"strings"
	"testing"
)

func TestCheckDimension(t *testing.T) {
	t.Parallel()

	cfg := Config{Model: "text-embedding-004", Dimension: 4}

	if err := checkDimension(cfg, []float32{1, 2, 3, 4}); err != nil {
		t.Fatalf("checkDimension() on matching vector = %v, want nil", err)
	}

	err := checkDimension(cfg, []float32{1, 2, 3})
	var derr *DimensionError
	if !errors.As(err, &derr) {
		t.Fatalf("checkDimension() = %v, want *DimensionError", err)
	}
	if derr.Want != 4 || derr.Got != 3 {
		t.Errorf("DimensionError want/got = %d/%d, want 4/3", derr.Want, derr.Got)
	}
	if !strings.Contains(derr.Error(), "text-embedding-004") {
		t.Errorf("error message should name the model: %s", derr.Error())
	}
}
