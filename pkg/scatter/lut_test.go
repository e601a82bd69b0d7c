package scatter

import (
	"reflect"
	"testing"

	"petscatter/pkg/config"
	"petscatter/pkg/geometry"
)

func TestBuildScatterLUTDefaults(t *testing.T) {
	cfg := config.DefaultConfig()
	tbl := geometry.BuildCrystalTable(cfg.Scanner.NCrystals, cfg.Scanner.RingRadius)

	lut, err := BuildScatterLUT(cfg, tbl, nil)
	if err != nil {
		t.Fatalf("BuildScatterLUT failed: %v", err)
	}

	if lut.NScatterCrystals() != 64 {
		t.Errorf("Expected 64 scatter crystals, got %d", lut.NScatterCrystals())
	}
	if lut.NScatterRings() != 8 {
		t.Errorf("Expected 8 scatter rings, got %d", lut.NScatterRings())
	}
	if lut.Span1.NPlanes() != 4096 {
		t.Errorf("Expected 4096 span-1 planes, got %d", lut.Span1.NPlanes())
	}
	if len(lut.Axial.Rows) != 4096 {
		t.Errorf("Expected one axial row per plane, got %d", len(lut.Axial.Rows))
	}
	if len(lut.KN.Prob) != cfg.Scatter.NCosBins {
		t.Errorf("Klein-Nishina table has %d bins, want %d",
			len(lut.KN.Prob), cfg.Scatter.NCosBins)
	}
}

func TestBuildScatterLUTDeterministic(t *testing.T) {
	cfg := config.DefaultConfig()
	tbl := geometry.BuildCrystalTable(cfg.Scanner.NCrystals, cfg.Scanner.RingRadius)

	a, err := BuildScatterLUT(cfg, tbl, nil)
	if err != nil {
		t.Fatalf("BuildScatterLUT failed: %v", err)
	}
	b, err := BuildScatterLUT(cfg, tbl, nil)
	if err != nil {
		t.Fatalf("BuildScatterLUT failed: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Error("LUT differs between identical builds")
	}
}

func TestBuildScatterLUTErrors(t *testing.T) {
	cfg := config.DefaultConfig()
	tbl := geometry.BuildCrystalTable(cfg.Scanner.NCrystals, cfg.Scanner.RingRadius)

	if _, err := BuildScatterLUT(cfg, tbl[:100], nil); err == nil {
		t.Error("Expected error for truncated crystal table")
	}

	small := config.DefaultConfig()
	small.Scanner.NRings = 32
	small.Scanner.MaxRingDiff = 31
	small.Scatter.RingEnd = 32
	if _, err := BuildScatterLUT(small, tbl, nil); err == nil {
		t.Error("Expected error for missing ring set on a non-standard scanner")
	}
	if _, err := BuildScatterLUT(small, tbl, []int{0, 12, 22, 31}); err != nil {
		t.Errorf("Explicit ring set rejected: %v", err)
	}

	bad := config.DefaultConfig()
	bad.Acquisition.Span = 7
	if _, err := BuildScatterLUT(bad, tbl, nil); err == nil {
		t.Error("Expected error for invalid configuration")
	}
}
