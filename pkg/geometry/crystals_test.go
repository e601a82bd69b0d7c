package geometry

import (
	"math"
	"reflect"
	"testing"
)

func TestBuildCrystalTable(t *testing.T) {
	tbl := BuildCrystalTable(504, 32.8)
	if len(tbl) != 504 {
		t.Fatalf("Expected 504 crystals, got %d", len(tbl))
	}

	for c, cr := range tbl {
		r0 := math.Hypot(cr.X0, cr.Y0)
		r1 := math.Hypot(cr.X1, cr.Y1)
		if math.Abs(r0-32.8) > 1e-9 || math.Abs(r1-32.8) > 1e-9 {
			t.Errorf("Crystal %d corners not on ring radius: %g, %g", c, r0, r1)
		}
	}

	// consecutive crystals share a corner
	for c := 0; c < len(tbl)-1; c++ {
		if tbl[c].X1 != tbl[c+1].X0 || tbl[c].Y1 != tbl[c+1].Y0 {
			t.Errorf("Crystals %d and %d do not share a corner", c, c+1)
		}
	}
}

func TestSelectScatterCrystals(t *testing.T) {
	tbl := BuildCrystalTable(504, 32.8)
	scrs := SelectScatterCrystals(tbl)

	// 504 crystals contain 56 gaps, 448 survivors, every 7th kept
	if len(scrs) != 64 {
		t.Fatalf("Expected 64 scatter crystals, got %d", len(scrs))
	}

	for i, sc := range scrs {
		if (sc.Index+1)%9 == 0 {
			t.Errorf("Scatter crystal %d sits on gap crystal %d", i, sc.Index)
		}
		if i > 0 && sc.Index <= scrs[i-1].Index {
			t.Errorf("Scatter crystal indices not strictly ascending at %d", i)
		}

		wantX := 0.5 * (tbl[sc.Index].X0 + tbl[sc.Index].X1)
		wantY := 0.5 * (tbl[sc.Index].Y0 + tbl[sc.Index].Y1)
		if sc.X != wantX || sc.Y != wantY {
			t.Errorf("Scatter crystal %d midpoint (%g,%g), want (%g,%g)",
				i, sc.X, sc.Y, wantX, wantY)
		}
	}
}

func TestSelectScatterCrystalsCount(t *testing.T) {
	// selection keeps every 7th non-gap crystal
	for _, n := range []int{63, 100, 252, 504} {
		tbl := BuildCrystalTable(n, 32.8)
		nonGap := n - n/9
		if got, want := len(SelectScatterCrystals(tbl)), nonGap/7; got != want {
			t.Errorf("%d crystals: selected %d, want %d", n, got, want)
		}
	}
}

func TestSelectScatterCrystalsDeterministic(t *testing.T) {
	tbl := BuildCrystalTable(504, 32.8)
	a := SelectScatterCrystals(tbl)
	b := SelectScatterCrystals(tbl)
	if !reflect.DeepEqual(a, b) {
		t.Error("Selection differs between runs")
	}
}

func TestDefaultScatterRings(t *testing.T) {
	rings := DefaultScatterRings()
	if err := ValidateScatterRings(rings, 64); err != nil {
		t.Fatalf("Default ring set invalid: %v", err)
	}
	if rings[0] != 0 || rings[len(rings)-1] != 63 {
		t.Errorf("Default ring set must span the full axial range, got %v", rings)
	}
}

func TestValidateScatterRings(t *testing.T) {
	tests := []struct {
		name    string
		rings   []int
		nRings  int
		wantErr bool
	}{
		{"valid", []int{0, 3, 7}, 8, false},
		{"empty", nil, 8, true},
		{"negative", []int{-1, 3}, 8, true},
		{"out of range", []int{0, 8}, 8, true},
		{"not ascending", []int{0, 4, 4}, 8, true},
		{"descending", []int{4, 2}, 8, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateScatterRings(tt.rings, tt.nRings)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateScatterRings(%v, %d) error = %v, wantErr %v",
					tt.rings, tt.nRings, err, tt.wantErr)
			}
		})
	}
}
