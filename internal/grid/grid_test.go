package grid

import (
	"math"
	"testing"
)

const eps = 1e-9

func near(a, b float64) bool {
	return math.Abs(a-b) < eps
}

// --- Compute ---

func TestComputeThirtyTwoSecondsAt120(t *testing.T) {
	cells := Compute(32, 120, 0)
	if len(cells) != 64 {
		t.Fatalf("len = %d, want 64", len(cells))
	}

	tests := []struct {
		idx            int
		measure, count int
		at             float64
	}{
		{0, 0, 1, 0.0},
		{1, 0, 2, 0.5},
		{8, 1, 1, 4.0},
		{63, 7, 8, 31.5},
	}
	for _, tt := range tests {
		c := cells[tt.idx]
		if c.MeasureIndex != tt.measure || c.CountInMeasure != tt.count || !near(c.AtSec, tt.at) {
			t.Errorf("cells[%d] = %+v, want (%d,%d) at %v", tt.idx, c, tt.measure, tt.count, tt.at)
		}
	}
}

func TestComputeOrderedAndBounded(t *testing.T) {
	inputs := []struct {
		dur, bpm, offset float64
	}{
		{32, 120, 0},
		{95.3, 87, 0.42},
		{180, 40, -1.5},
		{12.7, 240, 3},
		{1, 200, 0},
		{240, 133.3, -0.01},
	}
	for _, in := range inputs {
		cells := Compute(in.dur, in.bpm, in.offset)
		seen := make(map[Key]bool)
		for i, c := range cells {
			if c.AtSec > in.dur {
				t.Errorf("%+v: cell %d at %v beyond duration", in, i, c.AtSec)
			}
			if c.CountInMeasure < 1 || c.CountInMeasure > CountsPerMeasure {
				t.Errorf("%+v: cell %d count %d out of range", in, i, c.CountInMeasure)
			}
			if seen[c.Key()] {
				t.Errorf("%+v: duplicate key %+v", in, c.Key())
			}
			seen[c.Key()] = true
			if i > 0 && c.AtSec <= cells[i-1].AtSec {
				t.Errorf("%+v: cell %d at %v not after %v", in, i, c.AtSec, cells[i-1].AtSec)
			}
		}
	}
}

func TestComputeNegativeOffsetKeepsEarlyCells(t *testing.T) {
	cells := Compute(8, 120, -0.25)
	if cells[0].AtSec != -0.25 {
		t.Errorf("first cell at %v, want -0.25", cells[0].AtSec)
	}
	// measures = 2, every slot fits because the grid is shifted earlier
	if len(cells) != 16 {
		t.Errorf("len = %d, want 16", len(cells))
	}
}

func TestComputePositiveOffsetTrimsTail(t *testing.T) {
	cells := Compute(8, 120, 1)
	last := cells[len(cells)-1]
	if last.AtSec > 8 {
		t.Errorf("last cell at %v beyond duration", last.AtSec)
	}
	// 1.0 + 1*4 + 6*0.5 = 8.0 is still inside; (1,8) at 8.5 is not
	if last.MeasureIndex != 1 || last.CountInMeasure != 7 {
		t.Errorf("last cell = %+v, want (1,7)", last)
	}
}

func TestComputeDeterministic(t *testing.T) {
	a := Compute(61.2, 97, 0.3)
	b := Compute(61.2, 97, 0.3)
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("cell %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

// --- ApplyOffset ---

func TestApplyOffsetShiftsEveryCell(t *testing.T) {
	for _, bpm := range []float64{40, 96, 120, 175.5, 240} {
		orig := Compute(60, bpm, 0.2)
		shifted := ApplyOffset(orig, -0.35, bpm)
		if len(shifted) != len(orig) {
			t.Fatalf("bpm %v: len = %d, want %d", bpm, len(shifted), len(orig))
		}
		for i := range orig {
			if shifted[i].Key() != orig[i].Key() {
				t.Errorf("bpm %v: cell %d key changed %+v -> %+v", bpm, i, orig[i].Key(), shifted[i].Key())
			}
			if d := shifted[i].AtSec - orig[i].AtSec; !near(d, -0.55) {
				t.Errorf("bpm %v: cell %d shifted by %v, want -0.55", bpm, i, d)
			}
		}
	}
}

func TestApplyOffsetDoesNotMutateInput(t *testing.T) {
	orig := Compute(8, 120, 0)
	_ = ApplyOffset(orig, 2, 120)
	if orig[0].AtSec != 0 {
		t.Errorf("input mutated: first cell at %v", orig[0].AtSec)
	}
}

func TestApplyOffsetEmpty(t *testing.T) {
	if got := ApplyOffset(nil, 1, 120); len(got) != 0 {
		t.Errorf("ApplyOffset(nil) len = %d, want 0", len(got))
	}
}

// --- NearestCountAt ---

func TestNearestCountAtEmpty(t *testing.T) {
	if got := NearestCountAt(3, nil); got != -1 {
		t.Errorf("NearestCountAt on empty grid = %d, want -1", got)
	}
}

func TestNearestCountAt(t *testing.T) {
	cells := Compute(32, 120, 0)
	tests := []struct {
		playhead float64
		want     int
	}{
		{-5, 0},
		{0, 0},
		{0.2, 0},
		{0.3, 1},
		{4.01, 8},
		{31.6, 63},
		{100, 63},
	}
	for _, tt := range tests {
		if got := NearestCountAt(tt.playhead, cells); got != tt.want {
			t.Errorf("NearestCountAt(%v) = %d, want %d", tt.playhead, got, tt.want)
		}
	}
}

func TestNearestCountAtTieTakesLowestIndex(t *testing.T) {
	cells := Compute(32, 120, 0)
	// 0.25 is exactly between 0.0 and 0.5
	if got := NearestCountAt(0.25, cells); got != 0 {
		t.Errorf("tie resolved to %d, want 0", got)
	}
}

func TestNearestCountAtIsClosest(t *testing.T) {
	cells := Compute(45, 111, 0.37)
	for p := -1.0; p < 46; p += 0.173 {
		idx := NearestCountAt(p, cells)
		best := math.Abs(cells[idx].AtSec - p)
		for j, c := range cells {
			if d := math.Abs(c.AtSec - p); d < best {
				t.Fatalf("playhead %v: cell %d (dist %v) closer than returned %d (dist %v)", p, j, d, idx, best)
			}
		}
	}
}

// --- CountsFor ---

func TestCountsFor(t *testing.T) {
	tests := []struct {
		dur, bpm        float64
		measures, total int
	}{
		{32, 120, 8, 64},
		{32, 100, 7, 56},
		{33, 120, 9, 72},
		{0.1, 240, 1, 8},
	}
	for _, tt := range tests {
		m, total := CountsFor(tt.dur, tt.bpm)
		if m != tt.measures || total != tt.total {
			t.Errorf("CountsFor(%v, %v) = (%d, %d), want (%d, %d)", tt.dur, tt.bpm, m, total, tt.measures, tt.total)
		}
	}
}
