package grid

import "math"

// CountsPerMeasure is the number of counts in one measure of an 8-count.
const CountsPerMeasure = 8

// Cell is one count of the grid: a (measure, count) pair and the time it lands on.
type Cell struct {
	MeasureIndex   int     `json:"measureIndex"`   // 0-based
	CountInMeasure int     `json:"countInMeasure"` // 1..8
	AtSec          float64 `json:"atSec"`
}

// Key identifies a cell independently of its timing.
type Key struct {
	MeasureIndex   int
	CountInMeasure int
}

// Key returns the (measure, count) key of the cell.
func (c Cell) Key() Key {
	return Key{MeasureIndex: c.MeasureIndex, CountInMeasure: c.CountInMeasure}
}

// beatDurations returns the length of one count and one measure in seconds.
func beatDurations(bpm float64) (beat, measure float64) {
	beat = 60 / bpm
	return beat, beat * CountsPerMeasure
}

// Compute lays an 8-count grid over a track of durationSec seconds.
// Cells come back ordered by (measure, count), which is also ascending AtSec.
// Only cells with AtSec <= durationSec are included.
//
// durationSec must be positive and bpm must be positive; callers clamp bpm
// to the supported range before calling.
func Compute(durationSec, bpm, offsetSec float64) []Cell {
	beat, measure := beatDurations(bpm)
	measures := int(math.Ceil(durationSec / measure))

	cells := make([]Cell, 0, measures*CountsPerMeasure)
	for m := 0; m < measures; m++ {
		for c := 1; c <= CountsPerMeasure; c++ {
			at := offsetSec + float64(m)*measure + float64(c-1)*beat
			if at <= durationSec {
				cells = append(cells, Cell{MeasureIndex: m, CountInMeasure: c, AtSec: at})
			}
		}
	}
	return cells
}

// ApplyOffset recomputes AtSec for every cell using newOffsetSec and bpm.
// Membership and order are unchanged; the input slice is not modified.
func ApplyOffset(cells []Cell, newOffsetSec, bpm float64) []Cell {
	beat, measure := beatDurations(bpm)

	out := make([]Cell, len(cells))
	for i, c := range cells {
		c.AtSec = newOffsetSec + float64(c.MeasureIndex)*measure + float64(c.CountInMeasure-1)*beat
		out[i] = c
	}
	return out
}

// NearestCountAt returns the index of the cell closest to playheadSec, or -1
// for an empty grid. Equidistant cells resolve to the lowest index.
func NearestCountAt(playheadSec float64, cells []Cell) int {
	if len(cells) == 0 {
		return -1
	}

	best := 0
	bestDist := math.Abs(cells[0].AtSec - playheadSec)
	for i := 1; i < len(cells); i++ {
		if d := math.Abs(cells[i].AtSec - playheadSec); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// CountsFor returns how many measures a track needs and the total count slots
// those measures hold.
func CountsFor(durationSec, bpm float64) (measures, totalCounts int) {
	_, measure := beatDurations(bpm)
	measures = int(math.Ceil(durationSec / measure))
	return measures, measures * CountsPerMeasure
}
