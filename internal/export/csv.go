package export

import (
	"fmt"
	"io"
	"math"
	"math/big"
	"sort"
	"strconv"
	"strings"

	"github.com/satindergrewal/countsheet/internal/grid"
)

const csvHeader = "Measure,Count,Time (sec),Text"

// CSV renders notes as a count sheet: one row per count, sorted by
// (measure, count), measures numbered from 1. Rows are separated by "\n"
// with no trailing newline.
func CSV(notes []grid.Note) string {
	sorted := make([]grid.Note, len(notes))
	copy(sorted, notes)
	sortNotes(sorted)

	var b strings.Builder
	b.WriteString(csvHeader)
	b.WriteByte('\n')
	for i, n := range sorted {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d,%d,%s,%s", n.MeasureIndex+1, n.CountInMeasure, fixed3(n.AtSec), csvField(n.Text))
	}
	return b.String()
}

// WriteCSV writes CSV(notes) to w.
func WriteCSV(w io.Writer, notes []grid.Note) error {
	_, err := io.WriteString(w, CSV(notes))
	return err
}

// fixed3 formats x with three decimals, rounding the exact binary value
// half away from zero. 0.3125 is "0.313", where %.3f would give "0.312".
func fixed3(x float64) string {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return strconv.FormatFloat(x, 'f', 3, 64)
	}
	sign := ""
	if x < 0 {
		sign = "-"
		x = -x
	}
	v := new(big.Float).SetPrec(256).SetFloat64(x)
	v.Mul(v, big.NewFloat(1000))
	v.Add(v, big.NewFloat(0.5))
	n, _ := v.Int(nil)
	q, r := new(big.Int).QuoRem(n, big.NewInt(1000), new(big.Int))
	return fmt.Sprintf("%s%s.%03d", sign, q.String(), r.Int64())
}

// csvField quotes s only when it holds a comma or a quote.
func csvField(s string) string {
	if !strings.ContainsAny(s, `,"`) {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func sortNotes(notes []grid.Note) {
	sort.SliceStable(notes, func(i, j int) bool {
		a, b := notes[i], notes[j]
		if a.MeasureIndex != b.MeasureIndex {
			return a.MeasureIndex < b.MeasureIndex
		}
		return a.CountInMeasure < b.CountInMeasure
	})
}

// FileName builds the download name for a performance export,
// e.g. "Demo Routine_counts.csv".
func FileName(performanceName, ext string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '"', '/', '\\', '\r', '\n':
			return '_'
		}
		return r
	}, performanceName)
	if name == "" {
		name = "performance"
	}
	return name + "_counts." + ext
}
