package grid

import (
	"fmt"
	"math"
)

// FormatTime renders seconds as m:ss.mmm.
func FormatTime(sec float64) string {
	minutes := int(math.Floor(sec / 60))
	seconds := int(math.Floor(math.Mod(sec, 60)))
	millis := int(math.Floor(math.Mod(sec, 1) * 1000))
	return fmt.Sprintf("%d:%02d.%03d", minutes, seconds, millis)
}

// FormatDuration renders seconds as m:ss.
func FormatDuration(sec float64) string {
	minutes := int(math.Floor(sec / 60))
	seconds := int(math.Floor(math.Mod(sec, 60)))
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}
