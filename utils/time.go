package utils

import (
	"fmt"
	"math"
)

// FormatTimecode formats seconds to HH:MM:SS.mmm for logs and results
func FormatTimecode(seconds float64) string {
	d := int(seconds)
	ms := int(math.Round((seconds - float64(d)) * 1000))
	if ms == 1000 {
		d++
		ms = 0
	}

	h := d / 3600
	m := (d % 3600) / 60
	s := d % 60

	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}
