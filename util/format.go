package util

import (
	"fmt"
	"math"
)

const bytesPerMB = 1024 * 1024

// Round2 rounds v to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ClampPercent bounds v to [0,100]. NaN maps to 0.
func ClampPercent(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}

// BytesToMB converts a byte count to megabytes rounded to two decimals.
func BytesToMB(b uint64) float64 {
	return Round2(float64(b) / bytesPerMB)
}

// FormatBytes renders a byte count in binary units, e.g. "1.5 MiB".
func FormatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// FormatRate renders a bytes-per-second rate, or "n/a" when unavailable.
func FormatRate(bps *float64) string {
	if bps == nil {
		return "n/a"
	}
	return FormatBytes(uint64(*bps)) + "/s"
}

// FormatPercent renders an optional percentage, or "n/a" when unavailable.
func FormatPercent(p *float64) string {
	if p == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f%%", *p)
}
