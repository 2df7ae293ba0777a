package presenter

import (
	"math"
	"strconv"
)

var sizeUnits = []string{"Bytes", "KB", "MB", "GB"}

// FormatSize renders bytes in base-1024 units with at most two decimals,
// dropping trailing zeros: 1536 is "1.5 KB", 1048576 is "1 MB".
func FormatSize(bytes int64) string {
	if bytes <= 0 {
		return "0 Bytes"
	}

	v := float64(bytes)
	i := 0
	for v >= 1024 && i < len(sizeUnits)-1 {
		v /= 1024
		i++
	}

	v = math.Round(v*100) / 100
	return strconv.FormatFloat(v, 'f', -1, 64) + " " + sizeUnits[i]
}

// ReductionPercent returns how much smaller compressed is than original, in
// percent rounded to one decimal. It is 0 when either size is unknown.
func ReductionPercent(original, compressed int64) float64 {
	if original <= 0 || compressed < 0 {
		return 0
	}
	p := float64(original-compressed) / float64(original) * 100
	return math.Round(p*10) / 10
}

// FormatPercent renders p with exactly one decimal.
func FormatPercent(p float64) string {
	return strconv.FormatFloat(p, 'f', 1, 64)
}
