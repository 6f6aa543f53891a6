package view

import (
	"math"
	"strconv"
)

var sizeUnits = []string{"Bytes", "KB", "MB", "GB"}

// FormatDuration renders seconds as M:SS. Minutes are not wrapped into hours.
func FormatDuration(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	mins := int64(math.Floor(seconds / 60))
	secs := int64(math.Floor(math.Mod(seconds, 60)))
	if secs < 10 {
		return strconv.FormatInt(mins, 10) + ":0" + strconv.FormatInt(secs, 10)
	}
	return strconv.FormatInt(mins, 10) + ":" + strconv.FormatInt(secs, 10)
}

// FormatFileSize renders a byte count with 1024-based units, rounded to two
// decimals with trailing zeros dropped. Sizes past GB stay in GB.
func FormatFileSize(bytes int64) string {
	if bytes <= 0 {
		return "0 Bytes"
	}

	i := int(math.Floor(math.Log(float64(bytes)) / math.Log(1024)))
	if i >= len(sizeUnits) {
		i = len(sizeUnits) - 1
	}

	v := float64(bytes) / math.Pow(1024, float64(i))
	v = math.Round(v*100) / 100
	return strconv.FormatFloat(v, 'f', -1, 64) + " " + sizeUnits[i]
}

// FormatPercent renders a progress value the way the progress label shows it.
func FormatPercent(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64) + "%"
}
