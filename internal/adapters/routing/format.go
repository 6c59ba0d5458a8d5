package routing

import (
	"fmt"
	"math"
	"strings"
)

const metersPerMile = 1609.344

// FormatDistance renders meters the way the Directions API does, e.g.
// "8.4 km", "350 m", "5.2 mi" or "120 ft". units is "imperial" or metric otherwise.
func FormatDistance(meters int, units string) string {
	if units == "imperial" {
		miles := float64(meters) / metersPerMile
		if miles < 0.1 {
			return fmt.Sprintf("%d ft", int(math.Round(float64(meters)*3.28084)))
		}
		return scaled(miles, "mi")
	}

	if meters < 1000 {
		return fmt.Sprintf("%d m", meters)
	}
	return scaled(float64(meters)/1000, "km")
}

func scaled(v float64, unit string) string {
	if v >= 100 {
		return fmt.Sprintf("%d %s", int(math.Round(v)), unit)
	}
	return fmt.Sprintf("%.1f %s", v, unit)
}

// FormatDuration renders seconds as "1 min", "12 mins", "1 hour 5 mins" or
// "2 days 3 hours".
func FormatDuration(seconds int) string {
	minutes := int(math.Round(float64(seconds) / 60))
	if minutes < 1 {
		minutes = 1
	}

	days, hours, mins := minutes/(24*60), minutes/60%24, minutes%60

	var parts []string
	if days > 0 {
		parts = append(parts, plural(days, "day"))
		if hours > 0 {
			parts = append(parts, plural(hours, "hour"))
		}
		return strings.Join(parts, " ")
	}
	if hours > 0 {
		parts = append(parts, plural(hours, "hour"))
	}
	if mins > 0 {
		parts = append(parts, plural(mins, "min"))
	}
	return strings.Join(parts, " ")
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
