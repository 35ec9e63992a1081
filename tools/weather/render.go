package weather

import (
	"fmt"
	"strings"
)

// Text renders the report as a conditions/forecast block.
func (r Report) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Weather for %s", r.Location)
	if r.Timezone != "" {
		fmt.Fprintf(&b, " (%s)", r.Timezone)
	}
	b.WriteString("\n")
	c := r.Current
	fmt.Fprintf(&b, "Current (%s): %s, %.1f°C (feels like %.1f°C), humidity %.0f%%, wind %.1f km/h",
		c.Time, c.Condition, c.TemperatureC, c.ApparentC, c.HumidityPct, c.WindKPH)
	if c.PrecipitationMM > 0 {
		fmt.Fprintf(&b, ", precipitation %.1f mm", c.PrecipitationMM)
	}
	b.WriteString("\n")
	if len(r.Afternoon) > 0 {
		b.WriteString("This afternoon:\n")
		for _, h := range r.Afternoon {
			fmt.Fprintf(&b, "- %s: %s, %.1f°C, %.0f%% chance of rain\n", clock(h.Time), h.Condition, h.TemperatureC, h.PrecipProbPct)
		}
	}
	if len(r.Daily) > 0 {
		b.WriteString("Forecast:\n")
		for _, d := range r.Daily {
			fmt.Fprintf(&b, "- %s: %s, %.1f–%.1f°C, %.0f%% chance of rain\n", d.Date, d.Condition, d.MinC, d.MaxC, d.PrecipProbPct)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func clock(ts string) string {
	if i := strings.IndexByte(ts, 'T'); i >= 0 {
		return ts[i+1:]
	}
	return ts
}
