package knowledge

import "fmt"

// SpeakPriceRange renders a treatment's price range for natural speech,
// e.g. "between 800 and 1200 dollars". Pure formatting, no side effects.
func SpeakPriceRange(t Treatment) string {
	if t.PriceMin == t.PriceMax {
		return fmt.Sprintf("%d dollars", t.PriceMin)
	}
	return fmt.Sprintf("between %d and %d dollars", t.PriceMin, t.PriceMax)
}

// SpeakDuration renders minutes as hours-and-minutes speech,
// e.g. 90 -> "1 hour and 30 minutes", 45 -> "45 minutes", 60 -> "1 hour".
func SpeakDuration(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%d %s", minutes, plural(minutes, "minute"))
	}
	hours := minutes / 60
	rem := minutes % 60
	if rem == 0 {
		return fmt.Sprintf("%d %s", hours, plural(hours, "hour"))
	}
	return fmt.Sprintf("%d %s and %d %s", hours, plural(hours, "hour"), rem, plural(rem, "minute"))
}

// SpeakSummary renders one treatment as a full spoken quote.
func SpeakSummary(t Treatment) string {
	return fmt.Sprintf("%s costs %s and takes about %s.", t.Name, SpeakPriceRange(t), SpeakDuration(t.DurationMinutes))
}

func plural(n int, unit string) string {
	if n == 1 {
		return unit
	}
	return unit + "s"
}
