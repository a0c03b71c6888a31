package cli

import (
	"fmt"
	"strings"

	"stockdeck/internal/models"
)

// FormatPrice formats a price with thousands separators and two decimals.
func FormatPrice(price float64) string {
	negative := price < 0
	if negative {
		price = -price
	}

	whole := int64(price)
	frac := int64((price-float64(whole))*100 + 0.5)
	if frac >= 100 {
		whole++
		frac -= 100
	}

	digits := fmt.Sprintf("%d", whole)
	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}

	sign := ""
	if negative {
		sign = "-"
	}
	return fmt.Sprintf("%s$%s.%02d", sign, b.String(), frac)
}

// FormatVolume formats share volume compactly: 1.2B, 45.3M, 120.5K.
func FormatVolume(volume int64) string {
	v := float64(volume)
	switch {
	case v >= 1e9:
		return fmt.Sprintf("%.1fB", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("%.1fM", v/1e6)
	case v >= 1e3:
		return fmt.Sprintf("%.1fK", v/1e3)
	}
	return fmt.Sprintf("%d", volume)
}

// DirectionArrow returns the tick direction marker.
func DirectionArrow(dir models.ChangeDirection) string {
	switch dir {
	case models.DirectionUp:
		return "▲"
	case models.DirectionDown:
		return "▼"
	}
	return " "
}

// FormatStats renders the result stats line shown under a list.
func FormatStats(stats models.SearchStats) string {
	if stats.Label == "No results" {
		return "No results"
	}
	if stats.ElapsedSeconds > 0 {
		return fmt.Sprintf("%s · %d results (%.2fs)", stats.Label, stats.Total, stats.ElapsedSeconds)
	}
	return fmt.Sprintf("%s · %d results", stats.Label, stats.Total)
}
