package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

func kv(k, v string) string {
	return fmt.Sprintf("%s: %s", k, v)
}

// listWindow returns the [start, end) slice of a column list of total
// entries that keeps the cursor visible in maxRows lines.
func listWindow(total, cursor, maxRows int) (int, int) {
	if total <= maxRows {
		return 0, total
	}
	start := clampInt(cursor-maxRows/2, 0, total-maxRows)
	return start, start + maxRows
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	if limit == 1 {
		return string(r[:1])
	}
	return string(r[:limit-1]) + "…"
}

// fitLine trims s to width cells; styled lines that already fit are left
// untouched.
func fitLine(s string, width int) string {
	if width <= 0 || lipgloss.Width(s) <= width {
		return s
	}
	return truncateRunes(s, width)
}

func clampInt(v, lo, hi int) int {
	return min(max(v, lo), hi)
}

func defaultIfEmpty(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
