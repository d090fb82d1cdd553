package app

import (
	"strings"

	"restaurant_catalog/internal/domain"
)

const descriptionMaxRunes = 200

// describe derives a description from the first review carrying text.
func describe(reviews []domain.Review) string {
	for _, r := range reviews {
		if r.Text == nil {
			continue
		}
		if t := strings.TrimSpace(*r.Text); t != "" {
			return truncate(t, descriptionMaxRunes)
		}
	}
	return ""
}

func truncate(s string, n int) string {
	rs := []rune(s)
	if len(rs) <= n {
		return s
	}
	return strings.TrimRight(string(rs[:n]), " ") + "..."
}
