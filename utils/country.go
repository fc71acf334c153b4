package utils

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// NormalizeCountry uppercases and validates a 2-letter country code.
func NormalizeCountry(raw string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if len(code) != 2 {
		return "", fmt.Errorf("country must be a 2-letter code, got %q", raw)
	}
	for _, c := range code {
		if c < 'A' || c > 'Z' {
			return "", fmt.Errorf("country must be a 2-letter code, got %q", raw)
		}
	}
	return code, nil
}

// TitleFromSlug derives a display title from a Letterboxd slug by turning
// kebab-case into title case. Used as a last-resort title when the film
// detail page cannot be fetched.
func TitleFromSlug(slug string) string {
	words := strings.Split(slug, "-")
	for i, word := range words {
		if word == "" {
			continue
		}
		first, size := utf8.DecodeRuneInString(word)
		words[i] = strings.ToUpper(string(first)) + word[size:]
	}
	return strings.Join(words, " ")
}
