// Package dateparse extracts calendar dates from free-form Korean and
// ISO-formatted question text.
package dateparse

import (
	"fmt"
	"regexp"
	"strconv"
)

// Questions that name a month and day without a year refer to the current
// production calendar.
const defaultYear = 2026

var (
	fullKoreanDate = regexp.MustCompile(`(\d{4})년\s*(\d{1,2})월\s*(\d{1,2})일`)
	koreanDate     = regexp.MustCompile(`(\d{1,2})월\s*(\d{1,2})일`)
	isoDate        = regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})`)
)

// Extract finds the first date mentioned in text and returns it normalized
// to YYYY-MM-DD. Patterns are tried most-specific first so "2026년 5월 1일"
// is never half-matched by the year-less form. The second return value
// reports whether any date was found.
func Extract(text string) (string, bool) {
	if m := fullKoreanDate.FindStringSubmatch(text); m != nil {
		return normalize(m[1], m[2], m[3])
	}
	if m := koreanDate.FindStringSubmatch(text); m != nil {
		return normalize(strconv.Itoa(defaultYear), m[1], m[2])
	}
	if m := isoDate.FindStringSubmatch(text); m != nil {
		return normalize(m[1], m[2], m[3])
	}
	return "", false
}

func normalize(year, month, day string) (string, bool) {
	y, err := strconv.Atoi(year)
	if err != nil {
		return "", false
	}
	mo, err := strconv.Atoi(month)
	if err != nil {
		return "", false
	}
	d, err := strconv.Atoi(day)
	if err != nil {
		return "", false
	}
	if mo < 1 || mo > 12 || d < 1 || d > 31 {
		return "", false
	}
	return fmt.Sprintf("%04d-%02d-%02d", y, mo, d), true
}
