package service

import (
	"regexp"
	"sort"
	"strings"
)

// Lot references take a handful of shapes in notice documents: "Lot n° 3",
// "Lot 3", "lot-3", or reversed "3 - Lot". Patterns are tried in order and
// capture the bare lot number.
var lotPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\blot\s*n[°o]\s*[:.\-]?\s*(\d+[a-z]?)\b`),
	regexp.MustCompile(`(?i)\blot\s*[:.\-]?\s*(\d+[a-z]?)\b`),
	regexp.MustCompile(`(?i)\b(\d+[a-z]?)\s*[-–]\s*lot\b`),
}

const visitTrigger = "visite"

// splitKeywords breaks a merged keyword cell ("serrurerie; menuiserie")
// back into individual keywords.
func splitKeywords(cell string) []string {
	var keywords []string
	for _, part := range strings.Split(cell, ";") {
		part = strings.TrimSpace(part)
		if part != "" {
			keywords = append(keywords, part)
		}
	}
	return keywords
}

// findOccurrences returns the start index of every case-insensitive
// occurrence of keyword in text.
func findOccurrences(text, keyword string) []int {
	if keyword == "" {
		return nil
	}
	lowerText := strings.ToLower(text)
	lowerKeyword := strings.ToLower(keyword)

	var indexes []int
	from := 0
	for {
		i := strings.Index(lowerText[from:], lowerKeyword)
		if i < 0 {
			return indexes
		}
		indexes = append(indexes, from+i)
		from += i + len(lowerKeyword)
	}
}

// ExtractLots locates lot numbers mentioned near keyword occurrences in a
// document's text. For every occurrence of every keyword it inspects the
// window characters immediately preceding the occurrence, matches the lot
// patterns against that slice and collects the numbers. The result is the
// deduplicated set of lot numbers, each prefixed "lot-", sorted and joined
// with ", ". Empty when nothing matches.
func ExtractLots(text string, keywords []string, window int) string {
	seen := make(map[string]struct{})
	var lots []string

	for _, keyword := range keywords {
		for _, pos := range findOccurrences(text, keyword) {
			start := pos - window
			if start < 0 {
				start = 0
			}
			preceding := text[start:pos]

			for _, pattern := range lotPatterns {
				for _, match := range pattern.FindAllStringSubmatch(preceding, -1) {
					number := normalizeLotNumber(match[1])
					if number == "" {
						continue
					}
					if _, ok := seen[number]; ok {
						continue
					}
					seen[number] = struct{}{}
					lots = append(lots, "lot-"+number)
				}
			}
		}
	}

	sort.Strings(lots)
	return strings.Join(lots, ", ")
}

// normalizeLotNumber trims stray punctuation and whitespace left around a
// captured lot number.
func normalizeLotNumber(match string) string {
	return strings.Trim(match, " \t\r\n:.-°")
}

// DetectMandatoryVisit reports whether the text announces a mandatory site
// visit near any keyword occurrence. For every occurrence it inspects the
// window characters immediately preceding it for the trigger word "visite"
// (which also covers the plural). Returns "yes" on the first hit, "no"
// otherwise.
func DetectMandatoryVisit(text string, keywords []string, window int) string {
	lowerText := strings.ToLower(text)
	for _, keyword := range keywords {
		for _, pos := range findOccurrences(text, keyword) {
			start := pos - window
			if start < 0 {
				start = 0
			}
			if strings.Contains(lowerText[start:pos], visitTrigger) {
				return "yes"
			}
		}
	}
	return "no"
}
