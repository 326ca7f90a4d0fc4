package parser

import (
	"regexp"
	"strings"
)

// Source reports carry inline provenance tags of the form [DM-FIN-001]
// marking the evidentiary basis of a claim. They are stripped from every
// extracted snippet.
var provenanceRe = regexp.MustCompile(`\s*\[DM-[A-Z]+-\d+\]`)

// StripProvenance removes inline [DM-XXX-nnn] provenance tags.
func StripProvenance(s string) string {
	return provenanceRe.ReplaceAllString(s, "")
}

// firstRunes returns the first n characters of s without splitting a rune.
func firstRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// languageForPath implements the source-layout convention: English reports
// live under an en/ directory.
func languageForPath(path string) string {
	if strings.Contains(path, "/en/") || strings.HasPrefix(path, "en/") {
		return "en"
	}
	return "zh"
}
