package splitter

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/finbrief/reportseg/internal/report"
)

// Splitter splits a report.Data into themed segments for one platform.
type Splitter struct {
	platform  string
	themeKeys []string
}

// New returns a splitter for the given platform, falling back to the
// default platform's theme list when the platform is unknown.
func New(platform string) *Splitter {
	keys, ok := PlatformThemes[platform]
	if !ok {
		keys = PlatformThemes[DefaultPlatform]
	}
	return &Splitter{platform: platform, themeKeys: keys}
}

// NewWithThemes returns a splitter with an explicit theme-key list,
// bypassing the built-in platform table. Used for config-file overrides.
func NewWithThemes(platform string, themeKeys []string) *Splitter {
	if len(themeKeys) == 0 {
		return New(platform)
	}
	return &Splitter{platform: platform, themeKeys: themeKeys}
}

// Split classifies the report's chapters into themes and assembles one
// segment per configured platform theme. Chapters that match no theme
// inherit the theme of the nearest preceding classified chapter; segments
// that end up empty are dropped.
func (s *Splitter) Split(rd *report.Data) []report.Segment {
	canonical := s.canonicalKeys()

	// Step 1: classify each chapter.
	assignments := make(map[string][]report.Chapter, len(canonical))
	assignedTheme := make(map[string]string) // chapter ID -> theme key
	var orphans []report.Chapter

	inCanonical := make(map[string]bool, len(canonical))
	for _, k := range canonical {
		inCanonical[k] = true
	}

	for _, ch := range rd.Chapters {
		theme := matchChapterTheme(ch)
		if theme != "" && inCanonical[theme] {
			assignments[theme] = append(assignments[theme], ch)
			assignedTheme[ch.ChapterID] = theme
		} else {
			orphans = append(orphans, ch)
		}
	}

	// Step 2: orphans inherit from the nearest preceding classified
	// chapter in original document order; with no classified predecessor
	// they fall to the last canonical theme.
	for _, ch := range orphans {
		idx := chapterIndex(rd.Chapters, ch.ChapterID)
		theme := canonical[len(canonical)-1]
		for i := idx - 1; i >= 0; i-- {
			if t, ok := assignedTheme[rd.Chapters[i].ChapterID]; ok {
				theme = t
				break
			}
		}
		assignments[theme] = append(assignments[theme], ch)
		assignedTheme[ch.ChapterID] = theme
	}

	// Step 3: assemble segments per configured platform theme.
	var segments []report.Segment
	for _, themeKey := range s.themeKeys {
		canonicalKeys, merged := MergedThemes[themeKey]
		if !merged {
			canonicalKeys = []string{themeKey}
		}

		var contentParts, tables, chapterIDs []string

		for _, ck := range canonicalKeys {
			td := themeByKey(ck)
			if td == nil {
				continue
			}
			for _, field := range td.IncludeFields {
				if sup := supplementContent(rd, field); sup != "" {
					contentParts = append(contentParts, sup)
				}
			}
		}

		for _, ck := range canonicalKeys {
			for _, ch := range assignments[ck] {
				contentParts = append(contentParts, "## "+ch.Title+"\n\n"+ch.ContentMarkdown)
				tables = append(tables, ch.Tables...)
				chapterIDs = append(chapterIDs, ch.ChapterID)
			}
		}

		content := strings.Join(contentParts, "\n\n")
		if strings.TrimSpace(content) == "" {
			continue
		}

		segments = append(segments, report.Segment{
			SegmentID:        fmt.Sprintf("seg%d", len(segments)+1),
			Theme:            themeKey,
			Title:            strings.ToUpper(rd.Metadata.Ticker) + " - " + segmentTitle(themeKey, canonicalKeys[0], rd.Metadata.Language),
			SourceChapterIDs: chapterIDs,
			ContentMarkdown:  content,
			Tables:           tables,
			WordCount:        len(strings.Fields(content)),
			VideoStatus:      "pending",
			Status:           "draft",
		})
	}
	return segments
}

// canonicalKeys expands the platform's theme keys to canonical theme keys.
func (s *Splitter) canonicalKeys() []string {
	var keys []string
	for _, tk := range s.themeKeys {
		if expanded, ok := MergedThemes[tk]; ok {
			keys = append(keys, expanded...)
		} else {
			keys = append(keys, tk)
		}
	}
	return keys
}

// matchChapterTheme returns the best-matching theme key for a chapter, or
// "" for an orphan.
//
// Title keywords weigh 5 points each. Keywords in the first 300 characters
// of the body weigh 1 point each but only count when the title already has
// at least one hit; body text alone never produces a match. Ties break
// toward the earlier theme: a later theme wins only with a strictly higher
// score.
func matchChapterTheme(ch report.Chapter) string {
	titleLower := strings.ToLower(ch.Title)
	peek := strings.ToLower(firstRunes(ch.ContentMarkdown, 300))

	best := ""
	bestScore := 0
	for _, theme := range Themes {
		titleHits := 0
		for _, kw := range theme.Keywords {
			if strings.Contains(titleLower, kw) {
				titleHits++
			}
		}
		contentHits := 0
		if titleHits > 0 {
			for _, kw := range theme.Keywords {
				if strings.Contains(peek, kw) {
					contentHits++
				}
			}
		}
		score := titleHits*5 + contentHits
		if score > bestScore {
			bestScore = score
			best = theme.Key
		}
	}

	// At least one title hit is required for a match.
	if bestScore >= 5 {
		return best
	}
	return ""
}

// supplementContent renders one report.Data field as markdown supplementary
// material: strings verbatim, string lists as bullets, structured lists one
// bullet per item, the snapshot as key/value bullets in sorted key order.
func supplementContent(rd *report.Data, field string) string {
	switch field {
	case "executive_summary":
		return rd.ExecutiveSummary
	case "core_contradiction":
		return rd.CoreContradiction
	case "bull_case":
		return rd.BullCase
	case "bear_case":
		return rd.BearCase
	case "valuation_summary":
		return rd.ValuationSummary
	case "key_findings":
		return bulletList(rd.KeyFindings)
	case "risk_factors":
		return bulletList(rd.RiskFactors)
	case "financial_snapshot":
		if len(rd.FinancialSnapshot) == 0 {
			return ""
		}
		keys := make([]string, 0, len(rd.FinancialSnapshot))
		for k := range rd.FinancialSnapshot {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		lines := make([]string, 0, len(keys))
		for _, k := range keys {
			lines = append(lines, "- "+k+": "+rd.FinancialSnapshot[k])
		}
		return strings.Join(lines, "\n")
	case "critical_questions":
		lines := make([]string, 0, len(rd.CriticalQuestions))
		for _, cq := range rd.CriticalQuestions {
			lines = append(lines, fmt.Sprintf("- id: %s, question: %s, weight: %s, assessment: %s",
				cq.ID, cq.Question, cq.Weight, cq.Assessment))
		}
		return strings.Join(lines, "\n")
	case "non_consensus_hypotheses":
		lines := make([]string, 0, len(rd.Hypotheses))
		for _, h := range rd.Hypotheses {
			lines = append(lines, fmt.Sprintf("- id: %s, name: %s, consensus: %s, our_view: %s",
				h.ID, h.Name, h.Consensus, h.OurView))
		}
		return strings.Join(lines, "\n")
	}
	return ""
}

func bulletList(items []string) string {
	if len(items) == 0 {
		return ""
	}
	lines := make([]string, 0, len(items))
	for _, item := range items {
		lines = append(lines, "- "+item)
	}
	return strings.Join(lines, "\n")
}

// segmentTitle localizes the segment title by the report's language tag.
// Unknown theme keys (possible only for unrecognized merged-key targets)
// fall back to a title-cased version of the raw key.
func segmentTitle(themeKey, canonicalKey, language string) string {
	if td := themeByKey(canonicalKey); td != nil {
		if language == "zh" || language == "" {
			return td.TitleZH
		}
		return td.TitleEN
	}
	return titleCase(strings.ReplaceAll(themeKey, "_", " "))
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

func chapterIndex(chapters []report.Chapter, chapterID string) int {
	for i := range chapters {
		if chapters[i].ChapterID == chapterID {
			return i
		}
	}
	return len(chapters)
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
