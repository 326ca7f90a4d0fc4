package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/finbrief/reportseg/internal/report"
)

// MarkdownReportParser parses a Markdown deep-research report. It never
// fails on malformed or missing sections: every extraction degrades to an
// empty value. Only the file read itself can return an error.
type MarkdownReportParser struct{}

var (
	tickerStemRe     = regexp.MustCompile(`^([A-Z]{1,5})_`)
	chapterHeadingRe = regexp.MustCompile(`(?m)^## (.+)$`)
	tableBlockRe     = regexp.MustCompile(`\|.+\|(?:\n\|.+\|)+`)
	contradictionRe  = regexp.MustCompile(`(?m)^>\s*\*\*(.+?)\*\*\s*---\s*(.+?)$`)
	numberedBoldRe   = regexp.MustCompile(`(?m)^\d+\.\s*\*\*(.+?)\*\*[:：]\s*(.+)$`)
	boldColonRe      = regexp.MustCompile(`\*\*(.+?)\*\*[:：]\s*(.+?)(?:\n|$)`)
	bulletRe         = regexp.MustCompile(`[-•]\s*\*?\*?(.+?)(?:\n|$)`)
	bracketTagRe     = regexp.MustCompile(`\[.*?\]`)

	// CQ rows: | CQ1 | question | type | weight | assessment |
	criticalQuestionRe = regexp.MustCompile(`\|\s*CQ(\d+)\s*\|\s*(.+?)\s*\|\s*([\p{L}\p{N}_]+).*?\|\s*([\d.]+)\s*\|\s*(.+?)\s*\|`)
	// CI rows: | CI-1 | name | consensus | our view |
	hypothesisRe = regexp.MustCompile(`\|\s*CI-(\d+)\s*\|\s*(.+?)\s*\|\s*(.+?)\s*\|\s*(.+?)\s*\|`)
)

// snapshotPatterns maps financial-snapshot keys to the regexes that capture
// them from prose. Declaration order is the fill order.
var snapshotPatterns = []struct {
	key string
	re  *regexp.Regexp
}{
	{"pe_ttm", regexp.MustCompile(`(?i)PE\s*(?:TTM)?\s*[:=]?\s*([\d.]+)x?`)},
	{"ps_ttm", regexp.MustCompile(`(?i)PS\s*(?:TTM)?\s*[:=]?\s*([\d.]+)x?`)},
	{"roe", regexp.MustCompile(`(?i)ROE\s*[:=]?\s*([\d.]+)%`)},
	{"roic", regexp.MustCompile(`(?i)ROIC\s*[:=]?\s*([\d.]+)%`)},
	{"gross_margin", regexp.MustCompile(`(?i)(?:毛利率|Gross\s*Margin|GM)\s*[:=]?\s*([\d.]+)%`)},
	{"net_margin", regexp.MustCompile(`(?i)(?:净利率|Net\s*(?:Profit\s*)?Margin|NPM)\s*[:=]?\s*([\d.]+)%`)},
	{"ttm_revenue", regexp.MustCompile(`(?i)TTM[收营][入额]\s*[:=]?\s*\$?([\d.]+[BMK]?)`)},
	{"fcf", regexp.MustCompile(`(?i)(?:FCF|自由现金流)\s*[:=]?\s*\$?([-\d.]+[BMK]?)`)},
	{"debt_equity", regexp.MustCompile(`(?i)(?:Debt[/-]Equity|负债率|D/E)\s*[:=]?\s*([\d.]+)`)},
}

func (p *MarkdownReportParser) Parse(path string) (*report.Data, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	text := string(raw)

	return &report.Data{
		Metadata:          p.extractMetadata(text, path),
		ExecutiveSummary:  extractSection(text, []string{"核心结论速览", "报告总览", "executive summary", "核心矛盾", "core contradiction"}),
		CoreContradiction: extractCoreContradiction(text),
		KeyFindings:       extractKeyFindings(text),
		CriticalQuestions: extractCriticalQuestions(text),
		Hypotheses:        extractHypotheses(text),
		FinancialSnapshot: extractFinancialSnapshot(firstRunes(text, 8000)),
		RiskFactors:       extractRiskFactors(text),
		BullCase:          extractSection(text, []string{"bull case", "多头情景", "乐观情景"}),
		BearCase:          extractSection(text, []string{"bear case", "空头情景", "悲观情景"}),
		ValuationSummary:  extractSection(text, []string{"估值", "valuation", "公允价值"}),
		Chapters:          splitChapters(text),
		RawMarkdown:       text,
	}, nil
}

// ── Metadata ──

func (p *MarkdownReportParser) extractMetadata(text, path string) report.Metadata {
	return report.Metadata{
		Ticker:           guessTicker(path),
		CompanyName:      firstTableValue(text, "公司", "Company"),
		Exchange:         guessExchange(text),
		Industry:         firstTableValue(text, "行业", "Industry"),
		ReportDate:       firstTableValue(text, "数据截止", "Data Date"),
		StockPrice:       firstTableValue(text, "股价", "Price"),
		MarketCap:        firstTableValue(text, "市值", "Market Cap"),
		TTMRevenue:       firstTableValue(text, "TTM收入", "TTM Revenue"),
		ReportType:       firstTableValue(text, "报告类型", "Report Type"),
		FrameworkVersion: firstTableValue(text, "框架版本"),
		Language:         languageForPath(path),
	}
}

// guessTicker tries the filename (SMCI_Complete_xxx.md), then the parent
// directory name.
func guessTicker(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if m := tickerStemRe.FindStringSubmatch(strings.ToUpper(stem)); m != nil {
		return m[1]
	}
	return strings.ToUpper(filepath.Base(filepath.Dir(path)))
}

func guessExchange(text string) string {
	head := firstRunes(text, 2000)
	for _, ex := range []string{"NASDAQ", "NYSE", "TSE"} {
		if strings.Contains(head, ex) {
			return ex
		}
	}
	return "NASDAQ"
}

// firstTableValue extracts the value cell of the first markdown table row
// whose label cell contains one of the given labels, tried in order.
func firstTableValue(text string, labels ...string) string {
	for _, label := range labels {
		re := regexp.MustCompile(`(?i)\|\s*\**` + regexp.QuoteMeta(label) + `[^|]*\**\s*\|\s*(.+?)\s*\|`)
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		val := strings.TrimSpace(m[1])
		val = strings.TrimSpace(strings.Trim(val, "*"))
		return StripProvenance(val)
	}
	return ""
}

// ── Chapters ──

// splitChapters splits the document on H2 headings. Preamble before the
// first heading is discarded. Contiguous table lines inside a chapter are
// captured as one tables entry per block.
func splitChapters(text string) []report.Chapter {
	var chapters []report.Chapter
	locs := chapterHeadingRe.FindAllStringSubmatchIndex(text, -1)
	for i, loc := range locs {
		title := strings.TrimSpace(text[loc[2]:loc[3]])
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		content := strings.TrimSpace(text[loc[1]:end])
		chapters = append(chapters, report.Chapter{
			ChapterID:       fmt.Sprintf("ch%d", i+1),
			Title:           title,
			ContentMarkdown: content,
			Tables:          tableBlockRe.FindAllString(content, -1),
			Section:         "free",
		})
	}
	return chapters
}

// ── Curated sections ──

func extractCoreContradiction(text string) string {
	// The core contradiction usually lives in a bold blockquote.
	if m := contradictionRe.FindStringSubmatch(text); m != nil {
		return m[1] + " — " + m[2]
	}
	return extractSection(text, []string{"核心矛盾", "core contradiction"})
}

func extractKeyFindings(text string) []string {
	var findings []string
	section := extractSection(text, []string{"核心发现", "key findings", "本章核心发现"})
	if section != "" {
		for _, m := range numberedBoldRe.FindAllStringSubmatch(section, -1) {
			findings = append(findings, m[1]+": "+m[2])
		}
	}
	if len(findings) == 0 {
		for _, m := range boldColonRe.FindAllStringSubmatch(firstRunes(text, 5000), -1) {
			findings = append(findings, m[1]+": "+m[2])
		}
	}
	if len(findings) > 10 {
		findings = findings[:10]
	}
	return findings
}

func extractCriticalQuestions(text string) []report.CriticalQuestion {
	var cqs []report.CriticalQuestion
	for _, m := range criticalQuestionRe.FindAllStringSubmatch(text, -1) {
		cqs = append(cqs, report.CriticalQuestion{
			ID:         "CQ" + m[1],
			Question:   strings.TrimSpace(m[2]),
			Weight:     strings.TrimSpace(m[4]),
			Assessment: strings.TrimSpace(bracketTagRe.ReplaceAllString(m[5], "")),
		})
	}
	return cqs
}

func extractHypotheses(text string) []report.Hypothesis {
	var items []report.Hypothesis
	for _, m := range hypothesisRe.FindAllStringSubmatch(text, -1) {
		items = append(items, report.Hypothesis{
			ID:        "CI-" + m[1],
			Name:      strings.TrimSpace(m[2]),
			Consensus: strings.TrimSpace(m[3]),
			OurView:   strings.TrimSpace(bracketTagRe.ReplaceAllString(m[4], "")),
		})
	}
	return items
}

// extractFinancialSnapshot collects whichever snapshot patterns match.
// A missing pattern simply omits that key.
func extractFinancialSnapshot(text string) map[string]string {
	snapshot := make(map[string]string)
	for _, kv := range snapshotPatterns {
		if m := kv.re.FindStringSubmatch(text); m != nil {
			snapshot[kv.key] = m[1]
		}
	}
	return snapshot
}

func extractRiskFactors(text string) []string {
	section := extractSection(text, []string{"风险", "risk", "最大风险", "risk factors"})
	if section == "" {
		return nil
	}
	var risks []string
	for _, m := range bulletRe.FindAllStringSubmatch(section, -1) {
		risks = append(risks, strings.Trim(strings.TrimSpace(m[1]), "*"))
	}
	if len(risks) > 10 {
		risks = risks[:10]
	}
	return risks
}

// sectionCap bounds heading-anchored extraction when no closing heading of
// equal-or-shallower level exists.
const sectionCap = 3000

// extractSection returns the text under the first H2/H3 heading containing
// any of the keywords (tried in order, case-insensitive), up to the next
// heading of equal-or-shallower level or sectionCap characters.
func extractSection(text string, keywords []string) string {
	for _, kw := range keywords {
		re := regexp.MustCompile(`(?im)^(#{2,3})\s+.*` + regexp.QuoteMeta(kw) + `.*$`)
		loc := re.FindStringSubmatchIndex(text)
		if loc == nil {
			continue
		}
		level := loc[3] - loc[2]
		start := loc[1]
		end := len(text)
		nextRe := regexp.MustCompile(fmt.Sprintf(`(?m)^#{1,%d}\s+`, level))
		if next := nextRe.FindStringIndex(text[start:]); next != nil {
			end = start + next[0]
		} else {
			end = start + len(firstRunes(text[start:], sectionCap))
		}
		return strings.TrimSpace(text[start:end])
	}
	return ""
}
