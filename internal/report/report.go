// Package report defines the normalized document model produced by the
// parsers and consumed by the segment splitter and downstream generators.
package report

import "strings"

// Metadata holds the identifying facts of one research report.
type Metadata struct {
	Ticker           string `json:"ticker"`
	CompanyName      string `json:"company_name"`
	Exchange         string `json:"exchange"`
	Industry         string `json:"industry"`
	ReportDate       string `json:"report_date"`
	StockPrice       string `json:"stock_price"`
	MarketCap        string `json:"market_cap"`
	TTMRevenue       string `json:"ttm_revenue"`
	ReportType       string `json:"report_type"`
	FrameworkVersion string `json:"framework_version"`
	Language         string `json:"language"` // "zh" or "en"
}

// Chapter is one heading-delimited section of a report.
type Chapter struct {
	ChapterID       string   `json:"chapter_id"` // "ch1", "ch2", ...
	Title           string   `json:"title"`
	ContentMarkdown string   `json:"content_markdown"`
	Tables          []string `json:"tables"`  // raw markdown tables
	Section         string   `json:"section"` // "free", "registered", "paid"
}

// CriticalQuestion is one row of the report's CQ assessment table.
type CriticalQuestion struct {
	ID         string `json:"id"`
	Question   string `json:"question"`
	Weight     string `json:"weight"`
	Assessment string `json:"assessment"`
}

// Hypothesis is one non-consensus view (CI-n table row).
type Hypothesis struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Consensus string `json:"consensus"`
	OurView   string `json:"our_view"`
}

// Data is the full normalized report. Chapters are ordered by document
// position. All curated fields are best-effort extracts: consumers must
// tolerate them being empty and fall back to RawMarkdown.
type Data struct {
	Metadata          Metadata           `json:"metadata"`
	ExecutiveSummary  string             `json:"executive_summary"`
	CoreContradiction string             `json:"core_contradiction"`
	KeyFindings       []string           `json:"key_findings"`
	CriticalQuestions []CriticalQuestion `json:"critical_questions"`
	Hypotheses        []Hypothesis       `json:"non_consensus_hypotheses"`
	FinancialSnapshot map[string]string  `json:"financial_snapshot"`
	RiskFactors       []string           `json:"risk_factors"`
	BullCase          string             `json:"bull_case"`
	BearCase          string             `json:"bear_case"`
	ValuationSummary  string             `json:"valuation_summary"`
	Chapters          []Chapter          `json:"chapters"`
	RawMarkdown       string             `json:"raw_markdown"`
}

// TopFindings returns the first n key findings.
func (d *Data) TopFindings(n int) []string {
	if n > len(d.KeyFindings) {
		n = len(d.KeyFindings)
	}
	if n < 0 {
		n = 0
	}
	return d.KeyFindings[:n]
}

// ChapterByKeyword finds the first chapter whose title contains keyword,
// case-insensitively. Returns nil if no chapter matches.
func (d *Data) ChapterByKeyword(keyword string) *Chapter {
	kw := strings.ToLower(keyword)
	for i := range d.Chapters {
		if strings.Contains(strings.ToLower(d.Chapters[i].Title), kw) {
			return &d.Chapters[i]
		}
	}
	return nil
}

// Snippet returns the raw markdown truncated to maxChars characters.
func (d *Data) Snippet(maxChars int) string {
	runes := []rune(d.RawMarkdown)
	if len(runes) <= maxChars {
		return d.RawMarkdown
	}
	return string(runes[:maxChars]) + "\n\n…[truncated]"
}
