package parser

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/finbrief/reportseg/internal/report"
)

// HTMLReportParser parses an index.html report across all three gated
// content regions (free / registered / paid).
//
// Structural conventions it honors:
//   - chapters are <h1>, sections <h2>, sub-sections <h3>
//   - every extraction scans the union of whichever gated regions exist,
//     in region order, falling back to <body>
//   - tables become compact Markdown, not flattened text
//   - mermaid diagrams and the invite overlay are stripped up front
type HTMLReportParser struct{}

var gatedRegionIDs = []string{"free-content", "registered-content", "paid-content"}

var titleBoilerplate = []string{
	"深度投资研究报告",
	"In-Depth Investment Research Report",
	"In-depth Investment Research Report",
	"Deep Investment Research Report",
	"深度研究报告",
	"投资研究报告",
}

var (
	numberedLineRe = regexp.MustCompile(`\d+\.\s*\*?\*?(.+?)(?:\n|$)`)
	firstNumberRe  = regexp.MustCompile(`[\d.]+`)
)

// ldJSON is the shape of the optional <script type="application/ld+json">
// metadata block.
type ldJSON struct {
	Ticker        string `json:"ticker"`
	Name          string `json:"name"`
	Industry      string `json:"industry"`
	DatePublished string `json:"datePublished"`
}

func (p *HTMLReportParser) Parse(path string) (*report.Data, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	// The ld+json block must be captured before noise stripping removes
	// every <script> from the tree.
	ldRaw := strings.TrimSpace(doc.Find(`script[type="application/ld+json"]`).First().Text())

	stripNoise(doc)

	regions := contentRegions(doc)
	bodyText := extractBodyText(regions)

	return &report.Data{
		Metadata:          extractHTMLMetadata(doc, ldRaw, path),
		ExecutiveSummary:  extractHTMLSummary(doc),
		CoreContradiction: extractHTMLContradiction(doc),
		KeyFindings:       extractHTMLKeyFindings(doc, bodyText),
		FinancialSnapshot: extractHTMLSnapshot(regions, bodyText),
		RiskFactors:       extractHTMLRisks(regions),
		BullCase:          sectionProse(regions, []string{"多头情景", "bull case", "乐观情景", "乐观"}),
		BearCase:          sectionProse(regions, []string{"空头情景", "bear case", "悲观情景", "悲观"}),
		ValuationSummary:  extractHTMLValuation(doc, regions),
		Chapters:          splitHTMLChapters(regions),
		RawMarkdown:       bodyText,
	}, nil
}

// ── Noise removal ──

func stripNoise(doc *goquery.Document) {
	doc.Find("script, style, nav, footer").Remove()
	doc.Find("[class]").Each(func(_ int, s *goquery.Selection) {
		if cls, ok := s.Attr("class"); ok && strings.Contains(strings.ToLower(cls), "mermaid") {
			s.Remove()
		}
	})
	doc.Find("#invite-guide-overlay").Remove()
}

// ── Content regions ──

// contentRegions returns whichever gated content divs exist, in tier order,
// or the <body> when none do.
func contentRegions(doc *goquery.Document) []*goquery.Selection {
	var regions []*goquery.Selection
	for _, id := range gatedRegionIDs {
		if sel := doc.Find("#" + id); sel.Length() > 0 {
			regions = append(regions, sel.First())
		}
	}
	if len(regions) == 0 {
		if body := doc.Find("body"); body.Length() > 0 {
			regions = append(regions, body.First())
		}
	}
	return regions
}

func searchRoot(doc *goquery.Document) *goquery.Selection {
	if free := doc.Find("#free-content"); free.Length() > 0 {
		return free.First()
	}
	return doc.Selection
}

// ── Metadata ──

func extractHTMLMetadata(doc *goquery.Document, ldRaw, path string) report.Metadata {
	lang := languageForPath(path)
	ticker := dirTicker(path)

	if ldRaw != "" {
		var ld ldJSON
		if err := json.Unmarshal([]byte(ldRaw), &ld); err == nil {
			if ld.Ticker != "" {
				ticker = ld.Ticker
			}
			return report.Metadata{
				Ticker:      ticker,
				CompanyName: ld.Name,
				Industry:    ld.Industry,
				ReportDate:  ld.DatePublished,
				Language:    lang,
			}
		}
	}

	// Prefer the first <h1> (has the real company name) over <title>,
	// which is sometimes generic.
	company := ""
	if h1 := doc.Find("h1").First(); h1.Length() > 0 {
		raw := nodeText(h1.Get(0), "")
		for _, suffix := range titleBoilerplate {
			raw = strings.ReplaceAll(raw, suffix, "")
			raw = strings.TrimRight(strings.TrimSpace(raw), " -—")
		}
		company = strings.TrimSpace(raw)
	}
	if company == "" || strings.Contains(company, "UNKNOWN") {
		if t := doc.Find("title"); t.Length() > 0 {
			company = nodeText(t.Get(0), "")
		} else {
			company = ticker
		}
	}

	return report.Metadata{
		Ticker:      ticker,
		CompanyName: company,
		Language:    lang,
	}
}

// dirTicker derives the ticker from the source path's parent directory.
// A directory literally named "en" is the English variant nested one level
// below the ticker directory.
func dirTicker(path string) string {
	dir := filepath.Base(filepath.Dir(path))
	if strings.EqualFold(dir, "en") {
		dir = filepath.Base(filepath.Dir(filepath.Dir(path)))
	}
	return strings.ToUpper(dir)
}

// ── Body text (all regions combined) ──

func extractBodyText(regions []*goquery.Selection) string {
	parts := make([]string, 0, len(regions))
	for _, region := range regions {
		parts = append(parts, regionToText(region.Get(0)))
	}
	return strings.Join(parts, "\n\n")
}

// regionToText converts one region's direct children to readable text.
// Headings keep their level as markdown prefixes; tables become markdown
// tables instead of flattened cells.
func regionToText(region *html.Node) string {
	var out []string
	for c := region.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		switch c.Data {
		case "table":
			out = append(out, tableToMarkdown(c))
		case "h1", "h2", "h3":
			level := int(c.Data[1] - '0')
			out = append(out, strings.Repeat("#", level)+" "+nodeText(c, ""))
		default:
			if t := nodeText(c, "\n"); t != "" {
				out = append(out, t)
			}
		}
	}
	return strings.Join(out, "\n\n")
}

// tableToMarkdown renders an HTML table as a compact Markdown table.
// Pipes inside cells are escaped to "/" so they cannot corrupt the rows.
func tableToMarkdown(table *html.Node) string {
	rows := findAllNodes(table, "tr")
	if len(rows) == 0 {
		return ""
	}
	var mdRows []string
	for _, row := range rows {
		var cells []string
		for _, c := range findAllNodes(row, "th", "td") {
			cells = append(cells, strings.ReplaceAll(nodeText(c, ""), "|", "/"))
		}
		mdRows = append(mdRows, "| "+strings.Join(cells, " | ")+" |")
	}
	if len(mdRows) >= 2 {
		ncols := strings.Count(mdRows[0], "|") - 1
		if ncols < 1 {
			ncols = 1
		}
		seps := make([]string, ncols)
		for i := range seps {
			seps[i] = "---"
		}
		withSep := make([]string, 0, len(mdRows)+1)
		withSep = append(withSep, mdRows[0], "| "+strings.Join(seps, " | ")+" |")
		withSep = append(withSep, mdRows[1:]...)
		mdRows = withSep
	}
	return strings.Join(mdRows, "\n")
}

// ── Chapters (split on <h1>) ──

// looksLikeReportTitle reports whether an <h1> text is the document's own
// title banner rather than a chapter heading. This is a content heuristic:
// a legitimate first chapter whose title contains one of the markers would
// be wrongly dropped. Kept behind this predicate so it can be swapped for a
// positional rule if that ever bites.
func looksLikeReportTitle(title string) bool {
	return strings.Contains(title, "深度") ||
		strings.Contains(title, "研究报告") ||
		strings.Contains(title, "Research")
}

func splitHTMLChapters(regions []*goquery.Selection) []report.Chapter {
	type h1ref struct {
		node    *html.Node
		section string
	}
	var h1s []h1ref
	for _, region := range regions {
		section := sectionForRegionID(region.AttrOr("id", ""))
		region.Find("h1").Each(func(_ int, s *goquery.Selection) {
			h1s = append(h1s, h1ref{node: s.Get(0), section: section})
		})
	}

	var chapters []report.Chapter
	for i, h := range h1s {
		title := nodeText(h.node, "")
		// The very first h1 is usually the report's title banner.
		if i == 0 && looksLikeReportTitle(title) {
			continue
		}

		var parts, tables []string
		for sib := h.node.NextSibling; sib != nil; sib = sib.NextSibling {
			if sib.Type != html.ElementNode {
				continue
			}
			if sib.Data == "h1" {
				break
			}
			if sib.Data == "table" {
				tables = append(tables, tableToMarkdown(sib))
				continue
			}
			if t := nodeText(sib, "\n"); t != "" {
				parts = append(parts, t)
			}
		}
		if len(tables) > 10 {
			tables = tables[:10]
		}
		chapters = append(chapters, report.Chapter{
			ChapterID:       fmt.Sprintf("ch%d", len(chapters)+1),
			Title:           title,
			ContentMarkdown: strings.Join(parts, "\n\n"),
			Tables:          tables,
			Section:         h.section,
		})
	}
	return chapters
}

func sectionForRegionID(id string) string {
	switch id {
	case "registered-content":
		return "registered"
	case "paid-content":
		return "paid"
	default:
		return "free"
	}
}

// ── Executive summary ──

func extractHTMLSummary(doc *goquery.Document) string {
	root := searchRoot(doc)

	headingFound := false
	var parts []string

	if h := findHeading(root, []string{"一句话结论", "one-line", "核心结论"}); h != nil {
		headingFound = true
		if t := proseAfterHeading(h, 1000); t != "" {
			parts = append(parts, t)
		}
	}
	if h := findHeading(root, []string{"三个核心发现", "核心发现", "key findings"}); h != nil {
		headingFound = true
		if t := proseAfterHeading(h, 2000); t != "" {
			parts = append(parts, t)
		}
	}
	if headingFound {
		return strings.Join(parts, "\n\n")
	}

	// Fallback: first chapter content.
	if h1 := root.Find("h1").First(); h1.Length() > 0 {
		return proseAfterHeading(h1, 3000)
	}
	return ""
}

func extractHTMLContradiction(doc *goquery.Document) string {
	root := searchRoot(doc)

	if h := findHeading(root, []string{"核心矛盾", "core contradiction"}); h != nil {
		return proseAfterHeading(h, 1000)
	}
	if bq := root.Find("blockquote").First(); bq.Length() > 0 {
		return firstRunes(nodeText(bq.Get(0), ""), 1000)
	}
	return ""
}

// ── Key findings ──

func extractHTMLKeyFindings(doc *goquery.Document, bodyText string) []string {
	root := searchRoot(doc)

	if h := findHeading(root, []string{"三个核心发现", "核心发现", "key findings", "本章核心发现"}); h != nil {
		var findings []string
		for sib := h.Get(0).NextSibling; sib != nil; sib = sib.NextSibling {
			if sib.Type != html.ElementNode {
				continue
			}
			if sib.Data == "h1" || sib.Data == "h2" {
				break
			}
			for _, li := range findAllNodes(sib, "li") {
				if t := nodeText(li, ""); utf8.RuneCountInString(t) > 15 {
					findings = append(findings, t)
				}
			}
			if sib.Data == "p" && hasDescendant(sib, "strong") {
				if full := nodeText(sib, ""); utf8.RuneCountInString(full) > 20 {
					findings = append(findings, full)
				}
			}
		}
		if len(findings) > 0 {
			if len(findings) > 10 {
				findings = findings[:10]
			}
			return findings
		}
	}

	// Fallback: numbered lines near the top of the combined body text.
	var findings []string
	for _, m := range numberedLineRe.FindAllStringSubmatch(firstRunes(bodyText, 8000), -1) {
		line := strings.Trim(strings.TrimSpace(m[1]), "*")
		if utf8.RuneCountInString(line) > 20 {
			findings = append(findings, line)
		}
	}
	if len(findings) > 10 {
		findings = findings[:10]
	}
	return findings
}

// ── Financial snapshot ──

// extractHTMLSnapshot runs the shared snapshot regexes over the full body
// text, then fills remaining keys from two-cell table rows.
func extractHTMLSnapshot(regions []*goquery.Selection, bodyText string) map[string]string {
	snapshot := make(map[string]string)
	for _, kv := range snapshotPatterns {
		if m := kv.re.FindStringSubmatch(bodyText); m != nil {
			snapshot[kv.key] = m[1]
		}
	}

	for _, region := range regions {
		for _, table := range findAllNodes(region.Get(0), "table") {
			for _, row := range findAllNodes(table, "tr") {
				var cells []string
				for _, c := range findAllNodes(row, "th", "td") {
					cells = append(cells, nodeText(c, ""))
				}
				if len(cells) < 2 {
					continue
				}
				label := strings.ToLower(cells[0])
				value := cells[1]
				switch {
				case strings.Contains(label, "pe") && strings.Contains(label, "ttm"):
					fillSnapshot(snapshot, "pe_ttm", value)
				case strings.Contains(label, "毛利率") || strings.Contains(label, "gross margin"):
					fillSnapshot(snapshot, "gross_margin", value)
				case strings.Contains(label, "roe"):
					fillSnapshot(snapshot, "roe", value)
				}
			}
		}
	}
	return snapshot
}

func fillSnapshot(snapshot map[string]string, key, value string) {
	if _, ok := snapshot[key]; ok {
		return
	}
	if m := firstNumberRe.FindString(value); m != "" {
		snapshot[key] = m
	}
}

// ── Risk factors ──

func extractHTMLRisks(regions []*goquery.Selection) []string {
	riskMarkers := []string{"风险", "risk", "kill switch", "黑天鹅"}

	var risks []string
	for _, region := range regions {
		for _, h := range findAllNodes(region.Get(0), "h1", "h2", "h3") {
			title := strings.ToLower(nodeText(h, ""))
			matched := false
			for _, kw := range riskMarkers {
				if strings.Contains(title, kw) {
					matched = true
					break
				}
			}
			if !matched {
				continue
			}
			for sib := h.NextSibling; sib != nil; sib = sib.NextSibling {
				if sib.Type != html.ElementNode {
					continue
				}
				if sib.Data == "h1" || sib.Data == "h2" {
					break
				}
				for _, li := range findAllNodes(sib, "li") {
					if t := nodeText(li, ""); utf8.RuneCountInString(t) > 10 {
						risks = append(risks, t)
					}
				}
				if sib.Data == "p" && hasDescendant(sib, "strong") {
					if t := nodeText(sib, ""); utf8.RuneCountInString(t) > 15 {
						risks = append(risks, t)
					}
				}
			}
			if len(risks) > 0 {
				break
			}
		}
		if len(risks) > 0 {
			break
		}
	}
	if len(risks) > 10 {
		risks = risks[:10]
	}
	return risks
}

// ── Valuation summary ──

// extractHTMLValuation prefers paid-content, where the real valuation
// chapters live. Matches elsewhere under 200 characters are treated as
// table-of-contents stubs and discarded.
func extractHTMLValuation(doc *goquery.Document, regions []*goquery.Selection) string {
	keywords := []string{"估值", "valuation", "公允价值"}

	if paid := doc.Find("#paid-content"); paid.Length() > 0 {
		if h := findHeading(paid.First(), keywords); h != nil {
			return proseAfterHeading(h, 3000)
		}
	}
	for _, region := range regions {
		if h := findHeading(region, keywords); h != nil {
			text := proseAfterHeading(h, 3000)
			if utf8.RuneCountInString(text) > 200 {
				return text
			}
		}
	}
	return ""
}

// ── Shared DOM helpers ──

// findHeading returns the first h1/h2/h3 in root, in document order, whose
// text contains any of the keywords (tried in order, case-insensitive).
func findHeading(root *goquery.Selection, keywords []string) *goquery.Selection {
	for _, kw := range keywords {
		lkw := strings.ToLower(kw)
		var found *goquery.Selection
		root.Find("h2, h3, h1").EachWithBreak(func(_ int, h *goquery.Selection) bool {
			if strings.Contains(strings.ToLower(nodeText(h.Get(0), "")), lkw) {
				found = h
				return false
			}
			return true
		})
		if found != nil {
			return found
		}
	}
	return nil
}

// proseAfterHeading collects sibling prose after a heading, stopping at the
// next heading of equal-or-shallower level or at maxChars characters.
func proseAfterHeading(heading *goquery.Selection, maxChars int) string {
	node := heading.Get(0)
	level := 2
	if len(node.Data) == 2 && node.Data[0] == 'h' {
		level = int(node.Data[1] - '0')
	}

	var parts []string
	total := 0
	for sib := node.NextSibling; sib != nil; sib = sib.NextSibling {
		if sib.Type != html.ElementNode {
			continue
		}
		if headingLevel(sib.Data) > 0 && headingLevel(sib.Data) <= level {
			break
		}
		if total >= maxChars {
			break
		}
		if sib.Data == "table" {
			md := tableToMarkdown(sib)
			parts = append(parts, md)
			total += utf8.RuneCountInString(md)
		} else if t := nodeText(sib, "\n"); t != "" {
			parts = append(parts, t)
			total += utf8.RuneCountInString(t)
		}
	}
	return firstRunes(strings.Join(parts, "\n\n"), maxChars)
}

// sectionProse searches every region for a heading matching keywords and
// returns its prose when it is substantial enough to be a real section.
func sectionProse(regions []*goquery.Selection, keywords []string) string {
	for _, region := range regions {
		if h := findHeading(region, keywords); h != nil {
			text := proseAfterHeading(h, 3000)
			if utf8.RuneCountInString(text) > 50 {
				return text
			}
		}
	}
	return ""
}

func headingLevel(tag string) int {
	if len(tag) == 2 && tag[0] == 'h' && tag[1] >= '1' && tag[1] <= '6' {
		return int(tag[1] - '0')
	}
	return 0
}

// nodeText collects the trimmed text fragments under n, joined by sep.
func nodeText(n *html.Node, sep string) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		if c.Type == html.TextNode {
			if t := strings.TrimSpace(c.Data); t != "" {
				parts = append(parts, t)
			}
		}
		for k := c.FirstChild; k != nil; k = k.NextSibling {
			walk(k)
		}
	}
	walk(n)
	return strings.Join(parts, sep)
}

// findAllNodes returns the descendant elements of n matching any of the
// tags, in document order.
func findAllNodes(n *html.Node, tags ...string) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		if c.Type == html.ElementNode {
			for _, t := range tags {
				if c.Data == t {
					out = append(out, c)
					break
				}
			}
		}
		for k := c.FirstChild; k != nil; k = k.NextSibling {
			walk(k)
		}
	}
	for k := n.FirstChild; k != nil; k = k.NextSibling {
		walk(k)
	}
	return out
}

func hasDescendant(n *html.Node, tag string) bool {
	return len(findAllNodes(n, tag)) > 0
}
