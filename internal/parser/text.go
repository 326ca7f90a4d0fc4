package parser

import (
	"os"

	"github.com/finbrief/reportseg/internal/report"
)

// TextReportParser handles plain-text report exports. There is no heading
// structure to recover, so the whole text lands in RawMarkdown, every
// curated field stays empty, and consumers fall back to the raw text.
type TextReportParser struct{}

func (p *TextReportParser) Parse(path string) (*report.Data, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return rawOnlyReport(string(raw), path), nil
}

// rawOnlyReport builds the minimal report.Data a structure-less source can
// support: path-derived metadata plus the full raw text.
func rawOnlyReport(text, path string) *report.Data {
	return &report.Data{
		Metadata: report.Metadata{
			Ticker:   guessTicker(path),
			Exchange: guessExchange(text),
			Language: languageForPath(path),
		},
		FinancialSnapshot: extractFinancialSnapshot(firstRunes(text, 8000)),
		RawMarkdown:       text,
	}
}
