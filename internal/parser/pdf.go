package parser

import (
	"fmt"
	"strings"

	pdflib "github.com/ledongthuc/pdf"

	"github.com/finbrief/reportseg/internal/report"
)

// PDFReportParser handles PDF report exports. PDFs carry no recoverable
// heading structure, so the extracted text is treated the same way as a
// plain-text source.
type PDFReportParser struct{}

func (p *PDFReportParser) Parse(path string) (*report.Data, error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	var buf strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if buf.Len() > 0 {
			buf.WriteString("\f")
		}
		buf.WriteString(text)
	}

	return rawOnlyReport(buf.String(), path), nil
}
