// Command segment parses one research report and prints its platform
// segments, as JSON or as rendered HTML.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"html"
	"log/slog"
	"os"
	"strings"

	"github.com/finbrief/reportseg/internal/config"
	"github.com/finbrief/reportseg/internal/parser"
	"github.com/finbrief/reportseg/internal/report"
	"github.com/finbrief/reportseg/internal/splitter"
	"github.com/joho/godotenv"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

func main() {
	godotenv.Load()

	var (
		source     = flag.String("source", "", "report file to parse (overrides -ticker lookup)")
		ticker     = flag.String("ticker", "", "ticker to locate under the reports dir")
		reportsDir = flag.String("reports-dir", "", "reports directory (default REPORTS_DIR)")
		platform   = flag.String("platform", splitter.DefaultPlatform, "target platform")
		output     = flag.String("output", "-", "output file, - for stdout")
		asHTML     = flag.Bool("html", false, "render segments as HTML instead of JSON")
	)
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg := config.Load()
	if *reportsDir != "" {
		cfg.ReportsDir = *reportsDir
	}

	path := *source
	if path == "" {
		if *ticker == "" {
			fmt.Fprintln(os.Stderr, "either -source or -ticker is required")
			os.Exit(2)
		}
		if path = cfg.FindHTMLReport(*ticker); path == "" {
			path = cfg.FindMarkdownReport(*ticker)
		}
		if path == "" {
			log.Error("no report found", "ticker", *ticker, "dir", cfg.ReportDir(*ticker))
			os.Exit(1)
		}
	}

	p, err := parser.ForFile(path)
	if err != nil {
		log.Error("unsupported format", "path", path, "error", err)
		os.Exit(1)
	}
	rd, err := p.Parse(path)
	if err != nil {
		log.Error("parse failed", "path", path, "error", err)
		os.Exit(1)
	}
	if *ticker != "" {
		rd.Metadata.Ticker = strings.ToUpper(*ticker)
	}
	log.Info("parsed report", "ticker", rd.Metadata.Ticker, "chapters", len(rd.Chapters))

	var themes map[string][]string
	if cfg.ThemeConfigPath != "" {
		if themes, err = config.LoadThemeOverrides(cfg.ThemeConfigPath); err != nil {
			log.Error("theme config load failed", "path", cfg.ThemeConfigPath, "error", err)
			os.Exit(1)
		}
	}

	segments := splitter.NewWithThemes(*platform, themes[*platform]).Split(rd)
	log.Info("split report", "platform", *platform, "segments", len(segments))

	var rendered []byte
	if *asHTML {
		rendered, err = renderHTML(rd, segments)
	} else {
		rendered, err = json.MarshalIndent(map[string]any{
			"ticker":   rd.Metadata.Ticker,
			"platform": *platform,
			"metadata": rd.Metadata,
			"segments": segments,
		}, "", "  ")
	}
	if err != nil {
		log.Error("render failed", "error", err)
		os.Exit(1)
	}

	if *output == "-" {
		os.Stdout.Write(rendered)
		os.Stdout.Write([]byte("\n"))
		return
	}
	if err := os.WriteFile(*output, rendered, 0o644); err != nil {
		log.Error("write failed", "path", *output, "error", err)
		os.Exit(1)
	}
	log.Info("wrote output", "path", *output)
}

func renderHTML(rd *report.Data, segments []report.Segment) ([]byte, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))

	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html>\n<head><meta charset=\"utf-8\"><title>")
	sb.WriteString(html.EscapeString(strings.TrimSpace(rd.Metadata.Ticker + " " + rd.Metadata.CompanyName)))
	sb.WriteString("</title></head>\n<body>\n")
	for _, seg := range segments {
		fmt.Fprintf(&sb, "<section id=%q>\n<h1>%s</h1>\n", seg.SegmentID, html.EscapeString(seg.Title))
		if err := md.Convert([]byte(seg.ContentMarkdown), &sb); err != nil {
			return nil, fmt.Errorf("render %s: %w", seg.SegmentID, err)
		}
		sb.WriteString("</section>\n")
	}
	sb.WriteString("</body>\n</html>\n")
	return []byte(sb.String()), nil
}
