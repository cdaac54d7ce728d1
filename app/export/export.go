// Package export renders a single history entry as a downloadable document.
package export

import (
	"errors"
	"fmt"
	"strings"

	"github.com/theChefEngineer/ai-tool-app-sub001/app/models"
)

// Format is the output format of an export.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatText Format = "txt"
)

// ErrUnknownFormat is returned for formats other than pdf and txt.
var ErrUnknownFormat = errors.New("unknown export format")

// ParseFormat accepts "pdf", "txt" and "text". Empty means pdf.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "pdf":
		return FormatPDF, nil
	case "txt", "text":
		return FormatText, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// ContentType is the MIME type served for f.
func (f Format) ContentType() string {
	if f == FormatText {
		return "text/plain; charset=utf-8"
	}
	return "application/pdf"
}

// Filename is the attachment name for an entry.
func Filename(e models.HistoryEntry, f Format) string {
	return fmt.Sprintf("%s-%s.%s", e.Type, e.CreatedAt.UTC().Format("20060102-150405"), f)
}

// Render produces the document bytes for e.
func Render(e models.HistoryEntry, f Format) ([]byte, error) {
	switch f {
	case FormatPDF:
		return NewPDFGenerator().Generate(e)
	case FormatText:
		return []byte(Text(e)), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
}

type field struct {
	label string
	value string
}

func heading(e models.HistoryEntry) string {
	switch e.Type {
	case models.HistoryParaphrase:
		return "Paraphrase"
	case models.HistorySummary:
		return "Summary"
	case models.HistoryTranslation:
		return "Translation"
	}
	return "History entry"
}

// details lists the metadata lines shown above the texts.
func details(e models.HistoryEntry) []field {
	fields := []field{{"Date", e.CreatedAt.UTC().Format("2006-01-02 15:04 MST")}}
	switch e.Type {
	case models.HistoryParaphrase:
		fields = append(fields, field{"Mode", e.Mode}, field{"Similarity", percent(e.Quality)})
	case models.HistorySummary:
		fields = append(fields, field{"Length", e.Mode}, field{"Compression", percent(e.Quality)})
	case models.HistoryTranslation:
		fields = append(fields,
			field{"Languages", e.SourceLanguage + " -> " + e.TargetLanguage},
			field{"Confidence", percent(e.Quality)},
		)
	}
	return fields
}

func resultLabel(e models.HistoryEntry) string {
	switch e.Type {
	case models.HistoryParaphrase:
		return "Paraphrased text"
	case models.HistorySummary:
		return "Summary"
	case models.HistoryTranslation:
		return "Translated text"
	}
	return "Result"
}

func percent(v float64) string {
	return fmt.Sprintf("%.0f%%", v*100)
}

// Text renders e as plain text.
func Text(e models.HistoryEntry) string {
	var b strings.Builder
	b.WriteString(heading(e))
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", len(heading(e))))
	b.WriteString("\n\n")
	for _, f := range details(e) {
		if f.value == "" {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", f.label, f.value)
	}
	fmt.Fprintf(&b, "\nOriginal text:\n%s\n\n%s:\n%s\n", e.OriginalText, resultLabel(e), e.ResultText)
	return b.String()
}
