package export

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"

	"github.com/theChefEngineer/ai-tool-app-sub001/app/models"
)

var (
	colorPrimary   = [3]int{37, 99, 235}
	colorTextDark  = [3]int{31, 41, 55}
	colorTextMuted = [3]int{107, 114, 128}
	colorBox       = [3]int{243, 244, 246}
)

// PDFGenerator lays out a history entry on A4 pages.
type PDFGenerator struct{}

func NewPDFGenerator() *PDFGenerator {
	return &PDFGenerator{}
}

// Generate renders e as a PDF document.
func (g *PDFGenerator) Generate(e models.HistoryEntry) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	pdf.SetTitle(heading(e), true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()
	g.writeHeader(pdf, e)
	g.writeDetails(pdf, e, tr)
	g.writeSection(pdf, "Original text", e.OriginalText, tr)
	g.writeSection(pdf, resultLabel(e), e.ResultText, tr)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("PDF output error: %w", err)
	}
	return buf.Bytes(), nil
}

func (g *PDFGenerator) writeHeader(pdf *fpdf.Fpdf, e models.HistoryEntry) {
	pageWidth, _ := pdf.GetPageSize()

	pdf.SetFillColor(colorPrimary[0], colorPrimary[1], colorPrimary[2])
	pdf.Rect(0, 0, pageWidth, 6, "F")

	pdf.SetY(16)
	pdf.SetFont("Arial", "B", 20)
	pdf.SetTextColor(colorTextDark[0], colorTextDark[1], colorTextDark[2])
	pdf.CellFormat(0, 10, heading(e), "", 1, "L", false, 0, "")
	pdf.Ln(2)
}

func (g *PDFGenerator) writeDetails(pdf *fpdf.Fpdf, e models.HistoryEntry, tr func(string) string) {
	for _, f := range details(e) {
		if f.value == "" {
			continue
		}
		pdf.SetFont("Arial", "B", 10)
		pdf.SetTextColor(colorTextMuted[0], colorTextMuted[1], colorTextMuted[2])
		pdf.CellFormat(35, 6, f.label, "", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.SetTextColor(colorTextDark[0], colorTextDark[1], colorTextDark[2])
		pdf.CellFormat(0, 6, tr(f.value), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)
}

func (g *PDFGenerator) writeSection(pdf *fpdf.Fpdf, title, body string, tr func(string) string) {
	pdf.SetFont("Arial", "B", 12)
	pdf.SetTextColor(colorPrimary[0], colorPrimary[1], colorPrimary[2])
	pdf.CellFormat(0, 8, title, "", 1, "L", false, 0, "")

	pdf.SetFont("Arial", "", 11)
	pdf.SetTextColor(colorTextDark[0], colorTextDark[1], colorTextDark[2])
	pdf.SetFillColor(colorBox[0], colorBox[1], colorBox[2])
	pdf.MultiCell(0, 6, tr(body), "", "L", true)
	pdf.Ln(6)
}
