package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

const (
	pdfPageWidth  = 277.0
	pdfRowHeight  = 6.5
	pdfHeadHeight = 8.0
)

// PDFRenderer lays the table out on landscape A4 pages, repeating the header row.
type PDFRenderer struct{}

// NewPDFRenderer constructs a PDF renderer.
func NewPDFRenderer() *PDFRenderer {
	return &PDFRenderer{}
}

// Render draws the table.
func (r *PDFRenderer) Render(table Table) ([]byte, error) {
	if err := table.validate(); err != nil {
		return nil, err
	}
	widths := columnWidths(table.Columns)

	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 12, 10)
	pdf.SetAutoPageBreak(true, 12)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-10)
		pdf.SetFont("Arial", "I", 7)
		pdf.CellFormat(0, 5, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "R", false, 0, "")
	})
	pdf.AddPage()

	if table.Title != "" {
		pdf.SetFont("Arial", "B", 13)
		pdf.CellFormat(0, 8, table.Title, "", 1, "L", false, 0, "")
	}
	if table.Subtitle != "" {
		pdf.SetFont("Arial", "", 9)
		pdf.CellFormat(0, 6, table.Subtitle, "", 1, "L", false, 0, "")
	}
	pdf.Ln(2)

	drawHeader := func() {
		pdf.SetFont("Arial", "B", 8)
		pdf.SetFillColor(230, 230, 230)
		for i, col := range table.Columns {
			pdf.CellFormat(widths[i], pdfHeadHeight, col.label(), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 8)
	}
	drawHeader()

	_, pageHeight := pdf.GetPageSize()
	_, _, _, bottom := pdf.GetMargins()
	for _, row := range table.Rows {
		if pdf.GetY()+pdfRowHeight > pageHeight-bottom {
			pdf.AddPage()
			drawHeader()
		}
		for i, col := range table.Columns {
			pdf.CellFormat(widths[i], pdfRowHeight, row[col.Key], "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	if len(table.Footer) > 0 {
		pdf.Ln(3)
		pdf.SetFont("Arial", "", 8)
		for _, line := range table.Footer {
			pdf.MultiCell(0, 5, line, "", "L", false)
		}
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func columnWidths(cols []Column) []float64 {
	total := 0.0
	for _, c := range cols {
		total += weight(c)
	}
	out := make([]float64, len(cols))
	for i, c := range cols {
		out[i] = pdfPageWidth * weight(c) / total
	}
	return out
}

func weight(c Column) float64 {
	if c.Width <= 0 {
		return 1
	}
	return c.Width
}
