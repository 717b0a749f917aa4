package export

import (
	"bytes"
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"cardscan/pkg/models"
)

// PDFTitle heads every exported PDF.
const PDFTitle = "Extracted ID Card Data"

// PDF returns a one-page document with the title and one "Label: value" line per
// field.
func PDF(record models.Record) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(PDFTitle, true)
	pdf.AddPage()

	// core fonts are cp1252
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, PDFTitle)
	pdf.Ln(14)

	pdf.SetFont("Helvetica", "", 12)
	for _, f := range record.Fields() {
		pdf.Cell(0, 10, tr(fmt.Sprintf("%s: %s", models.Label(f.Name), f.Value)))
		pdf.Ln(10)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("pdf write: %w", err)
	}
	if err := CheckPDF(buf.Bytes()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// CheckPDF reads data back as a PDF and fails unless it has exactly one page.
func CheckPDF(data []byte) error {
	pages, err := PDFPageCount(bytes.NewReader(data))
	if err != nil {
		return err
	}
	if pages != 1 {
		return fmt.Errorf("pdf has %d pages, want 1", pages)
	}
	return nil
}

// PDFPageCount parses a PDF and returns its page count.
func PDFPageCount(rs io.ReadSeeker) (int, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	n, err := api.PageCount(rs, conf)
	if err != nil {
		return 0, fmt.Errorf("read pdf: %w", err)
	}
	return n, nil
}
