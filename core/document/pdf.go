package document

import (
	"fmt"
	"io"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/pkg/errors"
)

const (
	fontFamily  = "Helvetica"
	lineHeight  = 5.0
	valueIndent = 6.0
)

// RenderPDF writes the sections as an A4 document. created is stamped into the
// file's metadata; the zero time uses the current time.
func RenderPDF(w io.Writer, title string, sections []Section, created time.Time) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	if !created.IsZero() {
		pdf.SetCreationDate(created)
	}
	pdf.SetTitle(title, true)
	pdf.SetCreator("proposals", true)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont(fontFamily, "I", 8)
		pdf.CellFormat(0, 8, fmt.Sprintf("%s | %d/{nb}", tr(title), pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont(fontFamily, "B", 16)
	pdf.MultiCell(0, 8, tr(title), "", "L", false)
	pdf.Ln(4)

	for _, sec := range sections {
		rows := MakeRows(sec)
		if len(rows) == 0 {
			continue
		}
		pdf.SetFont(fontFamily, "B", 12)
		pdf.SetFillColor(230, 230, 230)
		pdf.MultiCell(0, 7, tr(sec.Title()), "", "L", true)
		pdf.Ln(1)
		for _, r := range rows {
			left, _, _, _ := pdf.GetMargins()
			pdf.SetX(left)
			pdf.SetFont(fontFamily, "B", 9)
			pdf.MultiCell(0, lineHeight, tr(r.Label), "", "L", false)
			pdf.SetX(left + valueIndent)
			pdf.SetFont(fontFamily, "", 9)
			value := r.Value
			if value == "" {
				value = "-"
			}
			pdf.MultiCell(0, lineHeight, tr(value), "", "L", false)
			pdf.Ln(1)
		}
		pdf.Ln(3)
	}

	if err := pdf.Output(w); err != nil {
		return errors.Wrap(err, "rendering pdf")
	}
	return nil
}
