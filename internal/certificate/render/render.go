// Package render produces the certificate artifact whose hash is anchored.
package render

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-pdf/fpdf"
)

// Fields is everything printed on a certificate.
type Fields struct {
	CertificateNo   string
	Title           string
	CertificateType string
	IssueDate       time.Time
	HolderName      string
	StudentNo       string
	CollegeName     string
	Issuer          string
}

type Renderer interface {
	Render(ctx context.Context, f Fields) ([]byte, error)
}

const utf8Family = "certificate"

// PDFRenderer lays out a single landscape A4 page.
type PDFRenderer struct {
	// font is a TrueType font embedded in every artifact. When nil the core Helvetica font is
	// used, which only covers cp1252.
	font []byte
}

// NewPDFRenderer uses the core fonts. Output is deterministic for equal Fields.
func NewPDFRenderer() *PDFRenderer {
	return &PDFRenderer{}
}

// NewUTF8PDFRenderer embeds ttf so holder and college names outside cp1252 (CJK names in
// particular) print as written. The same face serves regular and bold text.
func NewUTF8PDFRenderer(ttf []byte) (*PDFRenderer, error) {
	if len(ttf) < 4 {
		return nil, fmt.Errorf("render: empty font")
	}
	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.AddUTF8FontFromBytes(utf8Family, "", ttf)
	pdf.SetFont(utf8Family, "", 12)
	if pdf.Err() {
		return nil, fmt.Errorf("render: load font: %w", pdf.Error())
	}
	return &PDFRenderer{font: ttf}, nil
}

// LoadUTF8PDFRenderer reads a TrueType file from disk.
func LoadUTF8PDFRenderer(path string) (*PDFRenderer, error) {
	ttf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("render: read font: %w", err)
	}
	return NewUTF8PDFRenderer(ttf)
}

func (r *PDFRenderer) Render(ctx context.Context, f Fields) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.CertificateNo == "" || f.HolderName == "" {
		return nil, fmt.Errorf("render: certificate number and holder name are required")
	}

	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetCreationDate(f.IssueDate)
	pdf.SetModificationDate(f.IssueDate)
	pdf.SetTitle(f.Title, true)
	pdf.SetSubject(f.CertificateNo, false)
	pdf.SetAuthor(f.Issuer, true)
	pdf.SetMargins(20, 20, 20)
	pdf.AddPage()

	family := "Helvetica"
	tr := func(s string) string { return s }
	if r.font != nil {
		pdf.AddUTF8FontFromBytes(utf8Family, "", r.font)
		pdf.AddUTF8FontFromBytes(utf8Family, "B", r.font)
		family = utf8Family
	} else {
		tr = pdf.UnicodeTranslatorFromDescriptor("")
	}

	width, _ := pdf.GetPageSize()
	inner := width - 40

	pdf.SetLineWidth(1.2)
	pdf.Rect(10, 10, width-20, 190, "D")

	pdf.SetY(35)
	pdf.SetFont(family, "B", 30)
	pdf.CellFormat(inner, 14, tr("CERTIFICATE"), "", 1, "C", false, 0, "")
	pdf.SetFont(family, "", 14)
	pdf.CellFormat(inner, 8, tr(f.CertificateType), "", 1, "C", false, 0, "")

	pdf.Ln(14)
	pdf.SetFont(family, "", 13)
	pdf.CellFormat(inner, 8, tr("This is to certify that"), "", 1, "C", false, 0, "")
	pdf.SetFont(family, "B", 22)
	pdf.CellFormat(inner, 12, tr(f.HolderName), "", 1, "C", false, 0, "")
	pdf.SetFont(family, "", 12)
	pdf.CellFormat(inner, 7, tr(fmt.Sprintf("Student No. %s  |  %s", f.StudentNo, f.CollegeName)), "", 1, "C", false, 0, "")

	pdf.Ln(8)
	pdf.SetFont(family, "", 13)
	pdf.CellFormat(inner, 8, tr("has been awarded"), "", 1, "C", false, 0, "")
	pdf.SetFont(family, "B", 18)
	pdf.MultiCell(inner, 10, tr(f.Title), "", "C", false)

	pdf.SetY(165)
	pdf.SetFont(family, "", 11)
	half := inner / 2
	pdf.CellFormat(half, 6, tr("Issued by: "+f.Issuer), "", 0, "L", false, 0, "")
	pdf.CellFormat(half, 6, "Issue date: "+f.IssueDate.Format("2006-01-02"), "", 1, "R", false, 0, "")
	pdf.SetFont("Courier", "", 10)
	pdf.CellFormat(inner, 6, "No. "+f.CertificateNo, "", 1, "L", false, 0, "")

	if pdf.Err() {
		return nil, fmt.Errorf("render: %w", pdf.Error())
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}
