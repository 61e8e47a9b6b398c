package certificate

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// ContentType of rendered documents.
const ContentType = "application/pdf"

// Document is the data printed on a completion certificate.
type Document struct {
	CertificateID string
	StudentName   string
	CourseTitle   string
	Issuer        string
	CompletedAt   time.Time
	IssuedAt      time.Time
}

// Renderer draws certificates as single-page landscape PDFs.
type Renderer struct {
	issuer string
}

// NewRenderer constructs a renderer. issuer is used when a document carries none.
func NewRenderer(issuer string) *Renderer {
	if issuer == "" {
		issuer = "Course Marketplace"
	}
	return &Renderer{issuer: issuer}
}

// Render produces the PDF bytes for doc.
func (r *Renderer) Render(doc Document) ([]byte, error) {
	if doc.CertificateID == "" || doc.CourseTitle == "" {
		return nil, fmt.Errorf("certificate requires an id and a course title")
	}
	issuer := doc.Issuer
	if issuer == "" {
		issuer = r.issuer
	}

	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetTitle("Certificate of Completion", true)
	pdf.SetAuthor(issuer, true)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	width, height := pdf.GetPageSize()
	pdf.SetLineWidth(1.2)
	pdf.Rect(10, 10, width-20, height-20, "D")

	pdf.SetY(45)
	pdf.SetFont("Arial", "B", 28)
	pdf.CellFormat(0, 14, "CERTIFICATE OF COMPLETION", "", 1, "C", false, 0, "")
	pdf.Ln(8)

	pdf.SetFont("Arial", "", 14)
	pdf.CellFormat(0, 8, "This certifies that", "", 1, "C", false, 0, "")
	pdf.Ln(4)

	student := strings.TrimSpace(doc.StudentName)
	if student == "" {
		student = "the enrolled student"
	}
	pdf.SetFont("Arial", "B", 22)
	pdf.CellFormat(0, 12, tr(student), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Arial", "", 14)
	pdf.CellFormat(0, 8, "has successfully completed", "", 1, "C", false, 0, "")
	pdf.Ln(2)
	pdf.SetFont("Arial", "B", 18)
	pdf.MultiCell(0, 10, tr(doc.CourseTitle), "", "C", false)
	pdf.Ln(10)

	pdf.SetFont("Arial", "", 11)
	if !doc.CompletedAt.IsZero() {
		pdf.CellFormat(0, 6, "Completed on "+doc.CompletedAt.UTC().Format("2 January 2006"), "", 1, "C", false, 0, "")
	}
	pdf.CellFormat(0, 6, tr("Issued by "+issuer), "", 1, "C", false, 0, "")

	pdf.SetY(height - 30)
	pdf.SetFont("Arial", "I", 8)
	pdf.CellFormat(0, 5, fmt.Sprintf("Certificate ID %s  |  Issued %s", doc.CertificateID, doc.IssuedAt.UTC().Format(time.RFC3339)), "", 1, "C", false, 0, "")

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render certificate: %w", err)
	}
	return buf.Bytes(), nil
}
