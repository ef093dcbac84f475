package services

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf/v2"

	"fiscaal-rapportage/internal/models"
	"fiscaal-rapportage/internal/utils"
)

// PDFService renders dossiers as PDF documents
type PDFService struct{}

// NewPDFService creates a new PDF service
func NewPDFService() *PDFService {
	return &PDFService{}
}

// GenerateDossierPDF renders the dossier: title page, pipeline results and
// the current concept report
func (s *PDFService) GenerateDossierPDF(dossier *models.Dossier) ([]byte, error) {
	if dossier == nil {
		return nil, fmt.Errorf("invalid dossier data")
	}

	// Create PDF document (A4, portrait)
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 20, 15)
	pdf.SetAutoPageBreak(true, 20)

	// Set total page count alias for footer
	pdf.AliasNbPages("{nb}")

	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Arial", "", 9)
		pdf.SetTextColor(108, 117, 125) // Gray
		pdf.SetX(15)
		pdf.CellFormat(0, 10, fmt.Sprintf("Pagina %d van {nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	// Title page
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 24)
	pdf.SetTextColor(0, 102, 204) // Blue
	pdf.CellFormat(0, 20, "Fiscaal Adviesrapport", "", 0, "C", false, 0, "")

	pdf.Ln(18)
	pdf.SetFont("Arial", "B", 14)
	pdf.SetTextColor(33, 37, 41)
	pdf.CellFormat(0, 10, s.tr(pdf, dossier.Title), "", 0, "C", false, 0, "")

	pdf.Ln(12)
	pdf.SetFont("Arial", "", 11)
	pdf.SetTextColor(108, 117, 125)
	pdf.CellFormat(0, 7, s.tr(pdf, fmt.Sprintf("Client: %s", dossier.ClientName)), "", 0, "C", false, 0, "")
	if dossier.Advisor != "" {
		pdf.Ln(7)
		pdf.CellFormat(0, 7, s.tr(pdf, fmt.Sprintf("Adviseur: %s", dossier.Advisor)), "", 0, "C", false, 0, "")
	}
	pdf.Ln(7)
	pdf.CellFormat(0, 7, fmt.Sprintf("Status: %s", dossier.Status), "", 0, "C", false, 0, "")
	pdf.Ln(7)
	pdf.CellFormat(0, 7, fmt.Sprintf("Gegenereerd: %s", utils.FormatDate(dossier.UpdatedAt)), "", 0, "C", false, 0, "")

	// Concept report
	if concept := dossier.CurrentConcept(); concept != "" {
		pdf.AddPage()
		s.addHeader(pdf, "Adviesrapport")
		s.addBody(pdf, concept)
	}

	// Pipeline results per stage
	pdf.AddPage()
	s.addHeader(pdf, "Pijplijnresultaten")
	for _, stage := range models.WorkflowStages() {
		result, ok := dossier.StageResults[stage.Key]
		if !ok {
			continue
		}
		s.addSubHeader(pdf, stage.Label)
		s.addBody(pdf, result.Content)
		pdf.Ln(4)
	}

	// Generate PDF bytes
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}

	return buf.Bytes(), nil
}

// addHeader adds a section header with an underline
func (s *PDFService) addHeader(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Arial", "B", 18)
	pdf.SetTextColor(33, 37, 41) // Dark gray
	pdf.CellFormat(0, 10, s.tr(pdf, title), "", 0, "L", false, 0, "")

	pdf.Ln(10)
	pdf.SetLineWidth(0.5)
	pdf.SetDrawColor(0, 102, 204) // Blue
	pdf.Line(15, pdf.GetY(), 195, pdf.GetY())
	pdf.Ln(8)
}

func (s *PDFService) addSubHeader(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Arial", "B", 13)
	pdf.SetTextColor(0, 102, 204)
	pdf.CellFormat(0, 8, s.tr(pdf, title), "", 0, "L", false, 0, "")
	pdf.Ln(9)
}

func (s *PDFService) addBody(pdf *gofpdf.Fpdf, text string) {
	pdf.SetFont("Arial", "", 10)
	pdf.SetTextColor(33, 37, 41)
	pdf.MultiCell(0, 5, s.tr(pdf, text), "", "L", false)
}

// tr maps UTF-8 text to the cp1252 range gofpdf's core fonts support
func (s *PDFService) tr(pdf *gofpdf.Fpdf, text string) string {
	translator := pdf.UnicodeTranslatorFromDescriptor("")
	return translator(text)
}
