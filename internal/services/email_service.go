package services

import (
	"bytes"
	"encoding/base64"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"fiscaal-rapportage/internal/config"
	"fiscaal-rapportage/internal/models"
	"fiscaal-rapportage/internal/utils"
)

// EmailService handles email delivery via SendGrid
type EmailService struct {
	fromEmail string
	fromName  string
	client    *sendgrid.Client
}

// NewEmailService creates a new email service
func NewEmailService(cfg config.EmailConfig) *EmailService {
	return &EmailService{
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
		client:    sendgrid.NewSendClient(cfg.APIKey),
	}
}

// SendReportEmail sends the dossier's advisory report with the PDF attached
func (s *EmailService) SendReportEmail(toEmail string, dossier *models.Dossier, pdfData []byte) error {
	from := mail.NewEmail(s.fromName, s.fromEmail)
	to := mail.NewEmail("", toEmail)
	subject := fmt.Sprintf("Fiscaal adviesrapport - %s", dossier.Title)

	htmlContent := s.buildReportEmailHTML(dossier)
	plainTextContent := s.buildReportEmailText(dossier)

	message := mail.NewSingleEmail(from, subject, to, plainTextContent, htmlContent)

	// Attach PDF
	if len(pdfData) > 0 {
		attachment := mail.NewAttachment()
		attachment.SetContent(base64.StdEncoding.EncodeToString(pdfData))
		attachment.SetType("application/pdf")
		attachment.SetFilename(fmt.Sprintf("adviesrapport-%s.pdf", utils.FormatDate(dossier.UpdatedAt)))
		attachment.SetDisposition("attachment")
		message.AddAttachment(attachment)
	}

	response, err := s.client.Send(message)
	if err != nil {
		return fmt.Errorf("failed to send email via SendGrid: %w", err)
	}

	if response.StatusCode >= 400 {
		return fmt.Errorf("SendGrid API error: status %d, body: %s", response.StatusCode, response.Body)
	}

	return nil
}

// buildReportEmailHTML builds the HTML content for the report email
func (s *EmailService) buildReportEmailHTML(dossier *models.Dossier) string {
	var html bytes.Buffer

	html.WriteString(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background-color: #0066cc; color: white; padding: 20px; border-radius: 8px 8px 0 0; }
        .content { background-color: #f8f9fa; padding: 20px; border-radius: 0 0 8px 8px; }
        .footer { text-align: center; color: #666; font-size: 12px; margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; }
    </style>
</head>
<body>
    <div class="header">
        <h1 style="margin: 0;">Fiscaal Adviesrapport</h1>
        <p style="margin: 5px 0 0 0; opacity: 0.9;">` + dossier.Title + `</p>
    </div>
    <div class="content">
        <p>Geachte heer/mevrouw,</p>
        <p>Bijgaand ontvangt u het fiscale adviesrapport voor <strong>` + dossier.ClientName + `</strong>.</p>
        <p>Het volledige rapport is als PDF bijgevoegd.</p>
        <p>Met vriendelijke groet,<br>` + s.fromName + `</p>
    </div>
    <div class="footer">
        <p>Dit is een automatisch verzonden e-mail.</p>
        <p>Gegenereerd op ` + utils.FormatTimestamp(dossier.UpdatedAt) + `</p>
    </div>
</body>
</html>`)

	return html.String()
}

// buildReportEmailText builds the plain text content for the report email
func (s *EmailService) buildReportEmailText(dossier *models.Dossier) string {
	return fmt.Sprintf(`Fiscaal Adviesrapport
%s

Geachte heer/mevrouw,

Bijgaand ontvangt u het fiscale adviesrapport voor %s.
Het volledige rapport is als PDF bijgevoegd.

Met vriendelijke groet,
%s

---
Dit is een automatisch verzonden e-mail.
Gegenereerd op %s`,
		dossier.Title, dossier.ClientName, s.fromName, utils.FormatTimestamp(dossier.UpdatedAt))
}
