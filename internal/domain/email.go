package domain

import "context"

// Mailer defines the contract for sending emails (infrastructure port).
// Retry policy belongs to the mail provider; the caller treats a returned
// error as a failed dispatch and does not retry internally.
type Mailer interface {
	Send(to, subject, html, text string) error
}

// EmailTemplateRenderer renders email content from a named template with the
// given data.
type EmailTemplateRenderer interface {
	Render(templateName string, data any) (subject, htmlBody, textBody string, err error)
}

// InvitationEmailData holds data for the invitation email.
type InvitationEmailData struct {
	Email       string
	Token       string
	InviteURL   string
	InviterName string
	SiteName    string
}

// EmailService defines the contract for sending domain-level emails.
type EmailService interface {
	SendInvitation(ctx context.Context, data *InvitationEmailData) error
}
