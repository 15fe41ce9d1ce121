package mailer

import (
	"fmt"
	"strings"
	"text/template"

	"ecojourney/pkg/domain"
)

// TemplateData carries the fields the notification templates interpolate.
type TemplateData struct {
	UserName     string
	ContentTitle string
	Feedback     string
	RoleName     string
	ResetLink    string
	DashboardURL string
	SiteName     string
}

type emailTemplate struct {
	subject *template.Template
	body    *template.Template
}

var emailTemplates = map[domain.NotificationKind]emailTemplate{
	domain.NotifyWelcome: mustTemplate(
		"Welcome to {{.SiteName}}",
		`Hi {{.UserName}},

Your {{.SiteName}} account has been created. You can now sign in and start
contributing sustainability content.

{{.DashboardURL}}

The {{.SiteName}} team
`),
	domain.NotifyPasswordReset: mustTemplate(
		"Reset your {{.SiteName}} password",
		`Hi {{.UserName}},

We received a request to reset your password. Use the link below to choose a
new one. The link is valid for 24 hours and can be used once.

{{.ResetLink}}

If you did not request this, you can ignore this email.

The {{.SiteName}} team
`),
	domain.NotifySubmission: mustTemplate(
		"Content awaiting review: {{.ContentTitle}}",
		`Hi {{.UserName}},

"{{.ContentTitle}}" has been submitted and is waiting for your review.

{{.DashboardURL}}

The {{.SiteName}} team
`),
	domain.NotifyApproved: mustTemplate(
		"Your content was approved: {{.ContentTitle}}",
		`Hi {{.UserName}},

Good news: "{{.ContentTitle}}" has been approved and is ready to be published.
{{if .Feedback}}
Reviewer feedback:
{{.Feedback}}
{{end}}
{{.DashboardURL}}

The {{.SiteName}} team
`),
	domain.NotifyRejected: mustTemplate(
		"Your content was rejected: {{.ContentTitle}}",
		`Hi {{.UserName}},

"{{.ContentTitle}}" was not approved for publication.
{{if .Feedback}}
Reviewer feedback:
{{.Feedback}}
{{end}}
You can revise and resubmit it from your dashboard.

{{.DashboardURL}}

The {{.SiteName}} team
`),
	domain.NotifyChangesRequested: mustTemplate(
		"Changes requested: {{.ContentTitle}}",
		`Hi {{.UserName}},

A reviewer has requested changes to "{{.ContentTitle}}".
{{if .Feedback}}
Requested changes:
{{.Feedback}}
{{end}}
The item is back in draft so you can edit and resubmit it.

{{.DashboardURL}}

The {{.SiteName}} team
`),
	domain.NotifyPublished: mustTemplate(
		"Your content is live: {{.ContentTitle}}",
		`Hi {{.UserName}},

"{{.ContentTitle}}" has been published and is now visible to visitors.

{{.DashboardURL}}

The {{.SiteName}} team
`),
	domain.NotifyRoleAssigned: mustTemplate(
		"Your {{.SiteName}} role has changed",
		`Hi {{.UserName}},

An administrator has assigned you the role "{{.RoleName}}". Your available
actions may have changed the next time you sign in.

{{.DashboardURL}}

The {{.SiteName}} team
`),
	domain.NotifyAccountDisabled: mustTemplate(
		"Your {{.SiteName}} account has been deactivated",
		`Hi {{.UserName}},

Your account has been deactivated by an administrator. If you believe this is
a mistake, please contact the site team.

The {{.SiteName}} team
`),
}

func mustTemplate(subject, body string) emailTemplate {
	return emailTemplate{
		subject: template.Must(template.New("subject").Parse(subject)),
		body:    template.Must(template.New("body").Parse(body)),
	}
}

// Render produces the subject and body for a notification kind.
func Render(kind domain.NotificationKind, data TemplateData) (string, string, error) {
	tpl, ok := emailTemplates[kind]
	if !ok {
		return "", "", fmt.Errorf("no template for notification kind %q", kind)
	}
	if data.SiteName == "" {
		data.SiteName = "EcoJourney"
	}
	var subject, body strings.Builder
	if err := tpl.subject.Execute(&subject, data); err != nil {
		return "", "", fmt.Errorf("render subject: %w", err)
	}
	if err := tpl.body.Execute(&body, data); err != nil {
		return "", "", fmt.Errorf("render body: %w", err)
	}
	return strings.TrimSpace(subject.String()), body.String(), nil
}
