package notify

import (
	"bytes"
	"complaintdesk/backend/internal/localization"
	"complaintdesk/backend/internal/models"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strings"
)

// ResendEndpoint is the Resend "send email" API.
const ResendEndpoint = "https://api.resend.com/emails"

// Email is one outgoing message.
type Email struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// ResendMailer renders the notification emails and sends them through the Resend API.
type ResendMailer struct {
	APIKey    string
	From      string
	Endpoint  string
	Language  string
	Client    *http.Client
	Localizer *localization.Localizer
}

func NewResendMailer(apiKey, from string, l *localization.Localizer) *ResendMailer {
	return &ResendMailer{
		APIKey:    apiKey,
		From:      from,
		Endpoint:  ResendEndpoint,
		Language:  localization.DefaultLanguage,
		Client:    http.DefaultClient,
		Localizer: l,
	}
}

var mailTemplate = template.Must(template.New("mail").Parse(`<h1>{{.Heading}}</h1>
<p>{{.Intro}}</p>
<h2>{{.DetailsHeading}}</h2>
{{range .Rows}}<p><strong>{{.Label}}:</strong> {{.Value}}</p>
{{end}}<p>{{.Outro}}</p>
{{if .Signature}}<p>{{.Signature}}<br>{{.Team}}</p>
{{end}}`))

type mailRow struct {
	Label string
	Value string
}

type mailView struct {
	Heading        string
	Intro          string
	DetailsHeading string
	Rows           []mailRow
	Outro          string
	Signature      string
	Team           string
}

// Compose builds the emails for a payload: a receipt for the student and an
// alert for administrators on creation, a status email for the student on
// update. Messages without recipients are left out.
func (m *ResendMailer) Compose(p Payload) ([]Email, error) {
	t := func(key string, args ...any) string { return m.Localizer.Format(m.Language, key, args...) }
	id := ShortID(p.ComplaintID)
	var out []Email

	add := func(to []string, subject string, view mailView) error {
		to = nonEmpty(to)
		if len(to) == 0 {
			return nil
		}
		var buf bytes.Buffer
		if err := mailTemplate.Execute(&buf, view); err != nil {
			return fmt.Errorf("failed to render %q: %w", subject, err)
		}
		out = append(out, Email{From: m.From, To: to, Subject: subject, HTML: buf.String()})
		return nil
	}

	switch p.Type {
	case models.NotificationComplaintCreated:
		if err := add([]string{p.StudentEmail}, t("mail.created.student.subject", p.ComplaintTitle), mailView{
			Heading:        t("mail.created.student.greeting", p.StudentName),
			Intro:          t("mail.created.student.intro"),
			DetailsHeading: t("mail.details"),
			Rows: []mailRow{
				{t("mail.label.title"), p.ComplaintTitle},
				{t("mail.label.id"), id},
				{t("mail.label.status"), string(models.StatusOpen)},
			},
			Outro:     t("mail.created.student.outro"),
			Signature: t("mail.signature"),
			Team:      t("mail.team"),
		}); err != nil {
			return nil, err
		}
		if err := add(p.AdminEmails, t("mail.created.admin.subject", p.ComplaintTitle), mailView{
			Heading:        t("mail.created.admin.heading"),
			Intro:          t("mail.created.admin.intro", p.StudentName),
			DetailsHeading: t("mail.details.admin"),
			Rows: []mailRow{
				{t("mail.label.title"), p.ComplaintTitle},
				{t("mail.label.student"), fmt.Sprintf("%s (%s)", p.StudentName, p.StudentEmail)},
				{t("mail.label.id"), id},
			},
			Outro: t("mail.created.admin.outro"),
		}); err != nil {
			return nil, err
		}

	case models.NotificationStatusUpdated:
		rows := []mailRow{
			{t("mail.label.title"), p.ComplaintTitle},
			{t("mail.label.id"), id},
			{t("mail.label.new_status"), string(p.Status)},
		}
		if p.AdminRemarks != "" {
			rows = append(rows, mailRow{t("mail.label.remarks"), p.AdminRemarks})
		}
		if err := add([]string{p.StudentEmail}, t("mail.updated.subject", p.ComplaintTitle), mailView{
			Heading:        t("mail.created.student.greeting", p.StudentName),
			Intro:          t("mail.updated.intro"),
			DetailsHeading: t("mail.details"),
			Rows:           rows,
			Outro:          t("mail.updated.outro"),
			Signature:      t("mail.signature"),
			Team:           t("mail.team"),
		}); err != nil {
			return nil, err
		}

	default:
		return nil, fmt.Errorf("unknown notification type %q", p.Type)
	}
	return out, nil
}

// Dispatch sends every composed email. All sends are attempted; their errors are joined.
func (m *ResendMailer) Dispatch(ctx context.Context, p Payload) error {
	emails, err := m.Compose(p)
	if err != nil {
		return err
	}
	var errs []error
	for _, e := range emails {
		if err := m.send(ctx, e); err != nil {
			errs = append(errs, fmt.Errorf("send %q: %w", e.Subject, err))
		}
	}
	return errors.Join(errs...)
}

func (m *ResendMailer) send(ctx context.Context, e Email) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal email: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+m.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.Client.Do(req)
	if err != nil {
		return fmt.Errorf("resend request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("resend returned status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}
	return nil
}

func nonEmpty(addrs []string) []string {
	var out []string
	for _, a := range addrs {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}
