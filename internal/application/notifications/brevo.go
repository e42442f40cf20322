package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"bprd-credits/internal/pkg/validation"
)

const brevoAPI = "https://api.brevo.com/v3/smtp/email"

// BrevoSendRequest matches Brevo API v3 send transactional email body.
type BrevoSendRequest struct {
	Sender      BrevoSender   `json:"sender"`
	To          []BrevoTo     `json:"to"`
	Subject     string        `json:"subject"`
	HTMLContent string        `json:"htmlContent"`
	ReplyTo     *BrevoReplyTo `json:"replyTo,omitempty"`
}

type BrevoSender struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type BrevoTo struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type BrevoReplyTo struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// BrevoClient sends notifications via the Brevo (Sendinblue) API.
type BrevoClient struct {
	APIKey   string
	MailFrom string
	Endpoint string // defaults to the public Brevo API
	Client   *http.Client
}

func (c *BrevoClient) from() string {
	if c.MailFrom != "" {
		return c.MailFrom
	}
	return "noreply@bprd.gov.in"
}

func (c *BrevoClient) endpoint() string {
	if c.Endpoint != "" {
		return c.Endpoint
	}
	return brevoAPI
}

func (c *BrevoClient) send(ctx context.Context, to Recipient, subject, html string) error {
	if c.APIKey == "" || !validation.IsValidEmail(to.Email) {
		return nil
	}
	body := BrevoSendRequest{
		Sender:      BrevoSender{Email: c.from(), Name: "BPR&D Training"},
		To:          []BrevoTo{{Email: to.Email, Name: to.Name}},
		Subject:     subject,
		HTMLContent: html,
		ReplyTo:     &BrevoReplyTo{Email: c.from(), Name: "BPR&D Training Cell"},
	}
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(bodyBytes))
	if err != nil {
		return err
	}
	req.Header.Set("api-key", c.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.Client == nil {
		c.Client = &http.Client{Timeout: 15 * time.Second}
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("brevo send failed: status %d", resp.StatusCode)
	}
	return nil
}

// CreditsApplied tells a student that an approved course was added to their ledger.
func (c *BrevoClient) CreditsApplied(ctx context.Context, ev CreditsAppliedEvent) error {
	return c.send(ctx, ev.To, "Training credits added to your record", Layout(creditsAppliedContent(ev)))
}

// CertificateIssued tells a student that their claim was finalized.
func (c *BrevoClient) CertificateIssued(ctx context.Context, ev CertificateIssuedEvent) error {
	subject := fmt.Sprintf("Your %s has been issued", qualificationLabel(ev.Qualification))
	return c.send(ctx, ev.To, subject, Layout(certificateIssuedContent(ev)))
}
