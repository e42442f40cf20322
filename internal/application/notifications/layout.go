package notifications

import (
	"fmt"
	"strings"
	"time"

	"bprd-credits/internal/pkg/umbrella"
)

const (
	themePrimary   = "#1B3A6B"
	themeTextMain  = "#1F2937"
	themeTextMuted = "#6B7280"
	themeBgBody    = "#F3F4F6"
	themeWhite     = "#FFFFFF"
)

// Layout wraps content in the shared HTML email layout.
func Layout(contentHTML string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>BPR&amp;D Training</title>
  <style>
    body { margin: 0; padding: 0; background-color: %s; font-family: -apple-system, 'Segoe UI', Roboto, Helvetica, Arial, sans-serif; color: %s; }
    .content-body p { margin: 0 0 20px 0; font-size: 16px; line-height: 1.6; }
    .content-body h1 { font-size: 22px; margin: 0 0 18px 0; color: %s; }
    .footer-text { color: %s; font-size: 13px; }
  </style>
</head>
<body>
  <table role="presentation" width="100%%" cellspacing="0" cellpadding="0" style="background-color: %s;">
    <tr>
      <td align="center" style="padding: 40px 0;">
        <table role="presentation" width="600" cellspacing="0" cellpadding="0" style="background-color: %s; border-radius: 8px;">
          <tr><td class="content-body" style="padding: 40px 48px 24px 48px;">%s</td></tr>
          <tr><td align="center" style="padding: 0 48px 32px 48px;"><p class="footer-text">&copy; %d Bureau of Police Research &amp; Development</p></td></tr>
        </table>
      </td>
    </tr>
  </table>
</body>
</html>`,
		themeBgBody, themeTextMain, themePrimary, themeTextMuted, themeBgBody, themeWhite, contentHTML, time.Now().Year())
}

func creditsAppliedContent(ev CreditsAppliedEvent) string {
	return fmt.Sprintf(`
    <h1>Credits added</h1>
    <p>Hi %s,</p>
    <p>Your course with <strong>%s</strong> has been approved and <strong>%.2f</strong> credits were added to <strong>%s</strong>.</p>
    <p>Your balance in this umbrella is now <strong>%.2f</strong> credits.</p>
`, EscapeHTML(greeting(ev.To.Name)), EscapeHTML(ev.Organization), ev.Credits, EscapeHTML(umbrella.Display(ev.Umbrella)), ev.Count)
}

func certificateIssuedContent(ev CertificateIssuedEvent) string {
	return fmt.Sprintf(`
    <h1>%s issued</h1>
    <p>Hi %s,</p>
    <p>Your claim in <strong>%s</strong> was approved. Certificate number <strong>%s</strong> has been issued and %.2f credits were deducted from your balance.</p>
`, EscapeHTML(qualificationLabel(ev.Qualification)), EscapeHTML(greeting(ev.To.Name)), EscapeHTML(umbrella.Display(ev.Umbrella)), EscapeHTML(ev.CertificateNumber), ev.Credits)
}

func greeting(name string) string {
	if strings.TrimSpace(name) == "" {
		return "there"
	}
	return name
}

func qualificationLabel(q string) string {
	switch q {
	case "pg_diploma":
		return "PG Diploma"
	case "diploma":
		return "Diploma"
	}
	return "Certificate"
}

// EscapeHTML escapes HTML specials for safe interpolation.
func EscapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	return s
}
