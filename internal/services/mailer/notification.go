// -----------------------------------------------------------------------
// Ready-issue notification content
// -----------------------------------------------------------------------

package mailer

import (
	"fmt"
	"html"
	"strings"
)

// ReadyNotification is the email sent when an issue reaches ready
type ReadyNotification struct {
	Subject  string
	HTMLBody string
	TextBody string
}

// BuildReadyNotification renders the completion email for an issue. The
// link points at the reader page when a base URL is configured.
func BuildReadyNotification(title, issueID, appBaseURL string) ReadyNotification {
	subject := fmt.Sprintf("Your Issue is ready — %s", title)

	link := ""
	if appBaseURL != "" {
		link = fmt.Sprintf("%s/issues/%s", strings.TrimRight(appBaseURL, "/"), issueID)
	}

	var htmlBody strings.Builder
	htmlBody.WriteString("<html><body style=\"font-family: Georgia, serif; color: #1a1a1a;\">")
	htmlBody.WriteString(fmt.Sprintf("<h2>%s</h2>", html.EscapeString(title)))
	htmlBody.WriteString("<p>Your Issue has finished processing and is ready to read.</p>")
	if link != "" {
		htmlBody.WriteString(fmt.Sprintf("<p><a href=\"%s\">Open your Issue</a></p>", html.EscapeString(link)))
	}
	htmlBody.WriteString("</body></html>")

	var textBody strings.Builder
	textBody.WriteString(fmt.Sprintf("Your Issue \"%s\" has finished processing and is ready to read.\n", title))
	if link != "" {
		textBody.WriteString(fmt.Sprintf("\nOpen it here: %s\n", link))
	}

	return ReadyNotification{
		Subject:  subject,
		HTMLBody: htmlBody.String(),
		TextBody: textBody.String(),
	}
}
