package mail

import (
	"fmt"
	"html"
	"strings"

	"github.com/ManuelReschke/MemberGate/app/models"
)

// ContactNotification renders the mail sent to the site owner for a contact form submission.
func ContactNotification(msg *models.ContactMessage) (subject, body string) {
	subject = fmt.Sprintf("[Contact] %s", msg.Subject)
	body = fmt.Sprintf(
		"<p><strong>From:</strong> %s &lt;%s&gt;</p><p><strong>Subject:</strong> %s</p><p>%s</p>",
		html.EscapeString(msg.Name),
		html.EscapeString(msg.Email),
		html.EscapeString(msg.Subject),
		strings.ReplaceAll(html.EscapeString(msg.Message), "\n", "<br>"),
	)
	return subject, body
}

// WelcomeMail is sent after a member completed the paid registration.
func WelcomeMail(name, siteTitle string) (subject, body string) {
	subject = fmt.Sprintf("Welcome to %s", siteTitle)
	body = fmt.Sprintf("<p>Hi %s,</p><p>your membership is active. Sign in to open the education hub.</p>",
		html.EscapeString(name))
	return subject, body
}
