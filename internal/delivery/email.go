package delivery

import (
	"context"
	"fmt"
	"log"
	"net/smtp"
	"strings"

	"phishguard-backend/internal/models"
)

// EmailTransport sends artifacts over SMTP. With no SMTP host or user
// configured it runs in dev mode and logs the message instead of sending.
type EmailTransport struct {
	host    string
	port    string
	user    string
	pass    string
	from    string
	devMode bool
}

func NewEmailTransport(host, port, user, pass, from string) *EmailTransport {
	devMode := host == "" || user == ""
	if devMode {
		log.Println("⚠ Email transport running in DEV MODE (logging to console)")
	}
	return &EmailTransport{
		host:    host,
		port:    port,
		user:    user,
		pass:    pass,
		from:    from,
		devMode: devMode,
	}
}

func (t *EmailTransport) Channel() models.Channel {
	return models.ChannelEmail
}

func (t *EmailTransport) Send(ctx context.Context, recipient models.Recipient, artifact *models.ContentArtifact) error {
	if !strings.Contains(recipient.Address, "@") {
		return fmt.Errorf("%s: %q is not an email address", ErrCategoryInvalidAddress, recipient.Address)
	}

	if t.devMode {
		log.Printf("📧 [DEV EMAIL] To: %s | Subject: %s", recipient.Address, artifact.Subject)
		log.Printf("📧 Body:\n%s", artifact.Body)
		return nil
	}

	headers := []string{
		fmt.Sprintf("From: %s", t.from),
		fmt.Sprintf("To: %s", recipient.Address),
		fmt.Sprintf("Subject: %s", artifact.Subject),
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=UTF-8",
		"X-Phishing-Simulation: true",
	}

	message := strings.Join(headers, "\r\n") + "\r\n\r\n" + artifact.Body

	auth := smtp.PlainAuth("", t.user, t.pass, t.host)
	addr := fmt.Sprintf("%s:%s", t.host, t.port)

	if err := smtp.SendMail(addr, auth, t.from, []string{recipient.Address}, []byte(message)); err != nil {
		log.Printf("❌ SMTP send to %s failed: %v", recipient.Address, err)
		return fmt.Errorf("%s: smtp send failed", ErrCategoryTransportDown)
	}

	log.Printf("📧 Email sent to %s: %s", recipient.Address, artifact.Subject)
	return nil
}
