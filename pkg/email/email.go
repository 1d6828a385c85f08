package email

import (
	"fmt"
	"net/smtp"
	"strings"
)

// Message is a plain-text mail.
type Message struct {
	From    string
	To      string
	Subject string
	Body    string
}

// Bytes renders the message with CRLF line endings.
func (m Message) Bytes() []byte {
	var sb strings.Builder
	fmt.Fprintf(&sb, "From: %s\r\n", m.From)
	fmt.Fprintf(&sb, "To: %s\r\n", m.To)
	fmt.Fprintf(&sb, "Subject: %s\r\n", m.Subject)
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
	sb.WriteString(strings.ReplaceAll(m.Body, "\n", "\r\n"))
	sb.WriteString("\r\n")
	return []byte(sb.String())
}

// Sender abstracts the SMTP submission for testing.
type Sender interface {
	Send(envelopeFrom string, to []string, msg []byte) error
}

// SMTPSender submits mail with PLAIN auth.
type SMTPSender struct {
	Server   string
	Port     int
	Username string
	Password string
}

func (s SMTPSender) Send(envelopeFrom string, to []string, msg []byte) error {
	auth := smtp.PlainAuth("", s.Username, s.Password, s.Server)
	addr := fmt.Sprintf("%s:%d", s.Server, s.Port)
	return smtp.SendMail(addr, auth, envelopeFrom, to, msg)
}

// ValidAddress is a minimal sanity check on a recipient.
func ValidAddress(to string) bool {
	at := strings.LastIndex(to, "@")
	return at > 0 && at < len(to)-1 && !strings.ContainsAny(to, " \r\n")
}
