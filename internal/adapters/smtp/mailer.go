// Package smtp delivers mail over plain SMTP. It satisfies the Mailer port;
// swapping in a hosted provider means writing another adapter, not touching
// the services.
package smtp

import (
	"context"
	"fmt"
	"mime"
	"net/smtp"
	"strings"

	"github.com/tonglam/vehicle-track-sub000/internal/domain"
)

type Mailer struct {
	addr string // host:port
	from string
	auth smtp.Auth
}

func New(addr, from, username, password string) *Mailer {
	m := &Mailer{addr: addr, from: from}
	if username != "" {
		host := addr
		if i := strings.IndexByte(addr, ':'); i >= 0 {
			host = addr[:i]
		}
		m.auth = smtp.PlainAuth("", username, password, host)
	}
	return m
}

const boundary = "alt-9c4f1e"

func (m *Mailer) Send(ctx context.Context, to, subject, htmlBody, textBody string) error {
	if err := ctx.Err(); err != nil {
		return domain.Wrap(domain.KindDelivery, err, "send cancelled")
	}
	msg := buildMessage(m.from, to, subject, htmlBody, textBody)
	if err := smtp.SendMail(m.addr, m.auth, m.from, []string{to}, msg); err != nil {
		return domain.Wrap(domain.KindDelivery, err, fmt.Sprintf("smtp send to %s", to))
	}
	return nil
}

// buildMessage assembles a multipart/alternative body so text-only clients
// still get a readable agreement notification.
func buildMessage(from, to, subject, htmlBody, textBody string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary)

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(textBody)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/html; charset=utf-8\r\n\r\n")
	b.WriteString(htmlBody)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s--\r\n", boundary)
	return []byte(b.String())
}
