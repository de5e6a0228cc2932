// Package mail builds the notification messages sent around the agreement
// lifecycle. It only produces content; delivery belongs to the Mailer port.
package mail

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

type Message struct {
	Subject string
	HTML    string
	Text    string
}

// SigningInvite is the email a driver receives once an agreement is
// finalised. signingURL embeds the single-use token.
func SigningInvite(orgName, driverName, vehicleName, signingURL string) Message {
	subject := fmt.Sprintf("%s: vehicle agreement ready to sign", orgName)
	htmlBody := fmt.Sprintf(
		`<p>Hi %s,</p>
<p>%s has prepared a handover agreement for <strong>%s</strong> and needs your signature.</p>
<p><a href="%s">Review and sign the agreement</a></p>
<p>This link is personal and can be used once. If you weren't expecting this email you can ignore it.</p>`,
		html.EscapeString(driverName), html.EscapeString(orgName), html.EscapeString(vehicleName), signingURL)
	return Message{Subject: subject, HTML: htmlBody, Text: ToText(htmlBody)}
}

// TerminationNotice tells the driver a pending or signed agreement was ended.
func TerminationNotice(orgName, driverName, vehicleName, reason string) Message {
	subject := fmt.Sprintf("%s: vehicle agreement terminated", orgName)
	var b strings.Builder
	fmt.Fprintf(&b, `<p>Hi %s,</p>
<p>The handover agreement for <strong>%s</strong> has been terminated by %s.</p>`,
		html.EscapeString(driverName), html.EscapeString(vehicleName), html.EscapeString(orgName))
	if strings.TrimSpace(reason) != "" {
		fmt.Fprintf(&b, "\n<p>Reason: %s</p>", html.EscapeString(reason))
	}
	b.WriteString("\n<p>No further action is required from you.</p>")
	htmlBody := b.String()
	return Message{Subject: subject, HTML: htmlBody, Text: ToText(htmlBody)}
}

// ToText derives the plain-text alternative part from an HTML body. Block
// elements become line breaks, anchors keep their href so the link survives
// text-only clients.
func ToText(htmlBody string) string {
	tok := html.NewTokenizer(strings.NewReader(htmlBody))
	var b strings.Builder
	for {
		tt := tok.Next()
		switch tt {
		case html.ErrorToken:
			return strings.TrimSpace(b.String())
		case html.TextToken:
			b.WriteString(string(tok.Text()))
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := tok.TagName()
			switch string(name) {
			case "br":
				b.WriteString("\n")
			case "a":
				for hasAttr {
					var key, val []byte
					key, val, hasAttr = tok.TagAttr()
					if string(key) == "href" {
						b.WriteString(string(val) + " ")
					}
				}
			}
		case html.EndTagToken:
			name, _ := tok.TagName()
			switch string(name) {
			case "p", "div", "li", "h1", "h2", "h3":
				b.WriteString("\n\n")
			}
		}
	}
}
