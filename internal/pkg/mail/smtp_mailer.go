package mail

import (
	"errors"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/RevenueLedger/internal/pkg/config"
)

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer sends emails via SMTP
type SMTPMailer struct {
	cfg  config.MailConfig
	send sendFunc
}

func NewSMTPMailer(cfg config.MailConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, send: smtp.SendMail}
}

// SendMail delivers an HTML message to a single recipient.
func (m *SMTPMailer) SendMail(to string, subject string, body string) error {
	to = strings.TrimSpace(to)
	if to == "" || strings.ContainsAny(to, "\r\n") {
		return errors.New("mail: invalid recipient")
	}

	sender := m.cfg.Sender
	if sender == "" {
		sender = fmt.Sprintf("no-reply@%s", "localhost")
		log.Warnf("[Mail] SMTP_SENDER not set, using default sender: %s", sender)
	}

	var auth smtp.Auth
	if m.cfg.Username != "" && m.cfg.Password != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	addr := fmt.Sprintf("%s:%s", m.cfg.Host, m.cfg.Port)

	msg := []byte(
		fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n", sender, to, subject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=UTF-8\r\n\r\n" +
			body,
	)

	err := m.send(addr, auth, sender, []string{to}, msg)
	if err != nil {
		log.Errorf("[Mail] SMTP send error: %v", err)
	} else {
		log.Infof("[Mail] Email sent via %s", addr)
	}
	return err
}

var apiKeyTemplate = template.Must(template.New("api_key").Parse(
	`<p>Your RevenueLedger API key <strong>{{.KeyID}}</strong> is ready.</p>
<p>Send it in the <code>X-API-Key</code> header:</p>
<pre>{{.RawKey}}</pre>
<p>This is the only time the key is shown. Keep it somewhere safe.</p>`))

// SendAPIKey delivers a freshly issued raw key to its owner.
func (m *SMTPMailer) SendAPIKey(to, keyID, rawKey string) error {
	var body strings.Builder
	if err := apiKeyTemplate.Execute(&body, struct{ KeyID, RawKey string }{keyID, rawKey}); err != nil {
		return err
	}
	return m.SendMail(to, "Your RevenueLedger API key", body.String())
}
