package notify

import (
	"errors"
	"fmt"

	"github.com/nicholas-fedor/shoutrrr"
	"gopkg.in/gomail.v2"
)

// EmailSender abstracts SMTP so the dispatcher can be tested without a
// mail server.
type EmailSender interface {
	SendEmail(to, subject, htmlBody, textBody string) error
}

// PushSender delivers a message to a shoutrrr push URL.
type PushSender interface {
	SendPush(url, message string) error
}

// SMSSender delivers a message to a phone number.
type SMSSender interface {
	SendSMS(phone, message string) error
}

// GomailSender sends email over SMTP.
type GomailSender struct {
	dialer *gomail.Dialer
	from   string
}

func NewGomailSender(host string, port int, username, password, from string) *GomailSender {
	return &GomailSender{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
	}
}

func (s *GomailSender) SendEmail(to, subject, htmlBody, textBody string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", textBody)
	if htmlBody != "" {
		m.AddAlternative("text/html", htmlBody)
	}
	return s.dialer.DialAndSend(m)
}

// ShoutrrrSender dispatches push messages via the Shoutrrr library.
type ShoutrrrSender struct{}

func (ShoutrrrSender) SendPush(url, message string) error {
	return shoutrrr.Send(url, message)
}

// ShoutrrrSMSSender sends SMS through a shoutrrr gateway URL. URLTemplate
// must contain one %s for the recipient phone number.
type ShoutrrrSMSSender struct {
	URLTemplate string
}

func (s ShoutrrrSMSSender) SendSMS(phone, message string) error {
	if s.URLTemplate == "" {
		return errors.New("sms gateway not configured")
	}
	return shoutrrr.Send(fmt.Sprintf(s.URLTemplate, phone), message)
}
