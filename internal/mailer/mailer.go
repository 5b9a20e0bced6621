// Package mailer delivers generated outreach messages over SMTP. One
// authenticated session is dialed per sending batch and reused for every
// message in it.
package mailer

import (
	"fmt"

	"gopkg.in/gomail.v2"
)

// Message is one outbound email.
type Message struct {
	To       string
	ReplyTo  string
	Subject  string
	TextBody string
	HTMLBody string
}

// Session is an open SMTP connection. Close after the batch.
type Session interface {
	Send(msg Message) error
	Close() error
}

// Transport dials authenticated SMTP sessions.
type Transport struct {
	dialer *gomail.Dialer
	from   string
}

// New creates a transport. The SMTP username doubles as the system default
// sender identity.
func New(server string, port int, username, password string) *Transport {
	return &Transport{
		dialer: gomail.NewDialer(server, port, username, password),
		from:   username,
	}
}

// From returns the system sender address.
func (t *Transport) From() string {
	return t.from
}

// Dial opens one authenticated session for a sending batch.
func (t *Transport) Dial() (Session, error) {
	sc, err := t.dialer.Dial()
	if err != nil {
		return nil, fmt.Errorf("failed to dial SMTP server: %w", err)
	}
	return &smtpSession{sender: sc, from: t.from}, nil
}

type smtpSession struct {
	sender gomail.SendCloser
	from   string
}

func (s *smtpSession) Send(msg Message) error {
	return gomail.Send(s.sender, buildMessage(s.from, msg))
}

func (s *smtpSession) Close() error {
	return s.sender.Close()
}

// buildMessage assembles the multipart message: plain text with the HTML
// rendering (tracking pixel included) as the alternative part.
func buildMessage(from string, msg Message) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	if msg.ReplyTo != "" {
		m.SetHeader("Reply-To", msg.ReplyTo)
	}
	m.SetBody("text/plain", msg.TextBody)
	if msg.HTMLBody != "" {
		m.AddAlternative("text/html", msg.HTMLBody)
	}
	return m
}
