package replies

import (
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	_ "github.com/emersion/go-message/charset" // register charsets for part decoding
	"github.com/emersion/go-message/mail"
)

// imapMailbox is the concrete Mailbox over an IMAP connection.
type imapMailbox struct {
	c *client.Client
}

// DialMailbox connects to the IMAP server over TLS, logs in and selects
// the inbox. Servers without an explicit port get the IMAPS default.
func DialMailbox(server, email, password string) (Mailbox, error) {
	if !strings.Contains(server, ":") {
		server += ":993"
	}

	c, err := client.DialTLS(server, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to IMAP server: %w", err)
	}

	if err := c.Login(email, password); err != nil {
		_ = c.Logout()
		return nil, fmt.Errorf("failed to log in to IMAP server: %w", err)
	}

	if _, err := c.Select("INBOX", false); err != nil {
		_ = c.Logout()
		return nil, fmt.Errorf("failed to select inbox: %w", err)
	}

	return &imapMailbox{c: c}, nil
}

// SearchFrom returns the ids of messages sent by addr.
func (m *imapMailbox) SearchFrom(addr string) ([]uint32, error) {
	criteria := imap.NewSearchCriteria()
	criteria.Header.Add("From", addr)

	ids, err := m.c.Search(criteria)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	return ids, nil
}

// Fetch retrieves one message's envelope and decoded plain-text part.
func (m *imapMailbox) Fetch(id uint32) (*Reply, error) {
	seqset := new(imap.SeqSet)
	seqset.AddNum(id)

	section := &imap.BodySectionName{}
	items := []imap.FetchItem{imap.FetchEnvelope, section.FetchItem()}

	messages := make(chan *imap.Message, 1)
	if err := m.c.Fetch(seqset, items, messages); err != nil {
		return nil, fmt.Errorf("fetch failed: %w", err)
	}

	msg := <-messages
	if msg == nil {
		return nil, fmt.Errorf("message %d not returned", id)
	}

	if msg.Envelope == nil || len(msg.Envelope.From) == 0 {
		return nil, fmt.Errorf("message %d has no sender envelope", id)
	}
	from := msg.Envelope.From[0]
	sender := from.MailboxName + "@" + from.HostName

	body := msg.GetBody(section)
	if body == nil {
		return nil, fmt.Errorf("message %d has no body", id)
	}

	text, err := plainText(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode message %d: %w", id, err)
	}

	return &Reply{Sender: sender, Text: text}, nil
}

func (m *imapMailbox) Close() error {
	return m.c.Logout()
}

// plainText extracts the first text/plain part of a message, decoded per
// its declared charset.
func plainText(r io.Reader) (string, error) {
	mr, err := mail.CreateReader(r)
	if err != nil {
		return "", err
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}

		header, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}

		contentType, _, err := header.ContentType()
		if err != nil || contentType != "text/plain" {
			continue
		}

		text, err := io.ReadAll(part.Body)
		if err != nil {
			return "", err
		}
		return string(text), nil
	}

	return "", fmt.Errorf("no text part")
}
