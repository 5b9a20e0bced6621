package mailer

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMessage_Headers(t *testing.T) {
	m := buildMessage("outbox@example.com", Message{
		To:       "lead@clinic.example",
		ReplyTo:  "jane@acme.example",
		Subject:  "Quick question",
		TextBody: "Hi there",
		HTMLBody: "<p>Hi there</p>",
	})

	assert.Equal(t, []string{"outbox@example.com"}, m.GetHeader("From"))
	assert.Equal(t, []string{"lead@clinic.example"}, m.GetHeader("To"))
	assert.Equal(t, []string{"Quick question"}, m.GetHeader("Subject"))
	assert.Equal(t, []string{"jane@acme.example"}, m.GetHeader("Reply-To"))
}

func TestBuildMessage_NoReplyTo(t *testing.T) {
	m := buildMessage("outbox@example.com", Message{
		To:       "lead@clinic.example",
		Subject:  "s",
		TextBody: "b",
	})

	assert.Empty(t, m.GetHeader("Reply-To"))
}

func TestBuildMessage_MultipartBodies(t *testing.T) {
	m := buildMessage("outbox@example.com", Message{
		To:       "lead@clinic.example",
		Subject:  "s",
		TextBody: "plain body",
		HTMLBody: `<p>html body</p><img src="http://x/track_open?email_id=1">`,
	})

	var buf bytes.Buffer
	_, err := m.WriteTo(&buf)
	require.NoError(t, err)

	raw := buf.String()
	assert.Contains(t, raw, "multipart/alternative")
	assert.Contains(t, raw, "plain body")
	assert.Contains(t, raw, "html body")
}

func TestTransport_From(t *testing.T) {
	tr := New("smtp.example.com", 587, "outbox@example.com", "secret")
	assert.Equal(t, "outbox@example.com", tr.From())
}
