// Package generator produces personalized outreach content for leads via
// the completion endpoint and renders the HTML body with its open-tracking
// reference.
package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"coldreach/internal/llm"
	"coldreach/internal/models"

	"github.com/rs/zerolog"
)

// Sentinel marks a lead whose content generation failed. A sentinel value
// instead of an error keeps the generation loop running for the rest of
// the batch.
const Sentinel = "ERROR"

const (
	maxAttempts  = 3
	baseBackoff  = 5 * time.Second
	systemPrompt = "You are a professional email copywriter."
)

// industryRoles maps an industry to the role title used to address the
// recipient. Unknown industries fall back to "<industry> Professional".
var industryRoles = map[string]string{
	"Real Estate": "Real Estate Manager",
	"Clinic":      "Clinic Manager",
	"Law Firm":    "Legal Advisor",
	"Restaurant":  "Restaurant Owner",
	"E-commerce":  "E-commerce Owner",
	"Fitness":     "Gym Owner",
	"Education":   "School Administrator",
}

// Generator is the content-generation adapter.
type Generator struct {
	chatter llm.Chatter
	logger  zerolog.Logger

	// sleep is swapped out in tests
	sleep func(time.Duration)
}

// New creates a generator over a completion client.
func New(chatter llm.Chatter, logger zerolog.Logger) *Generator {
	return &Generator{
		chatter: chatter,
		logger:  logger,
		sleep:   time.Sleep,
	}
}

// Generate produces a (subject, body) pair for one lead. Rate limits are
// retried with increasing backoff; after the attempts are exhausted, or on
// any non-retryable error, both values are the Sentinel and no error is
// returned.
func (g *Generator) Generate(ctx context.Context, lead models.Lead, sender models.SenderConfig, service string) (subject, body string) {
	prompt := buildPrompt(lead, sender, service)

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		content, err := g.chatter.Chat(ctx, systemPrompt, prompt, 600, 0.7)
		if err == nil {
			return ParseCompletion(content)
		}

		if !errors.Is(err, llm.ErrRateLimited) {
			g.logger.Error().Err(err).Str("lead_email", lead.Email).Msg("Content generation failed")
			return Sentinel, Sentinel
		}

		wait := baseBackoff * time.Duration(attempt)
		g.logger.Warn().
			Dur("backoff", wait).
			Int("attempt", attempt).
			Msg("Rate limit hit, backing off")
		if attempt < maxAttempts {
			g.sleep(wait)
		}
	}

	g.logger.Error().Str("lead_email", lead.Email).Msg("Content generation exhausted retries")
	return Sentinel, Sentinel
}

// buildPrompt assembles the copywriter prompt from the lead's attributes
// and the sender identity.
func buildPrompt(lead models.Lead, sender models.SenderConfig, service string) string {
	if service == "" {
		service = "Website Development"
	}

	role, ok := industryRoles[lead.Industry]
	if !ok {
		role = lead.Industry + " Professional"
	}
	title := fmt.Sprintf("%s in %s", role, lead.State)

	description := strings.TrimSpace(lead.ProfileDescription)
	if description == "" {
		description = "N/A"
	}

	return strings.TrimSpace(fmt.Sprintf(`
You are a professional email copywriter working for a digital agency called %s.

Your goal is to help generate leads for the agency by reaching out to potential clients for %s services.

Generate:
1. A compelling subject line (less than 10 words)
2. A short, personalized outreach email.

Details:
- Recipient: %s
- Industry: %s
- State: %s
- Source Platform: %s
- Profile Description: "%s"

The email should:
- Mention they don't have a website
- Be personalized to their industry and location
- Be friendly, professional, and concise
- Start the email with: "Hi %s,"
- Include a call to action (e.g., "Can we connect for a quick chat?")
- End with this signature:

Best,
%s
%s
%s
%s
%s

Return the output in this format:
Subject: [subject]
Email:
[email body]`,
		sender.CompanyName, service, title, lead.Industry, lead.State,
		lead.PlatformSource, description, title,
		sender.SenderName, sender.CompanyName, sender.SenderEmail,
		sender.Website, sender.Phone))
}

// ParseCompletion splits a completion into subject and body. The model is
// asked for "Subject: ..." followed by "Email:" and the body on subsequent
// lines; if no markers are present the whole completion becomes the body
// with an "N/A" subject.
func ParseCompletion(content string) (subject, body string) {
	subject = "N/A"
	body = content

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lower := strings.ToLower(line)
		if strings.HasPrefix(lower, "subject:") {
			subject = strings.TrimSpace(line[len("subject:"):])
		} else if strings.HasPrefix(lower, "email:") {
			body = strings.TrimSpace(strings.Join(lines[i+1:], "\n"))
			break
		}
	}
	return subject, body
}

// RenderHTML wraps each non-empty line of the plain body in a paragraph
// and appends the invisible open-tracking pixel. The pixel URL embeds the
// email row id, which is why the row must be persisted first.
func RenderHTML(body string, emailID int64, apiBaseURL string) string {
	var b strings.Builder
	for _, line := range strings.Split(strings.TrimSpace(body), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		b.WriteString("<p>")
		b.WriteString(line)
		b.WriteString("</p>")
	}

	fmt.Fprintf(&b,
		`<img src="%s/track_open?email_id=%d" width="1" height="1" alt="" style="display:none;">`,
		apiBaseURL, emailID)
	return b.String()
}
