package generator

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"coldreach/internal/llm"
	"coldreach/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChatter struct {
	responses []string
	errs      []error
	calls     int
	prompts   []string
}

func (f *fakeChatter) Chat(ctx context.Context, system, user string, maxTokens int, temperature float32) (string, error) {
	i := f.calls
	f.calls++
	f.prompts = append(f.prompts, user)
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	var resp string
	if i < len(f.responses) {
		resp = f.responses[i]
	}
	return resp, err
}

func newTestGenerator(chatter llm.Chatter) (*Generator, *[]time.Duration) {
	g := New(chatter, zerolog.Nop())
	var slept []time.Duration
	g.sleep = func(d time.Duration) { slept = append(slept, d) }
	return g, &slept
}

func TestGenerate_Success(t *testing.T) {
	chatter := &fakeChatter{
		responses: []string{"Subject: Need a website?\nEmail:\nHi Clinic Manager in Texas,\n\nLet's talk."},
	}
	g, _ := newTestGenerator(chatter)

	subject, body := g.Generate(context.Background(), models.Lead{Industry: "Clinic", State: "Texas"},
		models.SenderConfig{CompanyName: "Acme"}, "Website Development")

	assert.Equal(t, "Need a website?", subject)
	assert.Equal(t, "Hi Clinic Manager in Texas,\n\nLet's talk.", body)
	assert.Equal(t, 1, chatter.calls)
}

func TestGenerate_RateLimitRetriesWithIncreasingBackoff(t *testing.T) {
	chatter := &fakeChatter{
		errs:      []error{llm.ErrRateLimited, llm.ErrRateLimited, nil},
		responses: []string{"", "", "Subject: Hello\nEmail:\nBody"},
	}
	g, slept := newTestGenerator(chatter)

	subject, body := g.Generate(context.Background(), models.Lead{}, models.SenderConfig{}, "")

	assert.Equal(t, "Hello", subject)
	assert.Equal(t, "Body", body)
	assert.Equal(t, 3, chatter.calls)
	require.Len(t, *slept, 2)
	assert.Equal(t, 5*time.Second, (*slept)[0])
	assert.Equal(t, 10*time.Second, (*slept)[1])
}

func TestGenerate_RateLimitExhaustionReturnsSentinel(t *testing.T) {
	chatter := &fakeChatter{
		errs: []error{llm.ErrRateLimited, llm.ErrRateLimited, llm.ErrRateLimited},
	}
	g, slept := newTestGenerator(chatter)

	subject, body := g.Generate(context.Background(), models.Lead{Email: "x@y.z"}, models.SenderConfig{}, "")

	assert.Equal(t, Sentinel, subject)
	assert.Equal(t, Sentinel, body)
	assert.Equal(t, 3, chatter.calls)
	// No sleep after the final attempt
	assert.Len(t, *slept, 2)
}

func TestGenerate_NonRetryableErrorReturnsSentinelImmediately(t *testing.T) {
	chatter := &fakeChatter{errs: []error{errors.New("boom")}}
	g, slept := newTestGenerator(chatter)

	subject, body := g.Generate(context.Background(), models.Lead{}, models.SenderConfig{}, "")

	assert.Equal(t, Sentinel, subject)
	assert.Equal(t, Sentinel, body)
	assert.Equal(t, 1, chatter.calls)
	assert.Empty(t, *slept)
}

func TestGenerate_PromptContents(t *testing.T) {
	chatter := &fakeChatter{responses: []string{"Subject: s\nEmail:\nb"}}
	g, _ := newTestGenerator(chatter)

	lead := models.Lead{
		Industry:       "Clinic",
		State:          "Texas",
		PlatformSource: "Linkedin",
	}
	sender := models.SenderConfig{
		SenderName:  "Jane",
		CompanyName: "Acme Digital",
		SenderEmail: "jane@acme.example",
		Website:     "https://acme.example",
		Phone:       "555-0101",
	}
	g.Generate(context.Background(), lead, sender, "SEO")

	require.Len(t, chatter.prompts, 1)
	prompt := chatter.prompts[0]
	assert.Contains(t, prompt, "Clinic Manager in Texas")
	assert.Contains(t, prompt, "Acme Digital")
	assert.Contains(t, prompt, "SEO services")
	assert.Contains(t, prompt, "jane@acme.example")
}

func TestGenerate_UnknownIndustryRole(t *testing.T) {
	chatter := &fakeChatter{responses: []string{"Subject: s\nEmail:\nb"}}
	g, _ := newTestGenerator(chatter)

	g.Generate(context.Background(), models.Lead{Industry: "Taxidermy", State: "Ohio"},
		models.SenderConfig{}, "")

	assert.Contains(t, chatter.prompts[0], "Taxidermy Professional in Ohio")
}

func TestParseCompletion(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		wantSubject string
		wantBody    string
	}{
		{
			name:        "standard format",
			content:     "Subject: Grow your clinic\nEmail:\nHi there,\n\nBody text.",
			wantSubject: "Grow your clinic",
			wantBody:    "Hi there,\n\nBody text.",
		},
		{
			name:        "case insensitive markers",
			content:     "SUBJECT: Hello\nEMAIL:\nBody",
			wantSubject: "Hello",
			wantBody:    "Body",
		},
		{
			name:        "no markers",
			content:     "Just some raw text from the model",
			wantSubject: "N/A",
			wantBody:    "Just some raw text from the model",
		},
		{
			name:        "subject only",
			content:     "Subject: Hello there",
			wantSubject: "Hello there",
			wantBody:    "Subject: Hello there",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subject, body := ParseCompletion(tt.content)
			assert.Equal(t, tt.wantSubject, subject)
			assert.Equal(t, tt.wantBody, body)
		})
	}
}

func TestRenderHTML(t *testing.T) {
	html := RenderHTML("Hi there,\n\nSecond paragraph.\n", 42, "http://localhost:8000")

	assert.Equal(t,
		`<p>Hi there,</p><p>Second paragraph.</p>`+
			`<img src="http://localhost:8000/track_open?email_id=42" width="1" height="1" alt="" style="display:none;">`,
		html)
}

func TestRenderHTML_PixelEmbedsID(t *testing.T) {
	for _, id := range []int64{1, 99, 12345} {
		html := RenderHTML("body", id, "https://reach.example.com")
		assert.Contains(t, html, fmt.Sprintf("/track_open?email_id=%d", id))
	}
}
