package classifier

import (
	"context"
	"errors"
	"testing"

	"coldreach/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type fakeChatter struct {
	response string
	err      error
	lastUser string
}

func (f *fakeChatter) Chat(ctx context.Context, system, user string, maxTokens int, temperature float32) (string, error) {
	f.lastUser = user
	return f.response, f.err
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		response string
		err      error
		expected string
	}{
		{
			name:     "positive",
			response: "Positive",
			expected: models.SentimentPositive,
		},
		{
			name:     "negative",
			response: "Negative",
			expected: models.SentimentNegative,
		},
		{
			name:     "neutral",
			response: "Neutral",
			expected: models.SentimentNeutral,
		},
		{
			name:     "label wrapped in prose",
			response: "The sentiment of this reply is: Positive.",
			expected: models.SentimentPositive,
		},
		{
			name:     "lower case label",
			response: "negative",
			expected: models.SentimentNegative,
		},
		{
			name:     "unexpected output maps to unknown",
			response: "I cannot classify this",
			expected: models.SentimentUnknown,
		},
		{
			name:     "error maps to unknown",
			err:      errors.New("api down"),
			expected: models.SentimentUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(&fakeChatter{response: tt.response, err: tt.err}, zerolog.Nop())
			got := c.Classify(context.Background(), "some reply")
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestClassify_PromptContainsReply(t *testing.T) {
	chatter := &fakeChatter{response: "Neutral"}
	c := New(chatter, zerolog.Nop())

	c.Classify(context.Background(), "Can you send more details about pricing?")
	assert.Contains(t, chatter.lastUser, "Can you send more details about pricing?")
}
